// Package profile holds the user's building templates and editor state and
// persists them in a bolt preferences file.
package profile

import (
	"fmt"
	"sort"

	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/sim/templates"
)

// DefaultTemplateID names the empty template a fresh profile starts with.
const DefaultTemplateID = "new_building_template"

type Profile struct {
	Templates   map[string]*templates.BuildingTemplate
	CurTemplate string
	CurBuilding string
}

func New() *Profile {
	return &Profile{Templates: map[string]*templates.BuildingTemplate{}}
}

// Default is the profile used when nothing is stored yet, or when the stored
// blob cannot be read.
func Default() *Profile {
	p := New()
	bt := templates.New(DefaultTemplateID)
	p.AddTemplate(bt)
	p.CurTemplate = bt.ID
	return p
}

// AddTemplate stores bt, replacing a template with the same id.
func (p *Profile) AddTemplate(bt *templates.BuildingTemplate) {
	p.Templates[bt.ID] = bt
}

func (p *Profile) RemoveTemplate(id string) bool {
	if _, ok := p.Templates[id]; !ok {
		return false
	}
	delete(p.Templates, id)
	if p.CurTemplate == id {
		p.CurTemplate = ""
	}
	return true
}

// CurrentTemplate is nil when no template is selected.
func (p *Profile) CurrentTemplate() *templates.BuildingTemplate {
	if p.CurTemplate == "" {
		return nil
	}
	return p.Templates[p.CurTemplate]
}

func (p *Profile) SetCurrentTemplate(id string) error {
	if _, ok := p.Templates[id]; !ok {
		return fmt.Errorf("unknown building template %q", id)
	}
	p.CurTemplate = id
	return nil
}

func (p *Profile) TemplateIDs() []string {
	ids := make([]string, 0, len(p.Templates))
	for id := range p.Templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func Encode(p *Profile) map[string]any {
	ts := make(map[string]any, len(p.Templates))
	for id, bt := range p.Templates {
		ts[id] = codec.EncodeTemplate(bt)
	}
	return map[string]any{
		"cur_template": nullable(p.CurTemplate),
		"cur_building": nullable(p.CurBuilding),
		"templates":    ts,
	}
}

func optionalString(m map[string]any, key string) (string, error) {
	switch v := m[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%q: want string or null, got %T", key, v)
	}
}

// Decode reads a profile map. Any problem is a *codec.PersistenceError.
func Decode(m map[string]any) (*Profile, error) {
	bad := func(err error) error { return &codec.PersistenceError{What: "profile", Err: err} }
	p := New()
	var err error
	if p.CurTemplate, err = optionalString(m, "cur_template"); err != nil {
		return nil, bad(err)
	}
	if p.CurBuilding, err = optionalString(m, "cur_building"); err != nil {
		return nil, bad(err)
	}
	ts, ok := m["templates"].(map[string]any)
	if !ok {
		return nil, bad(fmt.Errorf("%q: want object, got %T", "templates", m["templates"]))
	}
	for key, raw := range ts {
		tm, ok := raw.(map[string]any)
		if !ok {
			return nil, bad(fmt.Errorf("template %s: not an object", key))
		}
		if err := codec.ValidateTemplateMap(tm); err != nil {
			return nil, err
		}
		bt, err := codec.DecodeTemplate(tm)
		if err != nil {
			return nil, err
		}
		if bt.ID != key {
			return nil, bad(fmt.Errorf("template key %s holds template %s", key, bt.ID))
		}
		p.AddTemplate(bt)
	}
	if p.CurTemplate != "" && p.Templates[p.CurTemplate] == nil {
		return nil, bad(fmt.Errorf("current template %q is not stored", p.CurTemplate))
	}
	return p, nil
}
