package templates

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"buildgen.ai/internal/sim/layout"
)

// Catalog is a directory of building template files. Each file holds one
// building template in YAML, TOML or JSON.
type Catalog struct {
	ByID    map[string]*BuildingTemplate
	Files   map[string]string // template id -> file name
	Digests map[string]string // template id -> sha256 of the file
	Digest  string
}

type templateDef struct {
	ID             string     `yaml:"id" toml:"id" json:"id"`
	FloorTemplates []floorDef `yaml:"floor_templates" toml:"floor_templates" json:"floor_templates"`
	RoofTemplates  []roofDef  `yaml:"roof_templates" toml:"roof_templates" json:"roof_templates"`
}

type floorDef struct {
	ID      string     `yaml:"id" toml:"id" json:"id"`
	Unit    [3]float64 `yaml:"unit" toml:"unit" json:"unit"`
	Width   int        `yaml:"width" toml:"width" json:"width"`
	Depth   int        `yaml:"depth" toml:"depth" json:"depth"`
	Walls   []string   `yaml:"walls" toml:"walls" json:"walls"`
	Corners []string   `yaml:"corners" toml:"corners" json:"corners"`
}

type roofDef struct {
	ID      string     `yaml:"id" toml:"id" json:"id"`
	Unit    [3]float64 `yaml:"unit" toml:"unit" json:"unit"`
	Width   int        `yaml:"width" toml:"width" json:"width"`
	Depth   int        `yaml:"depth" toml:"depth" json:"depth"`
	Tiles   []string   `yaml:"tiles" toml:"tiles" json:"tiles"`
	Edges   []string   `yaml:"edges" toml:"edges" json:"edges"`
	Corners []string   `yaml:"corners" toml:"corners" json:"corners"`
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadCatalog reads every *.yaml, *.yml, *.toml and *.json file in dir.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".toml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	c := &Catalog{
		ByID:    map[string]*BuildingTemplate{},
		Files:   map[string]string{},
		Digests: map[string]string{},
	}
	var all bytes.Buffer
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		bt, err := Decode(name, raw)
		if err != nil {
			return nil, err
		}
		if prev, dup := c.Files[bt.ID]; dup {
			return nil, fmt.Errorf("%s: building template %q already defined in %s", name, bt.ID, prev)
		}
		c.ByID[bt.ID] = bt
		c.Files[bt.ID] = name
		c.Digests[bt.ID] = sha256Hex(raw)
		all.WriteString(bt.ID)
		all.WriteByte(':')
		all.WriteString(c.Digests[bt.ID])
		all.WriteByte('\n')
	}
	c.Digest = sha256Hex(all.Bytes())
	return c, nil
}

// IDs returns the template ids sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Decode parses one template file; the format follows the file extension.
func Decode(name string, raw []byte) (*BuildingTemplate, error) {
	var def templateDef
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	case ".toml":
		if err := toml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported template format", name)
	}
	bt, err := def.build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return bt, nil
}

func (d templateDef) build() (*BuildingTemplate, error) {
	if strings.TrimSpace(d.ID) == "" {
		return nil, fmt.Errorf("empty building template id")
	}
	bt := New(d.ID)
	for _, f := range d.FloorTemplates {
		base, err := checkBase(f.ID, f.Unit, f.Width, f.Depth)
		if err != nil {
			return nil, err
		}
		if err := bt.AddFloorTemplate(&FloorTemplate{Base: base, Walls: f.Walls, Corners: f.Corners}); err != nil {
			return nil, err
		}
	}
	for _, r := range d.RoofTemplates {
		base, err := checkBase(r.ID, r.Unit, r.Width, r.Depth)
		if err != nil {
			return nil, err
		}
		if err := bt.AddRoofTemplate(&RoofTemplate{Base: base, Tiles: r.Tiles, Edges: r.Edges, Corners: r.Corners}); err != nil {
			return nil, err
		}
	}
	return bt, nil
}

func checkBase(id string, unit [3]float64, width, depth int) (Base, error) {
	if strings.TrimSpace(id) == "" {
		return Base{}, fmt.Errorf("template with empty id")
	}
	for i, u := range unit {
		if u <= 0 {
			return Base{}, fmt.Errorf("template %s: unit[%d]=%v must be positive", id, i, u)
		}
	}
	if width < 1 || depth < 1 {
		return Base{}, fmt.Errorf("template %s: width/depth must be at least 1 (got %dx%d)", id, width, depth)
	}
	return Base{ID: id, Unit: layout.Vec3(unit), Width: width, Depth: depth}, nil
}
