package templates

import (
	"fmt"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/layout"
)

// Base holds the parameters every template shares.
type Base struct {
	ID    string
	Unit  layout.Vec3
	Width int
	Depth int
}

func (b Base) Grid() layout.Grid {
	return layout.Grid{Unit: b.Unit, Width: b.Width, Depth: b.Depth}
}

// Height is the vertical unit: how much a floor adds to the stack.
func (b Base) Height() float64 { return b.Unit[1] }

type FloorTemplate struct {
	Base
	Walls   []string
	Corners []string
}

// HasBlueprints reports whether both required lists are non-empty.
func (t *FloorTemplate) HasBlueprints() bool {
	return len(t.Walls) > 0 && len(t.Corners) > 0
}

// CornerBlueprint picks the corner blueprint for slot, reusing the list
// cyclically when fewer than four are given.
func (t *FloorTemplate) CornerBlueprint(slot layout.Side) string {
	return t.Corners[int(slot)%len(t.Corners)]
}

func (t *FloorTemplate) Blueprints() []string {
	out := make([]string, 0, len(t.Walls)+len(t.Corners))
	out = append(out, t.Walls...)
	return append(out, t.Corners...)
}

type RoofTemplate struct {
	Base
	Tiles   []string
	Edges   []string
	Corners []string
}

func (t *RoofTemplate) HasBlueprints() bool {
	return len(t.Tiles) > 0 && len(t.Edges) > 0 && len(t.Corners) > 0
}

func (t *RoofTemplate) CornerBlueprint(slot layout.Side) string {
	return t.Corners[int(slot)%len(t.Corners)]
}

func (t *RoofTemplate) Blueprints() []string {
	out := make([]string, 0, len(t.Tiles)+len(t.Edges)+len(t.Corners))
	out = append(out, t.Tiles...)
	out = append(out, t.Edges...)
	return append(out, t.Corners...)
}

func defaultBase(id string) Base {
	return Base{ID: id, Unit: layout.Vec3{4, 4, 4}, Width: 3, Depth: 3}
}

// NewFloorTemplate returns a 3x3 floor template with unit (4,4,4) and the
// stock blueprint names.
func NewFloorTemplate(id string) *FloorTemplate {
	return &FloorTemplate{
		Base:    defaultBase(id),
		Walls:   []string{"floor_wall_01"},
		Corners: []string{"floor_corner_01"},
	}
}

func NewRoofTemplate(id string) *RoofTemplate {
	return &RoofTemplate{
		Base:    defaultBase(id),
		Tiles:   []string{"roof_tile_01"},
		Edges:   []string{"roof_edge_01"},
		Corners: []string{"roof_corner_01"},
	}
}

// Kind tags the Template variant.
type Kind int

const (
	KindFloor Kind = iota + 1
	KindRoof
)

func (k Kind) String() string {
	switch k {
	case KindFloor:
		return "floor"
	case KindRoof:
		return "roof"
	default:
		return "unknown"
	}
}

// Template is either a floor or a roof template; Kind says which field is set.
type Template struct {
	Kind  Kind
	Floor *FloorTemplate
	Roof  *RoofTemplate
}

func FloorVariant(t *FloorTemplate) Template { return Template{Kind: KindFloor, Floor: t} }
func RoofVariant(t *RoofTemplate) Template   { return Template{Kind: KindRoof, Roof: t} }

func (t Template) ID() string {
	switch t.Kind {
	case KindFloor:
		return t.Floor.ID
	case KindRoof:
		return t.Roof.ID
	}
	return ""
}

// BuildingTemplate is the set of floor and roof templates a building is
// generated from. Template ids are unique within each set.
type BuildingTemplate struct {
	ID     string
	Floors []*FloorTemplate
	Roofs  []*RoofTemplate
}

func New(id string) *BuildingTemplate {
	return &BuildingTemplate{ID: id}
}

func (bt *BuildingTemplate) AddFloorTemplate(t *FloorTemplate) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("building template %s: floor template without id", bt.ID)
	}
	if bt.FloorTemplate(t.ID) != nil {
		return fmt.Errorf("building template %s: duplicate floor template %q", bt.ID, t.ID)
	}
	bt.Floors = append(bt.Floors, t)
	return nil
}

func (bt *BuildingTemplate) AddRoofTemplate(t *RoofTemplate) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("building template %s: roof template without id", bt.ID)
	}
	if bt.RoofTemplate(t.ID) != nil {
		return fmt.Errorf("building template %s: duplicate roof template %q", bt.ID, t.ID)
	}
	bt.Roofs = append(bt.Roofs, t)
	return nil
}

// FloorTemplate returns nil when id is unknown. Template counts are small,
// lookups scan.
func (bt *BuildingTemplate) FloorTemplate(id string) *FloorTemplate {
	for _, t := range bt.Floors {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (bt *BuildingTemplate) RoofTemplate(id string) *RoofTemplate {
	for _, t := range bt.Roofs {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AddTemplate dispatches on the variant tag.
func (bt *BuildingTemplate) AddTemplate(t Template) error {
	switch t.Kind {
	case KindFloor:
		return bt.AddFloorTemplate(t.Floor)
	case KindRoof:
		return bt.AddRoofTemplate(t.Roof)
	}
	return fmt.Errorf("building template %s: unknown template kind %d", bt.ID, t.Kind)
}

// TemplateByID checks roof templates first, then floor templates.
func (bt *BuildingTemplate) TemplateByID(id string) (Template, bool) {
	if t := bt.RoofTemplate(id); t != nil {
		return RoofVariant(t), true
	}
	if t := bt.FloorTemplate(id); t != nil {
		return FloorVariant(t), true
	}
	return Template{}, false
}

func (bt *BuildingTemplate) RemoveTemplateByID(id string) bool {
	t, ok := bt.TemplateByID(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case KindFloor:
		for i, f := range bt.Floors {
			if f == t.Floor {
				bt.Floors = append(bt.Floors[:i], bt.Floors[i+1:]...)
				break
			}
		}
	case KindRoof:
		for i, r := range bt.Roofs {
			if r == t.Roof {
				bt.Roofs = append(bt.Roofs[:i], bt.Roofs[i+1:]...)
				break
			}
		}
	}
	return true
}

// Validate checks the template lists without consulting the scene.
func (bt *BuildingTemplate) Validate() Validity {
	if len(bt.Floors) == 0 {
		return NoFloorTemplates
	}
	if len(bt.Roofs) == 0 {
		return NoRoofTemplates
	}
	ok := false
	for _, t := range bt.Floors {
		if t.HasBlueprints() {
			ok = true
			break
		}
	}
	if !ok {
		return NoValidFloorBlueprints
	}
	ok = false
	for _, t := range bt.Roofs {
		if t.HasBlueprints() {
			ok = true
			break
		}
	}
	if !ok {
		return NoValidRoofBlueprints
	}
	return Valid
}

func allExist(scene host.BlueprintChecker, names []string) bool {
	for _, n := range names {
		if !scene.Exists(n) {
			return false
		}
	}
	return true
}

// ValidFloorTemplates returns the floor templates whose required lists are
// non-empty and whose blueprints all exist in scene.
func (bt *BuildingTemplate) ValidFloorTemplates(scene host.BlueprintChecker) []*FloorTemplate {
	var out []*FloorTemplate
	for _, t := range bt.Floors {
		if !t.HasBlueprints() || !allExist(scene, t.Blueprints()) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (bt *BuildingTemplate) ValidFloorTemplateIDs(scene host.BlueprintChecker) []string {
	var out []string
	for _, t := range bt.ValidFloorTemplates(scene) {
		out = append(out, t.ID)
	}
	return out
}

func (bt *BuildingTemplate) ValidRoofTemplates(scene host.BlueprintChecker) []*RoofTemplate {
	var out []*RoofTemplate
	for _, t := range bt.Roofs {
		if !t.HasBlueprints() || !allExist(scene, t.Blueprints()) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (bt *BuildingTemplate) ValidRoofTemplateIDs(scene host.BlueprintChecker) []string {
	var out []string
	for _, t := range bt.ValidRoofTemplates(scene) {
		out = append(out, t.ID)
	}
	return out
}

// CheckScene refuses generation up front: it fails unless at least one
// floor and one roof template are fully backed by scene blueprints.
func (bt *BuildingTemplate) CheckScene(scene host.BlueprintChecker) error {
	if v := bt.Validate(); v != Valid {
		return &ValidationError{Template: bt.ID, Code: v}
	}
	if len(bt.ValidFloorTemplates(scene)) == 0 {
		return &ValidationError{Template: bt.ID, Code: NoValidFloorBlueprints, Missing: bt.missing(scene, true)}
	}
	if len(bt.ValidRoofTemplates(scene)) == 0 {
		return &ValidationError{Template: bt.ID, Code: NoValidRoofBlueprints, Missing: bt.missing(scene, false)}
	}
	return nil
}

// CheckFloor refuses ft unless its required lists are filled and every
// blueprint it names exists in scene.
func (bt *BuildingTemplate) CheckFloor(ft *FloorTemplate, scene host.BlueprintChecker) error {
	if !ft.HasBlueprints() {
		return &ValidationError{Template: bt.ID, Code: NoValidFloorBlueprints}
	}
	if m := missingFrom(scene, ft.Blueprints()); len(m) > 0 {
		return &ValidationError{Template: bt.ID, Code: NoValidFloorBlueprints, Missing: m}
	}
	return nil
}

func (bt *BuildingTemplate) CheckRoof(rt *RoofTemplate, scene host.BlueprintChecker) error {
	if !rt.HasBlueprints() {
		return &ValidationError{Template: bt.ID, Code: NoValidRoofBlueprints}
	}
	if m := missingFrom(scene, rt.Blueprints()); len(m) > 0 {
		return &ValidationError{Template: bt.ID, Code: NoValidRoofBlueprints, Missing: m}
	}
	return nil
}

func (bt *BuildingTemplate) missing(scene host.BlueprintChecker, floors bool) []string {
	var names []string
	if floors {
		for _, t := range bt.Floors {
			names = append(names, t.Blueprints()...)
		}
	} else {
		for _, t := range bt.Roofs {
			names = append(names, t.Blueprints()...)
		}
	}
	return missingFrom(scene, names)
}

func missingFrom(scene host.BlueprintChecker, names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] && !scene.Exists(n) {
			out = append(out, n)
		}
		seen[n] = true
	}
	return out
}

// Blueprints lists every blueprint referenced by the template, deduplicated,
// in template order.
func (bt *BuildingTemplate) Blueprints() []string {
	seen := map[string]bool{}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, t := range bt.Floors {
		add(t.Blueprints())
	}
	for _, t := range bt.Roofs {
		add(t.Blueprints())
	}
	return out
}
