// Package codec converts buildings and building templates to and from the
// nested-map form kept in scene metadata and the preferences store.
//
// Map keys for levels, sides and corner slots are decimal strings; tile
// positions and units are arrays. Blobs are checked against a JSON schema
// before they are decoded.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
)

// PersistenceError reports a stored blob that could not be loaded.
type PersistenceError struct {
	What string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("load %s: %v", e.What, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func fail(what string, format string, args ...any) error {
	return &PersistenceError{What: what, Err: fmt.Errorf(format, args...)}
}

// ---- building ----

func EncodeBuilding(b *building.Building) map[string]any {
	floors := map[string]any{}
	for _, f := range b.Floors() {
		floors[strconv.Itoa(f.Level)] = encodeFloor(f)
	}
	m := map[string]any{
		"object":      b.Name(),
		"floors":      floors,
		"template_id": b.TemplateID,
	}
	if r := b.Roof(); r != nil {
		m["roof"] = encodeRoof(r)
	} else {
		m["roof"] = nil
	}
	return m
}

func element(name string, side layout.Side) map[string]any {
	return map[string]any{"object": name, "side": int(side)}
}

func encodeCorners(cs map[layout.Side]*building.Corner) map[string]any {
	out := map[string]any{}
	for slot, c := range cs {
		out[strconv.Itoa(int(slot))] = element(c.Name(), slot)
	}
	return out
}

func encodeFloor(f *building.Floor) map[string]any {
	walls := map[string]any{}
	for side, ws := range f.Walls {
		list := make([]any, 0, len(ws))
		for _, w := range ws {
			list = append(list, element(w.Name(), w.Side))
		}
		walls[strconv.Itoa(int(side))] = list
	}
	return map[string]any{
		"object":      f.Name(),
		"level":       f.Level,
		"walls":       walls,
		"corners":     encodeCorners(f.Corners),
		"template_id": f.TemplateID,
		"seed":        f.Seed,
	}
}

func encodeRoof(r *building.Roof) map[string]any {
	cells := make([]layout.Cell, 0, len(r.Tiles))
	for c := range r.Tiles {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i][0] != cells[j][0] {
			return cells[i][0] < cells[j][0]
		}
		return cells[i][1] < cells[j][1]
	})
	tiles := make([]any, 0, len(cells))
	for _, c := range cells {
		tiles = append(tiles, map[string]any{
			"object":        r.Tiles[c].Name(),
			"tile_position": []any{c[0], c[1]},
		})
	}
	edges := map[string]any{}
	for side, es := range r.Edges {
		list := make([]any, 0, len(es))
		for _, e := range es {
			list = append(list, element(e.Name(), e.Side))
		}
		edges[strconv.Itoa(int(side))] = list
	}
	return map[string]any{
		"object":      r.Name(),
		"tiles":       tiles,
		"edges":       edges,
		"corners":     encodeCorners(r.Corners),
		"template_id": r.TemplateID,
		"seed":        r.Seed,
	}
}

// DecodeBuilding rebuilds the model from its nested map. Element names are
// taken as stored; the scene is not consulted.
func DecodeBuilding(m map[string]any) (*building.Building, error) {
	const what = "building"
	d := decoder{what: what}
	b := building.New(d.str(m, "object"), d.str(m, "template_id"))
	for key, raw := range d.obj(m, "floors") {
		fm, ok := raw.(map[string]any)
		if !ok {
			return nil, fail(what, "floor %s: not an object", key)
		}
		f := d.floor(fm)
		if d.err != nil {
			return nil, d.err
		}
		if l, err := strconv.Atoi(key); err != nil || l != f.Level {
			return nil, fail(what, "floor key %s does not match level %d", key, f.Level)
		}
		if err := b.AddFloor(f); err != nil {
			return nil, &PersistenceError{What: what, Err: err}
		}
	}
	if rm, ok := m["roof"].(map[string]any); ok {
		r := d.roof(rm)
		if d.err != nil {
			return nil, d.err
		}
		b.SetRoof(r)
	}
	if d.err != nil {
		return nil, d.err
	}
	return b, nil
}

// decoder keeps the first error so the decode paths read straight through.
type decoder struct {
	what string
	err  error
}

func (d *decoder) setErr(format string, args ...any) {
	if d.err == nil {
		d.err = fail(d.what, format, args...)
	}
}

func (d *decoder) str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		d.setErr("missing %q", key)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.setErr("%q: want string, got %T", key, v)
	}
	return s
}

func (d *decoder) obj(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		d.setErr("missing %q", key)
		return nil
	}
	o, ok := v.(map[string]any)
	if !ok {
		d.setErr("%q: want object, got %T", key, v)
	}
	return o
}

func (d *decoder) list(m map[string]any, key string) []any {
	v, ok := m[key]
	if !ok {
		d.setErr("missing %q", key)
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		d.setErr("%q: want array, got %T", key, v)
	}
	return l
}

func (d *decoder) integer(v any, ctx string) int64 {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			d.setErr("%s: %v", ctx, err)
		}
		return i
	case float64:
		if n != float64(int64(n)) {
			d.setErr("%s: %v is not an integer", ctx, n)
		}
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	}
	d.setErr("%s: want integer, got %T", ctx, v)
	return 0
}

func (d *decoder) float(v any, ctx string) float64 {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			d.setErr("%s: %v", ctx, err)
		}
		return f
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	d.setErr("%s: want number, got %T", ctx, v)
	return 0
}

func (d *decoder) side(key string) layout.Side {
	s, err := layout.ParseSide(key)
	if err != nil {
		d.setErr("side %q: %v", key, err)
	}
	return s
}

func (d *decoder) elements(m map[string]any, key string, fn func(name string, side layout.Side)) {
	for sk, raw := range d.obj(m, key) {
		side := d.side(sk)
		items, ok := raw.([]any)
		if !ok {
			d.setErr("%s[%s]: want array, got %T", key, sk, raw)
			return
		}
		for _, it := range items {
			em, ok := it.(map[string]any)
			if !ok {
				d.setErr("%s[%s]: want object, got %T", key, sk, it)
				return
			}
			fn(d.str(em, "object"), side)
		}
	}
}

func (d *decoder) corners(m map[string]any, fn func(*building.Corner)) {
	for sk, raw := range d.obj(m, "corners") {
		slot := d.side(sk)
		em, ok := raw.(map[string]any)
		if !ok {
			d.setErr("corners[%s]: want object, got %T", sk, raw)
			return
		}
		fn(building.NewCorner(d.str(em, "object"), slot))
	}
}

func (d *decoder) floor(m map[string]any) *building.Floor {
	f := building.NewFloor(d.str(m, "object"), int(d.integer(m["level"], "level")), d.str(m, "template_id"), d.integer(m["seed"], "seed"))
	// Walls keep their stored order within a side.
	d.elements(m, "walls", func(name string, side layout.Side) {
		f.AddWall(building.NewWall(name, side))
	})
	d.corners(m, f.SetCorner)
	return f
}

func (d *decoder) roof(m map[string]any) *building.Roof {
	r := building.NewRoof(d.str(m, "object"), d.str(m, "template_id"), d.integer(m["seed"], "seed"))
	for _, raw := range d.list(m, "tiles") {
		tm, ok := raw.(map[string]any)
		if !ok {
			d.setErr("tiles: want object, got %T", raw)
			break
		}
		pos := d.list(tm, "tile_position")
		if len(pos) != 2 {
			d.setErr("tile_position: want 2 values, got %d", len(pos))
			break
		}
		c := layout.Cell{int(d.integer(pos[0], "tile_position")), int(d.integer(pos[1], "tile_position"))}
		r.SetTile(building.NewTile(d.str(tm, "object"), c))
	}
	// Blobs written before edges were stored have no "edges" key.
	if _, ok := m["edges"]; ok {
		d.elements(m, "edges", func(name string, side layout.Side) {
			r.AddEdge(building.NewEdge(name, side))
		})
	}
	d.corners(m, r.SetCorner)
	return r
}

// ---- templates ----

func unit(v layout.Vec3) []any { return []any{v[0], v[1], v[2]} }

func names(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func EncodeTemplate(bt *templates.BuildingTemplate) map[string]any {
	floors := make([]any, 0, len(bt.Floors))
	for _, t := range bt.Floors {
		floors = append(floors, map[string]any{
			"id":      t.ID,
			"unit":    unit(t.Unit),
			"width":   t.Width,
			"depth":   t.Depth,
			"walls":   names(t.Walls),
			"corners": names(t.Corners),
		})
	}
	roofs := make([]any, 0, len(bt.Roofs))
	for _, t := range bt.Roofs {
		roofs = append(roofs, map[string]any{
			"id":      t.ID,
			"unit":    unit(t.Unit),
			"width":   t.Width,
			"depth":   t.Depth,
			"tiles":   names(t.Tiles),
			"edges":   names(t.Edges),
			"corners": names(t.Corners),
		})
	}
	return map[string]any{
		"id":              bt.ID,
		"floor_templates": floors,
		"roof_templates":  roofs,
	}
}

func (d *decoder) stringList(m map[string]any, key string) []string {
	var out []string
	for _, v := range d.list(m, key) {
		s, ok := v.(string)
		if !ok {
			d.setErr("%q: want string, got %T", key, v)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (d *decoder) base(m map[string]any) templates.Base {
	b := templates.Base{
		ID:    d.str(m, "id"),
		Width: int(d.integer(m["width"], "width")),
		Depth: int(d.integer(m["depth"], "depth")),
	}
	u := d.list(m, "unit")
	if len(u) != 3 {
		d.setErr("unit: want 3 values, got %d", len(u))
		return b
	}
	for i := range u {
		b.Unit[i] = d.float(u[i], "unit")
	}
	return b
}

func DecodeTemplate(m map[string]any) (*templates.BuildingTemplate, error) {
	const what = "building template"
	d := decoder{what: what}
	bt := templates.New(d.str(m, "id"))
	for _, raw := range d.list(m, "floor_templates") {
		fm, ok := raw.(map[string]any)
		if !ok {
			return nil, fail(what, "floor template: not an object")
		}
		t := &templates.FloorTemplate{Base: d.base(fm), Walls: d.stringList(fm, "walls"), Corners: d.stringList(fm, "corners")}
		if d.err != nil {
			return nil, d.err
		}
		if err := bt.AddFloorTemplate(t); err != nil {
			return nil, &PersistenceError{What: what, Err: err}
		}
	}
	for _, raw := range d.list(m, "roof_templates") {
		rm, ok := raw.(map[string]any)
		if !ok {
			return nil, fail(what, "roof template: not an object")
		}
		t := &templates.RoofTemplate{Base: d.base(rm), Tiles: d.stringList(rm, "tiles"), Edges: d.stringList(rm, "edges"), Corners: d.stringList(rm, "corners")}
		if d.err != nil {
			return nil, d.err
		}
		if err := bt.AddRoofTemplate(t); err != nil {
			return nil, &PersistenceError{What: what, Err: err}
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return bt, nil
}

// ---- JSON ----

func MarshalBuilding(b *building.Building) ([]byte, error) {
	return json.Marshal(EncodeBuilding(b))
}

func UnmarshalBuilding(data []byte) (*building.Building, error) {
	m, err := decodeJSON("building", data, buildingSchema.Validate)
	if err != nil {
		return nil, err
	}
	return DecodeBuilding(m)
}

func MarshalTemplate(bt *templates.BuildingTemplate) ([]byte, error) {
	return json.Marshal(EncodeTemplate(bt))
}

func UnmarshalTemplate(data []byte) (*templates.BuildingTemplate, error) {
	m, err := decodeJSON("building template", data, templateSchema.Validate)
	if err != nil {
		return nil, err
	}
	return DecodeTemplate(m)
}

// ValidateTemplateMap checks an already decoded template map, e.g. one
// nested inside a profile.
func ValidateTemplateMap(m map[string]any) error {
	if err := templateSchema.Validate(m); err != nil {
		return &PersistenceError{What: "building template", Err: err}
	}
	return nil
}

// DecodeJSON parses data with numbers kept as json.Number so 63-bit seeds
// survive the round trip.
func DecodeJSON(what string, data []byte) (map[string]any, error) {
	return decodeJSON(what, data, nil)
}

func decodeJSON(what string, data []byte, validate func(any) error) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &PersistenceError{What: what, Err: err}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fail(what, "want object, got %T", v)
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return nil, &PersistenceError{What: what, Err: err}
		}
	}
	return m, nil
}
