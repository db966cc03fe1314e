package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"buildgen.ai/internal/host/memscene"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
)

func roundTripFixture(t *testing.T) (*building.Building, *templates.BuildingTemplate) {
	t.Helper()
	s := memscene.New()
	for _, n := range []string{"floor_wall_01", "floor_corner_01", "roof_tile_01", "roof_edge_01", "roof_corner_01"} {
		_ = s.AddBlueprint(n)
	}
	bt := templates.New("town")
	ft := templates.NewFloorTemplate("storey")
	ft.Unit = layout.Vec3{4, 3, 4}
	ft.Width, ft.Depth = 5, 5
	rt := templates.NewRoofTemplate("flat")
	rt.Unit = layout.Vec3{4, 2, 4}
	rt.Width, rt.Depth = 5, 5
	_ = bt.AddFloorTemplate(ft)
	_ = bt.AddRoofTemplate(rt)

	g := generator.New(s)
	b, err := g.CreateEmptyBuilding("b", bt)
	if err != nil {
		t.Fatalf("CreateEmptyBuilding: %v", err)
	}
	for l := 0; l < 3; l++ {
		sd := int64(1)<<62 + int64(l)
		if _, err := g.CreateFloor(b, bt, ft, l, &sd); err != nil {
			t.Fatalf("CreateFloor: %v", err)
		}
	}
	if _, err := g.CreateRoof(b, bt, rt, nil); err != nil {
		t.Fatalf("CreateRoof: %v", err)
	}
	return b, bt
}

func TestBuilding_RoundTrip(t *testing.T) {
	b, _ := roundTripFixture(t)
	blob, err := MarshalBuilding(b)
	if err != nil {
		t.Fatalf("MarshalBuilding: %v", err)
	}
	got, err := UnmarshalBuilding(blob)
	if err != nil {
		t.Fatalf("UnmarshalBuilding: %v", err)
	}
	if got.Name() != "b" || got.TemplateID != "town" {
		t.Fatalf("object=%q template=%q", got.Name(), got.TemplateID)
	}
	if !reflect.DeepEqual(got.Levels(), []int{0, 1, 2}) {
		t.Fatalf("levels=%v", got.Levels())
	}
	if n := len(got.Roof().Tiles); n != 9 {
		t.Fatalf("tiles=%d want 9", n)
	}
	for _, l := range got.Levels() {
		want, _ := b.FloorAt(l)
		f, _ := got.FloorAt(l)
		if f.Name() != want.Name() || f.Seed != want.Seed || f.TemplateID != want.TemplateID {
			t.Fatalf("floor %d: got %s/%d/%s want %s/%d/%s", l, f.Name(), f.Seed, f.TemplateID, want.Name(), want.Seed, want.TemplateID)
		}
		if f.WallCount() != want.WallCount() || len(f.Corners) != 4 {
			t.Fatalf("floor %d: walls=%d corners=%d", l, f.WallCount(), len(f.Corners))
		}
		if f.Walls[layout.Back][1].Name() != want.Walls[layout.Back][1].Name() {
			t.Fatalf("wall order not preserved")
		}
	}
	if got.Roof().EdgeCount() != 12 || got.Roof().Seed != b.Roof().Seed {
		t.Fatalf("roof edges=%d seed=%d", got.Roof().EdgeCount(), got.Roof().Seed)
	}

	again, err := MarshalBuilding(got)
	if err != nil {
		t.Fatalf("MarshalBuilding again: %v", err)
	}
	if !bytes.Equal(blob, again) {
		t.Fatalf("re-encoded blob differs:\n%s\n%s", blob, again)
	}
}

func TestBuilding_WithoutRoof(t *testing.T) {
	b := building.New("lot", "t")
	blob, err := MarshalBuilding(b)
	if err != nil {
		t.Fatalf("MarshalBuilding: %v", err)
	}
	got, err := UnmarshalBuilding(blob)
	if err != nil {
		t.Fatalf("UnmarshalBuilding: %v", err)
	}
	if got.HasRoof() || got.FloorCount() != 0 {
		t.Fatalf("roof=%v floors=%d", got.HasRoof(), got.FloorCount())
	}
}

func TestBuilding_AcceptsRoofWithoutEdges(t *testing.T) {
	blob := `{"object":"b","template_id":"t","floors":{},
	  "roof":{"object":"b_roof","template_id":"r","seed":3,
	    "tiles":[{"object":"b_roof_tile_1_1","tile_position":[1,1]}],
	    "corners":{"0":{"object":"b_roof_front_corner","side":0}}}}`
	got, err := UnmarshalBuilding([]byte(blob))
	if err != nil {
		t.Fatalf("UnmarshalBuilding: %v", err)
	}
	if tile, err := got.Roof().Tile(layout.Cell{1, 1}); err != nil || tile.Name() != "b_roof_tile_1_1" {
		t.Fatalf("tile=%v err=%v", tile, err)
	}
	if got.Roof().EdgeCount() != 0 {
		t.Fatalf("unexpected edges")
	}
}

func TestBuilding_MalformedBlobs(t *testing.T) {
	floor := func(level string) string {
		return `{"object":"f","level":` + level + `,"walls":{},"corners":{},"template_id":"t","seed":1}`
	}
	cases := []struct {
		name string
		blob string
	}{
		{"not json", `{"object":`},
		{"array", `[]`},
		{"missing floors", `{"object":"b","template_id":"t"}`},
		{"wrong type", `{"object":1,"template_id":"t","floors":{}}`},
		{"bad side key", `{"object":"b","template_id":"t","floors":{"0":{"object":"f","level":0,"walls":{"7":[]},"corners":{},"template_id":"t","seed":1}}}`},
		{"level mismatch", `{"object":"b","template_id":"t","floors":{"1":` + floor("0") + `}}`},
		{"duplicate level", `{"object":"b","template_id":"t","floors":{"0":` + floor("0") + `,"00":` + floor("0") + `}}`},
		{"short tile position", `{"object":"b","template_id":"t","floors":{},"roof":{"object":"r","template_id":"r","seed":1,"tiles":[{"object":"x","tile_position":[1]}],"corners":{}}}`},
		{"fractional seed", `{"object":"b","template_id":"t","floors":{"0":{"object":"f","level":0,"walls":{},"corners":{},"template_id":"t","seed":1.5}}}`},
	}
	for _, tc := range cases {
		_, err := UnmarshalBuilding([]byte(tc.blob))
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected PersistenceError, got %v", tc.name, err)
		}
	}
}

func TestTemplate_RoundTrip(t *testing.T) {
	_, bt := roundTripFixture(t)
	extra := templates.NewFloorTemplate("tall")
	extra.Unit = layout.Vec3{4, 6.5, 4}
	extra.Corners = []string{"c1", "c2"}
	_ = bt.AddFloorTemplate(extra)

	blob, err := MarshalTemplate(bt)
	if err != nil {
		t.Fatalf("MarshalTemplate: %v", err)
	}
	got, err := UnmarshalTemplate(blob)
	if err != nil {
		t.Fatalf("UnmarshalTemplate: %v", err)
	}
	if !reflect.DeepEqual(got, bt) {
		t.Fatalf("template round trip:\n got %+v\nwant %+v", got, bt)
	}
}

func TestTemplate_Malformed(t *testing.T) {
	cases := []string{
		`{"id":"t","floor_templates":[],"roof_templates":[{"id":"r","unit":[4,0,4],"width":3,"depth":3,"tiles":[],"edges":[],"corners":[]}]}`,
		`{"id":"t","floor_templates":[{"id":"f","unit":[4,4,4],"width":0,"depth":3,"walls":[],"corners":[]}],"roof_templates":[]}`,
		`{"id":"","floor_templates":[],"roof_templates":[]}`,
		`{"id":"t","floor_templates":[{"id":"f","unit":[4,4,4],"width":3,"depth":3,"walls":[],"corners":[]},{"id":"f","unit":[4,4,4],"width":3,"depth":3,"walls":[],"corners":[]}],"roof_templates":[]}`,
	}
	for i, blob := range cases {
		_, err := UnmarshalTemplate([]byte(blob))
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("case %d: expected PersistenceError, got %v", i, err)
		}
	}
}
