package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"buildgen.ai/internal/host/memscene"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
)

func blueprintScene(t *testing.T, bt *templates.BuildingTemplate) *memscene.Scene {
	t.Helper()
	s := memscene.New()
	for _, n := range bt.Blueprints() {
		if err := s.AddBlueprint(n); err != nil {
			t.Fatalf("AddBlueprint: %v", err)
		}
	}
	return s
}

func fixture(t *testing.T) (*building.Building, *templates.BuildingTemplate, *memscene.Scene) {
	t.Helper()
	bt := templates.New("town")
	ft := templates.NewFloorTemplate("storey")
	ft.Walls = []string{"floor_wall_01", "floor_wall_02"}
	ft.Width = 4
	_ = bt.AddFloorTemplate(ft)
	_ = bt.AddRoofTemplate(templates.NewRoofTemplate("flat"))
	s := blueprintScene(t, bt)
	g := generator.New(s)
	b, err := g.CreateEmptyBuilding("b", bt)
	if err != nil {
		t.Fatalf("CreateEmptyBuilding: %v", err)
	}
	for l := 0; l < 2; l++ {
		if _, err := g.CreateFloor(b, bt, ft, l, nil); err != nil {
			t.Fatalf("CreateFloor: %v", err)
		}
	}
	if _, err := g.CreateRoof(b, bt, bt.RoofTemplate("flat"), nil); err != nil {
		t.Fatalf("CreateRoof: %v", err)
	}
	return b, bt, s
}

func TestWriteRead_RoundTrip(t *testing.T) {
	b, bt, _ := fixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap, err := New(b, bt, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := filepath.Join(t.TempDir(), "snapshots", FileName("b", now))
	if filepath.Base(path) != "b-20260301T120000.snap.zst" {
		t.Fatalf("file name=%s", filepath.Base(path))
	}
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.BuildingID != "b" || h.Floors != 2 || !h.HasRoof || h.SavedUnix != now.Unix() {
		t.Fatalf("header=%+v", h)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("snapshot changed on disk:\n got %+v\nwant %+v", got, snap)
	}
	db, dbt, err := got.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if db.FloorCount() != 2 || dbt.FloorTemplate("storey") == nil {
		t.Fatalf("decoded floors=%d", db.FloorCount())
	}
}

func TestReplay_ReproducesPicks(t *testing.T) {
	b, bt, s := fixture(t)
	snap, err := New(b, bt, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fresh := blueprintScene(t, bt)
	got, err := Replay(generator.New(fresh), snap)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, l := range b.Levels() {
		want, _ := b.FloorAt(l)
		f, _ := got.FloorAt(l)
		for _, side := range layout.Sides {
			for i, w := range f.Walls[side] {
				if fresh.Source(w.Name()) != s.Source(want.Walls[side][i].Name()) {
					t.Fatalf("floor %d %s wall %d: pick differs", l, side, i)
				}
			}
		}
	}
	if got.Roof().Seed != b.Roof().Seed || len(got.Roof().Tiles) != len(b.Roof().Tiles) {
		t.Fatalf("roof differs after replay")
	}
}

func TestReadSnapshot_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error for corrupt snapshot")
	}
	if _, err := ReadHeader(path); err == nil {
		t.Fatalf("expected error for corrupt header")
	}
}

func TestParseFileName(t *testing.T) {
	at := time.Date(2026, 7, 4, 8, 30, 0, 0, time.UTC)
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{FileName("b", at), "b", true},
		{FileName("shop-2", at), "shop-2", true},
		{"/data/snapshots/" + FileName("b", at), "b", true},
		{"b-20260704T083000.json", "", false},
		{"b-yesterday.snap.zst", "", false},
		{"-20260704T083000.snap.zst", "", false},
	}
	for _, tc := range cases {
		id, saved, ok := ParseFileName(tc.name)
		if ok != tc.ok || id != tc.id {
			t.Fatalf("%s: id=%q ok=%v want %q %v", tc.name, id, ok, tc.id, tc.ok)
		}
		if ok && !saved.Equal(at) {
			t.Fatalf("%s: saved=%v want %v", tc.name, saved, at)
		}
	}
}
