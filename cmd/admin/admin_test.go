package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buildgen.ai/internal/host/memscene"
	"buildgen.ai/internal/persistence/indexdb"
	"buildgen.ai/internal/persistence/profile"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
)

func writeSnapshot(t *testing.T, dir, id string, at time.Time) (string, snapshot.SnapshotV1) {
	t.Helper()
	bt := templates.New("town")
	_ = bt.AddFloorTemplate(templates.NewFloorTemplate("storey"))
	_ = bt.AddRoofTemplate(templates.NewRoofTemplate("flat"))
	scene := memscene.New()
	for _, bp := range bt.Blueprints() {
		if err := scene.AddBlueprint(bp); err != nil {
			t.Fatalf("AddBlueprint: %v", err)
		}
	}
	seed := int64(9)
	b, err := generator.New(scene).Rebuild(bt, generator.Plan{
		BuildingID: id,
		Floors:     []generator.PlannedPart{{Level: 0, TemplateID: "storey", Seed: &seed}},
		Roof:       &generator.PlannedPart{TemplateID: "flat", Seed: &seed},
	})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	snap, err := snapshot.New(b, bt, at)
	if err != nil {
		t.Fatalf("snapshot.New: %v", err)
	}
	path := filepath.Join(dir, snapshot.FileName(id, at))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	return path, snap
}

func TestListSnapshots_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old, _ := writeSnapshot(t, dir, "b", t0)
	newer, _ := writeSnapshot(t, dir, "b", t0.Add(time.Hour))
	other, _ := writeSnapshot(t, dir, "shop-2", t0.Add(2*time.Hour))
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	all, err := listSnapshots(dir, "")
	if err != nil {
		t.Fatalf("listSnapshots: %v", err)
	}
	if len(all) != 3 || all[0] != other || all[1] != newer || all[2] != old {
		t.Fatalf("all=%v", all)
	}
	if got := latestSnapshot(dir, "b"); got != newer {
		t.Fatalf("latest b=%s want %s", got, newer)
	}
	if got := latestSnapshot(dir, "shop-2"); got != other {
		t.Fatalf("latest shop-2=%s want %s", got, other)
	}
	if got := latestSnapshot(dir, "none"); got != "" {
		t.Fatalf("latest none=%s", got)
	}
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeSnapshot(t, dir, "b", time.Unix(1_700_000_000, 0))
	prefs := filepath.Join(dir, "prefs.db")

	id, err := restore(prefs, path, true)
	if err != nil || id != "b" {
		t.Fatalf("restore id=%s err=%v", id, err)
	}
	store, err := profile.Open(prefs)
	if err != nil {
		t.Fatalf("profile.Open: %v", err)
	}
	defer store.Close()
	blob, err := store.LoadBuilding("b")
	if err != nil || len(blob) == 0 {
		t.Fatalf("LoadBuilding blob=%d err=%v", len(blob), err)
	}
	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.CurBuilding != "b" || p.CurTemplate != "town" || p.Templates["town"] == nil {
		t.Fatalf("profile cur=%s/%s", p.CurTemplate, p.CurBuilding)
	}
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.sqlite")
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	path, snap := writeSnapshot(t, dir, "b", time.Unix(1_700_000_000, 0))
	idx.RecordSnapshot(path, snap)
	_ = idx.WriteEntry(generator.JournalEntry{Op: "create_floor", Building: "b", Template: "town", Element: "storey", Seed: 4})
	_ = idx.WriteEntry(generator.JournalEntry{Op: "create_floor", Building: "c", Template: "town", Element: "storey"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := query(&buf, db, "buildings", "", 0); err != nil {
		t.Fatalf("buildings: %v", err)
	}
	if !strings.Contains(buf.String(), `"id":"b"`) || !strings.Contains(buf.String(), `"has_roof":true`) {
		t.Fatalf("buildings=%s", buf.String())
	}

	buf.Reset()
	if err := query(&buf, db, "journal", "b", 10); err != nil {
		t.Fatalf("journal: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Fatalf("journal rows=%d out=%s", n, buf.String())
	}

	if err := query(&buf, db, "seasons", "", 10); err == nil {
		t.Fatalf("unknown query accepted")
	}
}
