package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqJournal}

	_ = s.WriteEntry(generator.JournalEntry{Op: "create_floor"})
	s.RecordSnapshot("/tmp/b.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropJournalTotal != 1 {
		t.Fatalf("DropJournalTotal=%d want=1", st.DropJournalTotal)
	}
	if st.DropBuildingTotal != 1 {
		t.Fatalf("DropBuildingTotal=%d want=1", st.DropBuildingTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_BuildingsAndJournal(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	snapAt := func(id string, floors int, saved int64) snapshot.SnapshotV1 {
		return snapshot.SnapshotV1{Header: snapshot.Header{
			Version: snapshot.Version, BuildingID: id, TemplateID: "town",
			Floors: floors, HasRoof: true, SavedUnix: saved,
		}}
	}
	idx.RecordSnapshot("/data/a-1.snap.zst", snapAt("a", 2, 100))
	idx.RecordSnapshot("/data/b-1.snap.zst", snapAt("b", 1, 200))
	idx.RecordSnapshot("/data/a-2.snap.zst", snapAt("a", 3, 300))
	_ = idx.WriteEntry(generator.JournalEntry{Op: "create_building", Building: "a", Template: "town"})
	_ = idx.WriteEntry(generator.JournalEntry{Op: "create_floor", Building: "a", Element: "storey", Seed: 1 << 62})
	_ = idx.WriteEntry(generator.JournalEntry{Op: "create_floor", Building: "b", Level: 4})

	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows, err := idx.ListBuildings(ctx)
	if err != nil {
		t.Fatalf("ListBuildings: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%+v want 2", rows)
	}
	if rows[0].ID != "a" || rows[0].Floors != 3 || rows[0].SnapshotPath != "/data/a-2.snap.zst" || !rows[0].HasRoof {
		t.Fatalf("latest save not kept: %+v", rows[0])
	}
	if rows[1].ID != "b" {
		t.Fatalf("order=%+v", rows)
	}

	ops, err := idx.Journal(ctx, "a")
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	if len(ops) != 2 || ops[0].Op != "create_building" || ops[1].Seed != 1<<62 || ops[1].Element != "storey" {
		t.Fatalf("journal=%+v", ops)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	bt := templates.New("town")
	_ = bt.AddFloorTemplate(templates.NewFloorTemplate("storey"))
	_ = bt.AddRoofTemplate(templates.NewRoofTemplate("flat"))
	cat := &templates.Catalog{
		ByID:    map[string]*templates.BuildingTemplate{"town": bt},
		Files:   map[string]string{"town": "town.yaml"},
		Digests: map[string]string{"town": "abc"},
		Digest:  "cat",
	}
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var digest, file, raw string
	if err := db.QueryRow(`SELECT digest,file,json FROM templates WHERE id='town'`).Scan(&digest, &file, &raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if digest != "abc" || file != "town.yaml" || raw == "" {
		t.Fatalf("row mismatch: digest=%q file=%q", digest, file)
	}
	var catDigest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='catalog_digest'`).Scan(&catDigest); err != nil || catDigest != "cat" {
		t.Fatalf("catalog_digest=%q err=%v", catDigest, err)
	}
}
