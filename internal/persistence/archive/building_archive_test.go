package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"buildgen.ai/internal/persistence/snapshot"
)

func TestArchiveBuilding_MovesOnlyThatBuilding(t *testing.T) {
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mine := []string{snapshot.FileName("b", t0), snapshot.FileName("b", t0.Add(time.Minute))}
	theirs := snapshot.FileName("b-2", t0)
	for _, name := range append(mine, theirs) {
		// Dummy contents; the header of the newest is unreadable and is skipped.
		if err := os.WriteFile(filepath.Join(snapDir, name), []byte("dummy"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	now := t0.Add(time.Hour)
	archiveDir, ok, err := ArchiveBuilding(snapDir, filepath.Join(dir, "archives"), "b", now)
	if err != nil || !ok {
		t.Fatalf("archive ok=%v err=%v", ok, err)
	}
	if want := filepath.Join(dir, "archives", "b-20260501T100000"); archiveDir != want {
		t.Fatalf("archiveDir=%s want %s", archiveDir, want)
	}
	for _, name := range mine {
		if _, err := os.Stat(filepath.Join(archiveDir, name)); err != nil {
			t.Fatalf("archived %s: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(snapDir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s still in snapshots: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(snapDir, theirs)); err != nil {
		t.Fatalf("other building's snapshot moved: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(archiveDir, "meta.json"))
	if err != nil {
		t.Fatalf("meta.json: %v", err)
	}
	var meta BuildingArchiveMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Building != "b" || len(meta.Snapshots) != 2 || meta.Latest != nil {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveBuilding_NothingToArchive(t *testing.T) {
	dir := t.TempDir()
	for _, snapDir := range []string{filepath.Join(dir, "missing"), dir} {
		_, ok, err := ArchiveBuilding(snapDir, filepath.Join(dir, "archives"), "b", time.Now())
		if err != nil || ok {
			t.Fatalf("%s: ok=%v err=%v", snapDir, ok, err)
		}
	}
}
