package log

import (
	"path/filepath"
	"testing"
	"time"

	"buildgen.ai/internal/sim/generator"
)

func TestJournalLogger_WritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	l := NewJournalLogger(dir)
	clock := time.Date(2026, 5, 1, 9, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteEntry(generator.JournalEntry{Op: "create_building", Building: "b"}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := l.WriteEntry(generator.JournalEntry{Op: "create_floor", Building: "b", Level: 0, Seed: 42}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteEntry(generator.JournalEntry{Op: "create_roof", Building: "b", Seed: 7}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := JournalFiles(dir)
	if err != nil {
		t.Fatalf("JournalFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 (hourly rotation)", files)
	}
	if filepath.Base(files[0]) != "journal-2026-05-01-09.jsonl.zst" {
		t.Fatalf("first file=%s", filepath.Base(files[0]))
	}

	first, err := ReadJournal(files[0])
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(first) != 2 || first[1].Op != "create_floor" || first[1].Seed != 42 {
		t.Fatalf("records=%+v", first)
	}
	if first[0].TimeUnixMs != time.Date(2026, 5, 1, 9, 59, 0, 0, time.UTC).UnixMilli() {
		t.Fatalf("time=%d", first[0].TimeUnixMs)
	}
	second, err := ReadJournal(files[1])
	if err != nil || len(second) != 1 || second[0].Op != "create_roof" {
		t.Fatalf("second=%+v err=%v", second, err)
	}
}

func TestJournalLogger_AppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewJournalLogger(dir)
		l.w.now = func() time.Time { return clock }
		if err := l.WriteEntry(generator.JournalEntry{Op: "destroy_floor", Building: "b", Level: i}); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
		_ = l.Close()
	}
	files, _ := JournalFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	recs, err := ReadJournal(files[0])
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(recs) != 2 || recs[1].Level != 1 {
		t.Fatalf("records=%+v", recs)
	}
}

func TestJournalLogger_OnCloseSeesEveryFile(t *testing.T) {
	dir := t.TempDir()
	var closed []string
	l := NewJournalLoggerWithOptions(dir, LoggerOptions{OnClose: func(p string) { closed = append(closed, p) }})
	clock := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	_ = l.WriteEntry(generator.JournalEntry{Op: "create_building", Building: "b"})
	clock = clock.Add(time.Hour)
	_ = l.WriteEntry(generator.JournalEntry{Op: "destroy_building", Building: "b"})
	if len(closed) != 1 || filepath.Base(closed[0]) != "journal-2026-05-01-09.jsonl.zst" {
		t.Fatalf("after rotation closed=%v", closed)
	}
	_ = l.Close()
	if len(closed) != 2 || filepath.Base(closed[1]) != "journal-2026-05-01-10.jsonl.zst" {
		t.Fatalf("after close closed=%v", closed)
	}
	// A second Close has nothing left to report.
	_ = l.Close()
	if len(closed) != 2 {
		t.Fatalf("double close closed=%v", closed)
	}
}
