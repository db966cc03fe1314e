package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of saved buildings, loaded
// template catalogs and generator operations. Writes are queued and applied
// by one goroutine; the snapshot files and journal remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropJournal  atomic.Uint64
	dropBuilding atomic.Uint64
}

type reqKind int

const (
	reqJournal reqKind = iota + 1
	reqBuilding
	reqFlush
)

type req struct {
	kind reqKind

	entry    journalRow
	building BuildingRow
	done     chan struct{}
}

type journalRow struct {
	TimeUnixMs int64
	generator.JournalEntry
}

// BuildingRow is the latest saved snapshot of one building.
type BuildingRow struct {
	ID           string
	TemplateID   string
	Floors       int
	HasRoof      bool
	SavedUnix    int64
	SnapshotPath string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropJournalTotal  uint64
	DropBuildingTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			file TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS buildings (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL,
			floors INTEGER NOT NULL,
			has_roof INTEGER NOT NULL,
			saved_unix INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time_unix_ms INTEGER NOT NULL,
			op TEXT NOT NULL,
			building TEXT NOT NULL,
			template TEXT,
			element TEXT,
			level INTEGER NOT NULL,
			other_level INTEGER NOT NULL,
			seed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_building ON journal(building, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropJournalTotal:  s.dropJournal.Load(),
		DropBuildingTotal: s.dropBuilding.Load(),
	}
}

// WriteEntry queues a generator operation. It never blocks: entries are
// dropped when the writer falls behind.
func (s *SQLiteIndex) WriteEntry(e generator.JournalEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqJournal, entry: journalRow{TimeUnixMs: time.Now().UnixMilli(), JournalEntry: e}}:
	default:
		s.dropJournal.Add(1)
	}
	return nil
}

var _ generator.Journal = (*SQLiteIndex)(nil)

// RecordSnapshot indexes the snapshot written at path as the building's
// latest save.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := BuildingRow{
		ID:           snap.Header.BuildingID,
		TemplateID:   snap.Header.TemplateID,
		Floors:       snap.Header.Floors,
		HasRoof:      snap.Header.HasRoof,
		SavedUnix:    snap.Header.SavedUnix,
		SnapshotPath: path,
	}
	select {
	case s.ch <- req{kind: reqBuilding, building: r}:
	default:
		s.dropBuilding.Add(1)
	}
}

// Flush waits until everything queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalog stores every template of cat and the tuning in effect. It
// runs synchronously; catalogs load once at startup.
func (s *SQLiteIndex) UpsertCatalog(cat *templates.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tb, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tb)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	metas := [][2]string{
		{"schema_version", "1"},
		{"catalog_digest", cat.Digest},
		{"tuning", string(tb)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
	}
	for _, kv := range metas {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO templates(id,digest,file,json,updated_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range cat.IDs() {
		raw, err := codec.MarshalTemplate(cat.ByID[id])
		if err != nil {
			return fmt.Errorf("template %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, cat.Digests[id], cat.Files[id], string(raw), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBuildings returns the indexed buildings, most recently saved first.
func (s *SQLiteIndex) ListBuildings(ctx context.Context) ([]BuildingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,template_id,floors,has_roof,saved_unix,snapshot_path FROM buildings ORDER BY saved_unix DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BuildingRow
	for rows.Next() {
		var r BuildingRow
		var roof int
		if err := rows.Scan(&r.ID, &r.TemplateID, &r.Floors, &roof, &r.SavedUnix, &r.SnapshotPath); err != nil {
			return nil, err
		}
		r.HasRoof = roof != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Journal returns the indexed operations on one building in write order.
func (s *SQLiteIndex) Journal(ctx context.Context, buildingID string) ([]generator.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT op,building,COALESCE(template,''),COALESCE(element,''),level,other_level,seed FROM journal WHERE building=? ORDER BY seq`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []generator.JournalEntry
	for rows.Next() {
		var e generator.JournalEntry
		if err := rows.Scan(&e.Op, &e.Building, &e.Template, &e.Element, &e.Level, &e.OtherLevel, &e.Seed); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertJournal, _ := s.db.Prepare(`INSERT INTO journal(time_unix_ms,op,building,template,element,level,other_level,seed) VALUES(?,?,?,?,?,?,?,?)`)
	upsertBuilding, _ := s.db.Prepare(`INSERT OR REPLACE INTO buildings(id,template_id,floors,has_roof,saved_unix,snapshot_path) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertJournal != nil {
			_ = insertJournal.Close()
		}
		if upsertBuilding != nil {
			_ = upsertBuilding.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqJournal:
			e := r.entry
			if insertJournal != nil {
				if _, err := tx.Stmt(insertJournal).Exec(
					e.TimeUnixMs,
					e.Op,
					e.Building,
					e.Template,
					e.Element,
					e.Level,
					e.OtherLevel,
					e.Seed,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBuilding:
			b := r.building
			roof := 0
			if b.HasRoof {
				roof = 1
			}
			if upsertBuilding != nil {
				if _, err := tx.Stmt(upsertBuilding).Exec(
					b.ID,
					b.TemplateID,
					b.Floors,
					roof,
					b.SavedUnix,
					b.SnapshotPath,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
