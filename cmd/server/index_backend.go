package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/persistence/indexdb"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	generator.Journal
	Close() error
	UpsertCatalog(cat *templates.Catalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Flush(ctx context.Context) error
	ListBuildings(ctx context.Context) ([]indexdb.BuildingRow, error)
	Stats() indexdb.Stats
}

// openRuntimeIndex picks the index backend from BUILDGEN_INDEX_BACKEND. The
// result is nil when indexing is off.
func openRuntimeIndex(dataDir string, disableDB bool, logger log15.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BUILDGEN_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Info("index disabled", "backend", backend)
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "buildings.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		logger.Info("index opened", "path", dbPath)
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported BUILDGEN_INDEX_BACKEND: %s", backend)
	}
}
