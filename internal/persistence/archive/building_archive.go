// Package archive moves the snapshots of destroyed buildings out of the live
// snapshot directory.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"buildgen.ai/internal/persistence/snapshot"
)

type BuildingArchiveMeta struct {
	Building  string   `json:"building"`
	Snapshots []string `json:"snapshots"`
	Latest    *Latest  `json:"latest,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// Latest summarizes the newest archived snapshot.
type Latest struct {
	TemplateID string `json:"template_id"`
	Floors     int    `json:"floors"`
	HasRoof    bool   `json:"has_roof"`
	SavedUnix  int64  `json:"saved_unix"`
}

// ArchiveBuilding moves every snapshot of buildingID from snapDir into
// `archiveRoot/<building>-<stamp>/` and writes a meta.json beside them. It
// returns archived=false when the building has no snapshots.
func ArchiveBuilding(snapDir, archiveRoot, buildingID string, now time.Time) (archiveDir string, archived bool, err error) {
	ents, err := os.ReadDir(snapDir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if id, _, ok := snapshot.ParseFileName(e.Name()); ok && id == buildingID {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false, nil
	}
	// Stamps sort lexically in time order.
	sort.Strings(names)

	archiveDir = filepath.Join(archiveRoot, fmt.Sprintf("%s-%s", buildingID, now.UTC().Format("20060102T150405")))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	for _, name := range names {
		if err := moveFile(filepath.Join(snapDir, name), filepath.Join(archiveDir, name)); err != nil {
			return "", false, err
		}
	}

	meta := BuildingArchiveMeta{
		Building:  buildingID,
		Snapshots: names,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if h, err := snapshot.ReadHeader(filepath.Join(archiveDir, names[len(names)-1])); err == nil {
		meta.Latest = &Latest{TemplateID: h.TemplateID, Floors: h.Floors, HasRoof: h.HasRoof, SavedUnix: h.SavedUnix}
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return archiveDir, true, nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
