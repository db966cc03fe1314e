package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/persistence/profile"
	"buildgen.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		case "buildings":
			buildingsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	buildingID := fs.String("building", "", "building id (optional)")
	_ = fs.Parse(args)

	snaps, err := listSnapshots(filepath.Join(*dataDir, "snapshots"), *buildingID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, s := range snaps {
		fmt.Println(s)
	}
}

// restoreCmd puts a snapshot's building back into the preferences db, where
// open_building finds it. The server must not hold the db open.
func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	buildingID := fs.String("building", "", "building id (used to pick the latest snapshot when -snapshot is empty)")
	snapPath := fs.String("snapshot", "", "snapshot path to restore from (optional; defaults to latest)")
	prefsPath := fs.String("prefs", "", "preferences db (default: <data>/prefs.db)")
	makeCurrent := fs.Bool("current", false, "also make the restored building the profile's current building")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*buildingID) == "" {
			fmt.Fprintln(os.Stderr, "missing -snapshot or -building")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "snapshots"), *buildingID)
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshots found")
			os.Exit(2)
		}
	}
	pp := *prefsPath
	if pp == "" {
		pp = filepath.Join(*dataDir, "prefs.db")
	}

	id, err := restore(pp, path, *makeCurrent)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Printf("restored building=%s from %s\n", id, path)
}

func restore(prefsPath, snapPath string, makeCurrent bool) (string, error) {
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return "", err
	}
	b, bt, err := snap.Decode()
	if err != nil {
		return "", err
	}
	blob, err := codec.MarshalBuilding(b)
	if err != nil {
		return "", err
	}

	store, err := profile.Open(prefsPath)
	if err != nil {
		return "", err
	}
	defer store.Close()
	if err := store.SaveBuilding(b.ID(), blob); err != nil {
		return "", err
	}
	if !makeCurrent {
		return b.ID(), nil
	}
	p, err := store.Load()
	if err != nil {
		return "", err
	}
	if p.Templates[bt.ID] == nil {
		p.AddTemplate(bt)
	}
	p.CurTemplate = bt.ID
	p.CurBuilding = b.ID()
	return b.ID(), store.Save(p)
}

// listSnapshots returns snapshot file paths, newest first.
func listSnapshots(dir, buildingID string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type entry struct {
		path  string
		saved time.Time
	}
	var found []entry
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		id, saved, ok := snapshot.ParseFileName(e.Name())
		if !ok || (buildingID != "" && id != buildingID) {
			continue
		}
		found = append(found, entry{filepath.Join(dir, e.Name()), saved})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].saved.After(found[j].saved) })
	out := make([]string, 0, len(found))
	for _, f := range found {
		out = append(out, f.path)
	}
	return out, nil
}

func latestSnapshot(dir, buildingID string) string {
	snaps, err := listSnapshots(dir, buildingID)
	if err != nil || len(snaps) == 0 {
		return ""
	}
	return snaps[0]
}
