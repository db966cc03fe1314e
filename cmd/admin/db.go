package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/buildings.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	buildingID := fs.String("building", "", "building filter (journal)")
	_ = fs.Parse(args)

	q := "buildings"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "buildings.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := query(os.Stdout, db, q, *buildingID, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

// query prints one JSON object per row.
func query(w io.Writer, db *sql.DB, q, buildingID string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "buildings":
		rows, err := db.Query(`SELECT id,template_id,floors,has_roof,saved_unix,snapshot_path FROM buildings ORDER BY saved_unix DESC, id LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID           string `json:"id"`
				TemplateID   string `json:"template_id"`
				Floors       int    `json:"floors"`
				HasRoof      bool   `json:"has_roof"`
				SavedUnix    int64  `json:"saved_unix"`
				SnapshotPath string `json:"snapshot_path"`
			}
			if err := rows.Scan(&r.ID, &r.TemplateID, &r.Floors, &r.HasRoof, &r.SavedUnix, &r.SnapshotPath); err != nil {
				return err
			}
			printJSON(w, r)
		}
		return rows.Err()
	case "journal":
		rows, err := db.Query(`SELECT seq,time_unix_ms,op,building,COALESCE(template,''),COALESCE(element,''),level,other_level,seed FROM journal
			WHERE (? = '' OR building = ?) ORDER BY seq DESC LIMIT ?`, buildingID, buildingID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq        int64  `json:"seq"`
				TimeUnixMs int64  `json:"time_unix_ms"`
				Op         string `json:"op"`
				Building   string `json:"building"`
				Template   string `json:"template,omitempty"`
				Element    string `json:"element,omitempty"`
				Level      int    `json:"level"`
				OtherLevel int    `json:"other_level"`
				Seed       int64  `json:"seed"`
			}
			if err := rows.Scan(&r.Seq, &r.TimeUnixMs, &r.Op, &r.Building, &r.Template, &r.Element, &r.Level, &r.OtherLevel, &r.Seed); err != nil {
				return err
			}
			printJSON(w, r)
		}
		return rows.Err()
	case "templates":
		rows, err := db.Query(`SELECT id,digest,file,updated_at FROM templates ORDER BY id LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID        string `json:"id"`
				Digest    string `json:"digest"`
				File      string `json:"file"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.ID, &r.Digest, &r.File, &r.UpdatedAt); err != nil {
				return err
			}
			printJSON(w, r)
		}
		return rows.Err()
	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out := map[string]string{}
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = v
		}
		if err := rows.Err(); err != nil {
			return err
		}
		printJSON(w, out)
		return nil
	default:
		return fmt.Errorf("unknown query %q (want buildings, journal, templates or meta)", q)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
