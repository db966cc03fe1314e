package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"buildgen.ai/internal/host/memscene"
	"buildgen.ai/internal/persistence/codec"
	persistlog "buildgen.ai/internal/persistence/log"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
)

type generateOpts struct {
	Configs       string
	Template      string
	Building      string
	Floors        int
	FloorTemplate string
	RoofTemplate  string
	Seed          *int64
	Out           string
	JournalDir    string
	JSON          bool
}

// sceneFor returns a scene holding every blueprint bt references.
func sceneFor(bt *templates.BuildingTemplate) (*memscene.Scene, error) {
	scene := memscene.New()
	for _, bp := range bt.Blueprints() {
		if scene.Exists(bp) {
			continue
		}
		if err := scene.AddBlueprint(bp); err != nil {
			return nil, err
		}
	}
	return scene, nil
}

// planFor picks a template for every floor and the roof and draws every
// seed from rng, so one seed reproduces the whole building.
func planFor(bt *templates.BuildingTemplate, scene *memscene.Scene, opts generateOpts, rng *rand.Rand) (generator.Plan, error) {
	if err := bt.CheckScene(scene); err != nil {
		return generator.Plan{}, err
	}
	if opts.Floors < 1 {
		return generator.Plan{}, fmt.Errorf("floor count %d must be at least 1", opts.Floors)
	}
	floors := bt.ValidFloorTemplateIDs(scene)
	roofs := bt.ValidRoofTemplateIDs(scene)

	p := generator.Plan{BuildingID: opts.Building}
	roofID := opts.RoofTemplate
	if roofID == "" {
		roofID = roofs[rng.Intn(len(roofs))]
	}
	for level := 0; level < opts.Floors; level++ {
		id := opts.FloorTemplate
		if id == "" {
			id = floors[rng.Intn(len(floors))]
		}
		sd := rng.Int63()
		p.Floors = append(p.Floors, generator.PlannedPart{Level: level, TemplateID: id, Seed: &sd})
	}
	sd := rng.Int63()
	p.Roof = &generator.PlannedPart{TemplateID: roofID, Seed: &sd}
	return p, nil
}

func runGenerate(w io.Writer, opts generateOpts) error {
	cat, err := templates.LoadCatalog(opts.Configs)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	bt := cat.ByID[opts.Template]
	if bt == nil {
		return &building.LookupError{What: "building template", Key: opts.Template}
	}
	scene, err := sceneFor(bt)
	if err != nil {
		return err
	}

	seed := layout.FreshSeed()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	plan, err := planFor(bt, scene, opts, rng)
	if err != nil {
		return err
	}

	var genOpts []generator.Option
	if opts.JournalDir != "" {
		jl := persistlog.NewJournalLogger(opts.JournalDir)
		defer jl.Close()
		genOpts = append(genOpts, generator.WithJournal(jl))
	}
	gen := generator.New(scene, genOpts...)
	b, err := gen.Rebuild(bt, plan)
	if err != nil {
		return err
	}

	now := time.Now()
	snap, err := snapshot.New(b, bt, now)
	if err != nil {
		return err
	}
	path := filepath.Join(opts.Out, snapshot.FileName(b.ID(), now))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Fprintf(w, "building=%s template=%s seed=%d floors=%d nodes=%d\n", b.ID(), bt.ID, seed, b.FloorCount(), scene.Len())
	for _, f := range b.Floors() {
		fmt.Fprintf(w, "  floor %d: %s seed=%d walls=%d\n", f.Level, f.TemplateID, f.Seed, f.WallCount())
	}
	if r := b.Roof(); r != nil {
		fmt.Fprintf(w, "  roof: %s seed=%d tiles=%d\n", r.TemplateID, r.Seed, len(r.Tiles))
	}
	fmt.Fprintf(w, "snapshot %s\n", path)
	if opts.JSON {
		blob, err := codec.MarshalBuilding(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", blob)
	}
	return nil
}

func runValidate(w io.Writer, path, kind string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return validateCatalog(w, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" {
		bt, err := templates.Decode(filepath.Base(path), raw)
		if err != nil {
			return err
		}
		return reportTemplate(w, bt, filepath.Base(path))
	}

	switch kind {
	case "template":
		bt, err := codec.UnmarshalTemplate(raw)
		if err != nil {
			return err
		}
		return reportTemplate(w, bt, filepath.Base(path))
	case "building":
		b, err := codec.UnmarshalBuilding(raw)
		if err != nil {
			return err
		}
		return reportBuilding(w, b)
	case "auto":
		if bt, err := codec.UnmarshalTemplate(raw); err == nil {
			return reportTemplate(w, bt, filepath.Base(path))
		}
		if b, err := codec.UnmarshalBuilding(raw); err == nil {
			return reportBuilding(w, b)
		}
		// Catalog files use the catalog format, not the codec's.
		bt, err := templates.Decode(filepath.Base(path), raw)
		if err != nil {
			return fmt.Errorf("%s: neither a template nor a building blob", path)
		}
		return reportTemplate(w, bt, filepath.Base(path))
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}

func validateCatalog(w io.Writer, dir string) error {
	cat, err := templates.LoadCatalog(dir)
	if err != nil {
		return err
	}
	bad := 0
	for _, id := range cat.IDs() {
		if cat.ByID[id].Validate() != templates.Valid {
			bad++
		}
		if err := reportTemplate(w, cat.ByID[id], cat.Files[id]); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "catalog %s: %d templates digest=%s\n", dir, len(cat.ByID), cat.Digest)
	if bad > 0 {
		return fmt.Errorf("%d invalid templates", bad)
	}
	return nil
}

func reportTemplate(w io.Writer, bt *templates.BuildingTemplate, file string) error {
	v := bt.Validate()
	fmt.Fprintf(w, "template %s (%s): %s floors=%d roofs=%d blueprints=%d\n",
		bt.ID, file, v, len(bt.Floors), len(bt.Roofs), len(bt.Blueprints()))
	return nil
}

func reportBuilding(w io.Writer, b *building.Building) error {
	fmt.Fprintf(w, "building %s template=%s floors=%d roof=%v elements=%d\n",
		b.ID(), b.TemplateID, b.FloorCount(), b.HasRoof(), len(elementNames(b)))
	return nil
}

func runInspect(w io.Writer, paths []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tBUILDING\tTEMPLATE\tFLOORS\tROOF\tSAVED\tSIZE")
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\t%s\t%s\n",
			filepath.Base(p), h.BuildingID, h.TemplateID, h.Floors, h.HasRoof,
			humanize.Time(time.Unix(h.SavedUnix, 0)), humanize.Bytes(uint64(fi.Size())))
	}
	return tw.Flush()
}

func runReplay(w io.Writer, path string, verify bool) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	stored, bt, err := snap.Decode()
	if err != nil {
		return err
	}
	scene, err := sceneFor(bt)
	if err != nil {
		return err
	}
	b, err := snapshot.Replay(generator.New(scene), snap)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "snapshot v%d building=%s template=%s saved=%s\n",
		snap.Header.Version, snap.Header.BuildingID, snap.Header.TemplateID,
		time.Unix(snap.Header.SavedUnix, 0).UTC().Format(time.RFC3339))
	for _, f := range b.Floors() {
		fmt.Fprintf(w, "  floor %d: %s seed=%d walls=%s\n", f.Level, f.TemplateID, f.Seed, strings.Join(wallSources(scene, f), ","))
	}
	if r := b.Roof(); r != nil {
		fmt.Fprintf(w, "  roof: %s seed=%d tiles=%d\n", r.TemplateID, r.Seed, len(r.Tiles))
	}

	if !verify {
		return nil
	}
	want, got := elementNames(stored), elementNames(b)
	if diff := firstDiff(want, got); diff != "" {
		return fmt.Errorf("replay mismatch: %s", diff)
	}
	fmt.Fprintf(w, "verified %d elements\n", len(got))
	return nil
}

// wallSources lists the blueprint each wall was copied from, side by side.
func wallSources(scene *memscene.Scene, f *building.Floor) []string {
	var out []string
	for side := layout.Front; side <= layout.Right; side++ {
		for _, wall := range f.Walls[side] {
			out = append(out, scene.Source(wall.Name()))
		}
	}
	return out
}

// elementNames lists every wall, corner, tile and edge name, sorted. Group
// nodes are left out: their names carry per-run tokens.
func elementNames(b *building.Building) []string {
	var out []string
	for _, f := range b.Floors() {
		for _, ws := range f.Walls {
			for _, wall := range ws {
				out = append(out, wall.Name())
			}
		}
		for _, c := range f.Corners {
			out = append(out, c.Name())
		}
	}
	if r := b.Roof(); r != nil {
		for _, t := range r.Tiles {
			out = append(out, t.Name())
		}
		for _, es := range r.Edges {
			for _, e := range es {
				out = append(out, e.Name())
			}
		}
		for _, c := range r.Corners {
			out = append(out, c.Name())
		}
	}
	sort.Strings(out)
	return out
}

func firstDiff(want, got []string) string {
	if len(want) != len(got) {
		return fmt.Sprintf("%d elements stored, %d regenerated", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Sprintf("stored %s, regenerated %s", want[i], got[i])
		}
	}
	return ""
}

func runJournal(w io.Writer, dataDir, buildingID string) error {
	files, err := persistlog.JournalFiles(dataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no journal files under %s", filepath.Join(dataDir, "journal"))
	}
	n := 0
	for _, f := range files {
		recs, err := persistlog.ReadJournal(f)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if buildingID != "" && r.Building != buildingID {
				continue
			}
			ts := time.UnixMilli(r.TimeUnixMs).UTC().Format(time.RFC3339Nano)
			fmt.Fprintf(w, "%s %s building=%s level=%d", ts, r.Op, r.Building, r.Level)
			if r.Template != "" {
				fmt.Fprintf(w, " template=%s", r.Template)
			}
			if r.Element != "" {
				fmt.Fprintf(w, " element=%s", r.Element)
			}
			if r.Seed != 0 {
				fmt.Fprintf(w, " seed=%d", r.Seed)
			}
			fmt.Fprintln(w)
			n++
		}
	}
	fmt.Fprintf(w, "%d entries in %d files\n", n, len(files))
	return nil
}
