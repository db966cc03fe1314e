// Package generator assembles buildings in a host scene from templates.
//
// Operations are synchronous and expect a single caller; the model and the
// scene are mutated in place. Random blueprint selection uses one Picker per
// call, seeded from the argument or from layout.FreshSeed.
package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
)

// JournalEntry is one engine operation as recorded by a Journal.
type JournalEntry struct {
	Op         string `json:"op"`
	Building   string `json:"building"`
	Template   string `json:"template,omitempty"`
	Element    string `json:"element_template,omitempty"`
	Level      int    `json:"level"`
	OtherLevel int    `json:"other_level,omitempty"`
	Seed       int64  `json:"seed,omitempty"`
}

type Journal interface {
	WriteEntry(JournalEntry) error
}

// Journals fans every entry out to js; nil journals are skipped. The first
// error is returned after all journals have been written.
func Journals(js ...Journal) Journal { return multiJournal(js) }

type multiJournal []Journal

func (m multiJournal) WriteEntry(e JournalEntry) error {
	var first error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.WriteEntry(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type relabel int

const (
	relabelNone relabel = iota
	relabelUp
	relabelDown
)

type Generator struct {
	scene   host.Scene
	log     log15.Logger
	journal Journal
	seed    func() int64
	token   func() string
}

type Option func(*Generator)

func WithLogger(l log15.Logger) Option { return func(g *Generator) { g.log = l } }

func WithJournal(j Journal) Option { return func(g *Generator) { g.journal = j } }

// WithSeedSource replaces layout.FreshSeed for calls without an explicit seed.
func WithSeedSource(f func() int64) Option { return func(g *Generator) { g.seed = f } }

// WithTokenSource replaces the random floor root token.
func WithTokenSource(f func() string) Option { return func(g *Generator) { g.token = f } }

func New(scene host.Scene, opts ...Option) *Generator {
	g := &Generator{
		scene: scene,
		seed:  layout.FreshSeed,
		token: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "_") },
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = log15.New()
		g.log.SetHandler(log15.DiscardHandler())
	}
	return g
}

func (g *Generator) Scene() host.Scene { return g.scene }

func (g *Generator) record(e JournalEntry) {
	if g.journal == nil {
		return
	}
	if err := g.journal.WriteEntry(e); err != nil {
		g.log.Warn("journal write failed", "op", e.Op, "err", err)
	}
}

func (g *Generator) pickSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return g.seed()
}

// ---- buildings ----

func (g *Generator) BuildingExists(id string) bool { return g.scene.Exists(id) }

func (g *Generator) DestroyBuilding(id string) error {
	if !g.BuildingExists(id) {
		return nil
	}
	g.record(JournalEntry{Op: "destroy_building", Building: id})
	return g.scene.Delete(id)
}

// CreateEmptyBuilding replaces any node called id with a fresh building root.
func (g *Generator) CreateEmptyBuilding(id string, bt *templates.BuildingTemplate) (*building.Building, error) {
	if err := g.DestroyBuilding(id); err != nil {
		return nil, err
	}
	root, err := g.scene.CreateNode(host.KindTransform, id)
	if err != nil {
		return nil, err
	}
	tid := ""
	if bt != nil {
		tid = bt.ID
	}
	g.log.Debug("building created", "building", root, "template", tid)
	g.record(JournalEntry{Op: "create_building", Building: root, Template: tid})
	return building.New(root, tid), nil
}

// ---- heights ----

func floorTemplate(bt *templates.BuildingTemplate, id string) (*templates.FloorTemplate, error) {
	t := bt.FloorTemplate(id)
	if t == nil {
		return nil, &building.LookupError{What: "floor template", Key: id}
	}
	return t, nil
}

func heights(b *building.Building, bt *templates.BuildingTemplate) (map[int]float64, error) {
	out := make(map[int]float64, b.FloorCount())
	for _, f := range b.Floors() {
		t, err := floorTemplate(bt, f.TemplateID)
		if err != nil {
			return nil, err
		}
		out[f.Level] = t.Height()
	}
	return out, nil
}

// CumulativeHeight is the base height of level: the summed unit heights of
// every floor below it.
func (g *Generator) CumulativeHeight(b *building.Building, bt *templates.BuildingTemplate, level int) (float64, error) {
	hs, err := heights(b, bt)
	if err != nil {
		return 0, err
	}
	return layout.CumulativeHeight(level, hs), nil
}

// RoofBaseHeight is the height of the whole floor stack.
func (g *Generator) RoofBaseHeight(b *building.Building, bt *templates.BuildingTemplate) (float64, error) {
	hs, err := heights(b, bt)
	if err != nil {
		return 0, err
	}
	return layout.TotalHeight(hs), nil
}

// ---- scene helpers ----

// ensureGroup returns the transform called name under parent, creating it
// when missing.
func (g *Generator) ensureGroup(name, parent string) (string, error) {
	if g.scene.Exists(name) {
		return name, nil
	}
	n, err := g.scene.CreateNode(host.KindTransform, name)
	if err != nil {
		return "", err
	}
	if err := g.scene.SetParent(n, parent); err != nil {
		return "", err
	}
	return n, nil
}

// freshGroup creates name under parent at local position pos, deleting a
// stale node of the same name first.
func (g *Generator) freshGroup(name, parent string, pos layout.Vec3) (string, error) {
	if g.scene.Exists(name) {
		g.log.Warn("replacing stale node", "node", name)
		if err := g.scene.Delete(name); err != nil {
			return "", err
		}
	}
	n, err := g.scene.CreateNode(host.KindTransform, name)
	if err != nil {
		return "", err
	}
	if err := g.scene.SetParent(n, parent); err != nil {
		return "", err
	}
	if err := g.scene.SetTranslate(n, pos); err != nil {
		return "", err
	}
	return n, nil
}

// place duplicates blueprint, names the copy and moves it to p (relative to
// origin) before parenting it.
func (g *Generator) place(blueprint, name string, p layout.Placement, origin layout.Vec3, parent string) (string, error) {
	n, err := g.scene.Duplicate(blueprint)
	if err != nil {
		return "", fmt.Errorf("duplicate %s: %w", blueprint, err)
	}
	if g.scene.Exists(name) {
		g.log.Warn("replacing stale node", "node", name)
		if err := g.scene.Delete(name); err != nil {
			return "", err
		}
	}
	if n, err = g.scene.Rename(n, name); err != nil {
		return "", err
	}
	if err := g.scene.SetTranslate(n, p.Position.Add(origin)); err != nil {
		return "", err
	}
	if err := g.scene.SetRotate(n, p.Rotation); err != nil {
		return "", err
	}
	if err := g.scene.SetParent(n, parent); err != nil {
		return "", err
	}
	return n, nil
}

func (g *Generator) origin(b *building.Building) (layout.Vec3, error) {
	return b.Position(g.scene)
}

// ---- floors ----

// CreateFloor generates a floor from ft at level. An existing floor at level
// is replaced and everything above it shifts by the difference in height;
// a new level shifts the roof up by the new floor's height.
func (g *Generator) CreateFloor(b *building.Building, bt *templates.BuildingTemplate, ft *templates.FloorTemplate, level int, seed *int64) (*building.Floor, error) {
	if ft == nil {
		return nil, &building.LookupError{What: "floor template", Key: ""}
	}
	if err := bt.CheckFloor(ft, g.scene); err != nil {
		return nil, err
	}

	if b.HasFloorAt(level) {
		old, _ := b.FloorAt(level)
		oldT, err := floorTemplate(bt, old.TemplateID)
		if err != nil {
			return nil, err
		}
		if _, err := b.RemoveFloor(level); err != nil {
			return nil, err
		}
		if err := old.Destroy(g.scene); err != nil {
			return nil, err
		}
		delta := ft.Height() - oldT.Height()
		if err := g.moveFloorsInRange(b, level+1, b.FloorCount(), delta, relabelNone); err != nil {
			return nil, err
		}
		if r := b.Roof(); r != nil {
			if err := r.Move(g.scene, layout.Up(delta)); err != nil {
				return nil, err
			}
		}
	} else if r := b.Roof(); r != nil {
		if err := r.Move(g.scene, layout.Up(ft.Height())); err != nil {
			return nil, err
		}
	}

	picker := layout.NewPicker(g.pickSeed(seed))

	h, err := g.CumulativeHeight(b, bt, level)
	if err != nil {
		return nil, err
	}
	floorsRoot, err := g.ensureGroup(FloorsRootName(b.ID()), b.Name())
	if err != nil {
		return nil, err
	}
	root, err := g.freshGroup(FloorRootName(b.ID(), g.token()), floorsRoot, layout.Up(h))
	if err != nil {
		return nil, err
	}
	f := building.NewFloor(root, level, ft.ID, picker.Seed())

	origin, err := g.origin(b)
	if err != nil {
		return nil, err
	}
	if err := g.createWalls(b, f, ft, picker, h, origin); err != nil {
		return nil, err
	}
	if err := g.createFloorCorners(b, f, ft, h, origin); err != nil {
		return nil, err
	}
	if err := b.AddFloor(f); err != nil {
		return nil, err
	}
	g.log.Debug("floor created", "building", b.ID(), "level", level, "template", ft.ID, "seed", f.Seed, "walls", f.WallCount())
	g.record(JournalEntry{Op: "create_floor", Building: b.ID(), Template: bt.ID, Element: ft.ID, Level: level, Seed: f.Seed})
	return f, nil
}

func (g *Generator) createWalls(b *building.Building, f *building.Floor, ft *templates.FloorTemplate, picker *layout.Picker, h float64, origin layout.Vec3) error {
	grid := ft.Grid()
	corners := len(ft.Corners) > 0
	for _, side := range layout.Sides {
		group, err := g.ensureGroup(FloorWallsRootName(f.Name(), side), f.Name())
		if err != nil {
			return err
		}
		for _, i := range grid.SlotIndices(side, corners) {
			bp := ft.Walls[picker.Index(len(ft.Walls))]
			n, err := g.place(bp, WallName(b.ID(), f.Level, side, i), grid.Wall(side, i, h), origin, group)
			if err != nil {
				return err
			}
			f.AddWall(building.NewWall(n, side))
		}
	}
	return nil
}

func (g *Generator) createFloorCorners(b *building.Building, f *building.Floor, ft *templates.FloorTemplate, h float64, origin layout.Vec3) error {
	if len(ft.Corners) == 0 {
		return nil
	}
	grid := ft.Grid()
	group, err := g.ensureGroup(FloorCornersRootName(f.Name()), f.Name())
	if err != nil {
		return err
	}
	for _, slot := range layout.Sides {
		n, err := g.place(ft.CornerBlueprint(slot), FloorCornerName(b.ID(), f.Level, slot), grid.FloorCorner(slot, h), origin, group)
		if err != nil {
			return err
		}
		f.SetCorner(building.NewCorner(n, slot))
	}
	return nil
}

// ---- roof ----

// CreateRoof replaces the roof with one generated from rt on top of the
// current floor stack.
func (g *Generator) CreateRoof(b *building.Building, bt *templates.BuildingTemplate, rt *templates.RoofTemplate, seed *int64) (*building.Roof, error) {
	if rt == nil {
		return nil, &building.LookupError{What: "roof template", Key: ""}
	}
	if err := bt.CheckRoof(rt, g.scene); err != nil {
		return nil, err
	}
	if old := b.RemoveRoof(); old != nil {
		if err := old.Destroy(g.scene); err != nil {
			return nil, err
		}
	}

	picker := layout.NewPicker(g.pickSeed(seed))

	h, err := g.RoofBaseHeight(b, bt)
	if err != nil {
		return nil, err
	}
	root, err := g.freshGroup(RoofRootName(b.ID()), b.Name(), layout.Up(h))
	if err != nil {
		return nil, err
	}
	r := building.NewRoof(root, rt.ID, picker.Seed())
	origin, err := g.origin(b)
	if err != nil {
		return nil, err
	}
	grid := rt.Grid()

	tiles, err := g.ensureGroup(RoofTilesRootName(root), root)
	if err != nil {
		return nil, err
	}
	for _, c := range grid.TileCells() {
		bp := rt.Tiles[picker.Index(len(rt.Tiles))]
		n, err := g.place(bp, TileName(b.ID(), c), grid.Tile(c, h), origin, tiles)
		if err != nil {
			return nil, err
		}
		r.SetTile(building.NewTile(n, c))
	}

	corners := len(rt.Corners) > 0
	for _, side := range layout.Sides {
		group, err := g.ensureGroup(RoofEdgesRootName(root, side), root)
		if err != nil {
			return nil, err
		}
		for _, i := range grid.SlotIndices(side, corners) {
			bp := rt.Edges[picker.Index(len(rt.Edges))]
			n, err := g.place(bp, EdgeName(b.ID(), side, i), grid.Edge(side, i, h), origin, group)
			if err != nil {
				return nil, err
			}
			r.AddEdge(building.NewEdge(n, side))
		}
	}

	cg, err := g.ensureGroup(RoofCornersRootName(root), root)
	if err != nil {
		return nil, err
	}
	for _, slot := range layout.Sides {
		n, err := g.place(rt.CornerBlueprint(slot), RoofCornerName(b.ID(), slot), grid.RoofCorner(slot, h), origin, cg)
		if err != nil {
			return nil, err
		}
		r.SetCorner(building.NewCorner(n, slot))
	}

	b.SetRoof(r)
	g.log.Debug("roof created", "building", b.ID(), "template", rt.ID, "seed", r.Seed, "tiles", len(r.Tiles))
	g.record(JournalEntry{Op: "create_roof", Building: b.ID(), Template: bt.ID, Element: rt.ID, Seed: r.Seed})
	return r, nil
}

// ---- floor edits ----

// SwapFloors exchanges the floors at l1 and l2. Floors strictly between them
// shift by the height difference of the two swapped floors.
func (g *Generator) SwapFloors(b *building.Building, bt *templates.BuildingTemplate, l1, l2 int) error {
	lo, hi := l1, l2
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return nil
	}
	fLo, err := b.FloorAt(lo)
	if err != nil {
		return err
	}
	fHi, err := b.FloorAt(hi)
	if err != nil {
		return err
	}
	tLo, err := floorTemplate(bt, fLo.TemplateID)
	if err != nil {
		return err
	}
	tHi, err := floorTemplate(bt, fHi.TemplateID)
	if err != nil {
		return err
	}

	if _, err := b.RemoveFloor(lo); err != nil {
		return err
	}
	if _, err := b.RemoveFloor(hi); err != nil {
		return err
	}
	// fLo is parked under a temporary label so the two renames never collide.
	if err := g.relabel(b, fLo, "swap_"+g.token()); err != nil {
		return err
	}
	if err := g.relabelLevel(b, fHi, lo); err != nil {
		return err
	}
	if err := g.relabelLevel(b, fLo, hi); err != nil {
		return err
	}
	if err := b.AddFloor(fHi); err != nil {
		return err
	}
	if err := b.AddFloor(fLo); err != nil {
		return err
	}

	if hi-lo > 1 {
		if err := g.moveFloorsInRange(b, lo+1, hi-1, tHi.Height()-tLo.Height(), relabelNone); err != nil {
			return err
		}
	}
	for _, f := range []*building.Floor{fHi, fLo} {
		h, err := g.CumulativeHeight(b, bt, f.Level)
		if err != nil {
			return err
		}
		if err := f.SetPosition(g.scene, layout.Up(h)); err != nil {
			return err
		}
	}
	g.record(JournalEntry{Op: "swap_floors", Building: b.ID(), Template: bt.ID, Level: lo, OtherLevel: hi})
	return nil
}

// DestroyFloor removes the floor at level; floors above move down one level
// and the roof drops by the removed height.
func (g *Generator) DestroyFloor(b *building.Building, bt *templates.BuildingTemplate, level int) error {
	f, err := b.FloorAt(level)
	if err != nil {
		return err
	}
	t, err := floorTemplate(bt, f.TemplateID)
	if err != nil {
		return err
	}
	if _, err := b.RemoveFloor(level); err != nil {
		return err
	}
	if err := f.Destroy(g.scene); err != nil {
		return err
	}
	if err := g.moveFloorsInRange(b, level+1, b.FloorCount(), -t.Height(), relabelDown); err != nil {
		return err
	}
	if r := b.Roof(); r != nil {
		if err := r.Move(g.scene, layout.Up(-t.Height())); err != nil {
			return err
		}
	}
	g.record(JournalEntry{Op: "destroy_floor", Building: b.ID(), Template: bt.ID, Level: level})
	return nil
}

// InsertFloor opens a gap at level by lifting the floors at and above it,
// then generates a new floor there.
func (g *Generator) InsertFloor(b *building.Building, bt *templates.BuildingTemplate, ft *templates.FloorTemplate, level int, seed *int64) (*building.Floor, error) {
	if ft == nil {
		return nil, &building.LookupError{What: "floor template", Key: ""}
	}
	if err := bt.CheckFloor(ft, g.scene); err != nil {
		return nil, err
	}
	if n := b.FloorCount(); level <= n-1 {
		if err := g.moveFloorsInRange(b, level, n-1, ft.Height(), relabelUp); err != nil {
			return nil, err
		}
	}
	return g.CreateFloor(b, bt, ft, level, seed)
}

// moveFloorsInRange shifts every floor in [start, end] vertically by dy and
// optionally moves it one level up (processed top down) or down (bottom up).
func (g *Generator) moveFloorsInRange(b *building.Building, start, end int, dy float64, mode relabel) error {
	for l := start; l <= end; l++ {
		f, err := b.FloorAt(l)
		if err != nil {
			return err
		}
		if err := f.Move(g.scene, layout.Up(dy)); err != nil {
			return err
		}
	}
	switch mode {
	case relabelUp:
		for l := end; l >= start; l-- {
			if err := g.shiftLevel(b, l, l+1); err != nil {
				return err
			}
		}
	case relabelDown:
		for l := start; l <= end; l++ {
			if err := g.shiftLevel(b, l, l-1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Generator) shiftLevel(b *building.Building, from, to int) error {
	f, err := b.RemoveFloor(from)
	if err != nil {
		return err
	}
	if err := g.relabelLevel(b, f, to); err != nil {
		return err
	}
	return b.AddFloor(f)
}

func (g *Generator) relabelLevel(b *building.Building, f *building.Floor, level int) error {
	if err := g.relabel(b, f, fmt.Sprint(level)); err != nil {
		return err
	}
	f.Level = level
	return nil
}

// relabel renames the floor's walls and corners to the names they would have
// been generated with under label.
func (g *Generator) relabel(b *building.Building, f *building.Floor, label string) error {
	corners := len(f.Corners) > 0
	for _, side := range layout.Sides {
		for pos, w := range f.Walls[side] {
			if w.Destroyed() {
				continue
			}
			if err := w.Rename(g.scene, wallName(b.ID(), label, side, layout.SlotOffset(pos, corners))); err != nil {
				return fmt.Errorf("relabel floor %d: %w", f.Level, err)
			}
		}
	}
	for _, slot := range layout.Sides {
		c, ok := f.Corners[slot]
		if !ok || c.Destroyed() {
			continue
		}
		if err := c.Rename(g.scene, floorCornerName(b.ID(), label, slot)); err != nil {
			return fmt.Errorf("relabel floor %d: %w", f.Level, err)
		}
	}
	return nil
}

// IsLookup reports whether err is a missing level, tile, corner or template.
func IsLookup(err error) bool {
	return errors.Is(err, building.ErrNotFound)
}
