// Package building is the in-memory model of a generated building: floors
// keyed by level, an optional roof, and the scene elements they own.
//
// The model never talks to the scene on its own; element operations take the
// scene as an argument and the generator decides when to call them.
package building

import (
	"fmt"
	"sort"
	"strconv"

	"buildgen.ai/internal/host"
)

// Building owns its floors and roof. The embedded Element is the root node.
type Building struct {
	Element
	TemplateID string

	floors map[int]*Floor
	roof   *Roof
}

func New(root, templateID string) *Building {
	return &Building{
		Element:    NewElement(root),
		TemplateID: templateID,
		floors:     map[int]*Floor{},
	}
}

// ID is the root node name the building was created with.
func (b *Building) ID() string { return b.Name() }

// AddFloor stores f under f.Level. An occupied level is refused.
func (b *Building) AddFloor(f *Floor) error {
	if _, ok := b.floors[f.Level]; ok {
		return fmt.Errorf("add floor at level %d: %w", f.Level, ErrLevelOccupied)
	}
	b.floors[f.Level] = f
	return nil
}

func (b *Building) FloorAt(level int) (*Floor, error) {
	f, ok := b.floors[level]
	if !ok {
		return nil, &LookupError{What: "floor", Key: strconv.Itoa(level)}
	}
	return f, nil
}

func (b *Building) HasFloorAt(level int) bool {
	_, ok := b.floors[level]
	return ok
}

func (b *Building) FloorCount() int { return len(b.floors) }

// RemoveFloor detaches the floor at level from the model without touching
// the scene.
func (b *Building) RemoveFloor(level int) (*Floor, error) {
	f, err := b.FloorAt(level)
	if err != nil {
		return nil, err
	}
	delete(b.floors, level)
	return f, nil
}

// Levels returns the occupied levels in ascending order.
func (b *Building) Levels() []int {
	out := make([]int, 0, len(b.floors))
	for l := range b.floors {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Floors returns the floors ordered by level.
func (b *Building) Floors() []*Floor {
	levels := b.Levels()
	out := make([]*Floor, 0, len(levels))
	for _, l := range levels {
		out = append(out, b.floors[l])
	}
	return out
}

func (b *Building) TopLevel() (int, bool) {
	levels := b.Levels()
	if len(levels) == 0 {
		return 0, false
	}
	return levels[len(levels)-1], true
}

func (b *Building) SetRoof(r *Roof) { b.roof = r }

// Roof is nil when the building has none.
func (b *Building) Roof() *Roof { return b.roof }

func (b *Building) HasRoof() bool { return b.roof != nil }

func (b *Building) RemoveRoof() *Roof {
	r := b.roof
	b.roof = nil
	return r
}

// Destroy deletes the whole building subtree and empties the model. Every
// part is destroyed even when one fails; the first failure is returned.
func (b *Building) Destroy(s host.Scene) error {
	var first error
	for _, l := range b.Levels() {
		if err := b.floors[l].Destroy(s); err != nil && first == nil {
			first = fmt.Errorf("destroy floor %d: %w", l, err)
		}
	}
	if b.roof != nil {
		if err := b.roof.Destroy(s); err != nil && first == nil {
			first = fmt.Errorf("destroy roof: %w", err)
		}
	}
	b.floors = map[int]*Floor{}
	b.roof = nil
	if !b.Destroyed() {
		if err := b.Element.Destroy(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
