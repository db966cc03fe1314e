package building

import (
	"errors"
	"fmt"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/layout"
)

// MetadataKey is the node attribute holding a serialized building.
const MetadataKey = "metaData"

var (
	ErrDestroyed     = errors.New("element destroyed")
	ErrNotFound      = errors.New("not found")
	ErrLevelOccupied = errors.New("level occupied")
)

// LookupError reports a missing floor, tile or corner. It matches
// ErrNotFound under errors.Is.
type LookupError struct {
	What string
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.What, e.Key, ErrNotFound)
}

func (e *LookupError) Unwrap() error { return ErrNotFound }

// Element is a scene node known by name. Every operation resolves the name
// through the scene, so the element never caches transforms.
type Element struct {
	name string
}

func NewElement(name string) Element { return Element{name: name} }

// Name is empty once the element was destroyed.
func (e *Element) Name() string { return e.name }

func (e *Element) Destroyed() bool { return e.name == "" }

func (e *Element) node() (string, error) {
	if e.name == "" {
		return "", ErrDestroyed
	}
	return e.name, nil
}

func (e *Element) Exists(s host.Scene) bool {
	return e.name != "" && s.Exists(e.name)
}

func (e *Element) Position(s host.Scene) (layout.Vec3, error) {
	n, err := e.node()
	if err != nil {
		return layout.Vec3{}, err
	}
	return s.Translate(n)
}

func (e *Element) SetPosition(s host.Scene, v layout.Vec3) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	return s.SetTranslate(n, v)
}

// Move translates the element by d relative to its current position.
func (e *Element) Move(s host.Scene, d layout.Vec3) error {
	p, err := e.Position(s)
	if err != nil {
		return err
	}
	return s.SetTranslate(e.name, p.Add(d))
}

func (e *Element) Rotation(s host.Scene) (layout.Vec3, error) {
	n, err := e.node()
	if err != nil {
		return layout.Vec3{}, err
	}
	return s.Rotate(n)
}

func (e *Element) SetRotation(s host.Scene, v layout.Vec3) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	return s.SetRotate(n, v)
}

// Rotate adds d (degrees per axis) to the current rotation. Each axis is
// kept in (-180, 180].
func (e *Element) Rotate(s host.Scene, d layout.Vec3) error {
	r, err := e.Rotation(s)
	if err != nil {
		return err
	}
	sum := r.Add(d)
	for i := range sum {
		sum[i] = layout.NormalizeAngle(sum[i])
	}
	return s.SetRotate(e.name, sum)
}

func (e *Element) Parent(s host.Scene) (string, error) {
	n, err := e.node()
	if err != nil {
		return "", err
	}
	return s.Parent(n)
}

func (e *Element) SetParent(s host.Scene, parent string) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	return s.SetParent(n, parent)
}

// Rename asks the scene for a new name and keeps whatever the scene returns.
func (e *Element) Rename(s host.Scene, name string) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	got, err := s.Rename(n, name)
	if err != nil {
		return err
	}
	e.name = got
	return nil
}

// Destroy deletes the node subtree. The element is invalid afterwards even
// when the node was already gone.
func (e *Element) Destroy(s host.Scene) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	e.name = ""
	if err := s.Delete(n); err != nil && !errors.Is(err, host.ErrNoSuchNode) {
		return err
	}
	return nil
}

func (e *Element) invalidate() { e.name = "" }

func (e *Element) WriteMetadata(s host.Scene, blob string) error {
	n, err := e.node()
	if err != nil {
		return err
	}
	return s.WriteAttribute(n, MetadataKey, blob)
}

func (e *Element) ReadMetadata(s host.Scene) (string, bool, error) {
	n, err := e.node()
	if err != nil {
		return "", false, err
	}
	return s.ReadAttribute(n, MetadataKey)
}

// Wall sits on a floor side.
type Wall struct {
	Element
	Side layout.Side
}

// Corner occupies slot Side (0..3) of a floor or roof.
type Corner struct {
	Element
	Side layout.Side
}

// Edge sits on a roof side.
type Edge struct {
	Element
	Side layout.Side
}

// Tile is an interior roof cell.
type Tile struct {
	Element
	Cell layout.Cell
}

func NewWall(name string, side layout.Side) *Wall {
	return &Wall{Element: NewElement(name), Side: side}
}

func NewCorner(name string, slot layout.Side) *Corner {
	return &Corner{Element: NewElement(name), Side: slot}
}

func NewEdge(name string, side layout.Side) *Edge {
	return &Edge{Element: NewElement(name), Side: side}
}

func NewTile(name string, cell layout.Cell) *Tile {
	return &Tile{Element: NewElement(name), Cell: cell}
}
