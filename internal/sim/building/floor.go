package building

import (
	"strconv"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/layout"
)

// Floor is one storey. The embedded Element is the floor root node.
type Floor struct {
	Element
	Level      int
	TemplateID string
	Seed       int64

	Walls   map[layout.Side][]*Wall
	Corners map[layout.Side]*Corner
}

func NewFloor(root string, level int, templateID string, seed int64) *Floor {
	return &Floor{
		Element:    NewElement(root),
		Level:      level,
		TemplateID: templateID,
		Seed:       seed,
		Walls:      map[layout.Side][]*Wall{},
		Corners:    map[layout.Side]*Corner{},
	}
}

// AddWall appends w to the ordered wall list of its side.
func (f *Floor) AddWall(w *Wall) {
	f.Walls[w.Side] = append(f.Walls[w.Side], w)
}

// RemoveWall drops w by identity.
func (f *Floor) RemoveWall(w *Wall) bool {
	list := f.Walls[w.Side]
	for i, x := range list {
		if x == w {
			f.Walls[w.Side] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (f *Floor) WallCount() int {
	n := 0
	for _, ws := range f.Walls {
		n += len(ws)
	}
	return n
}

func (f *Floor) SetCorner(c *Corner) { f.Corners[c.Side] = c }

func (f *Floor) Corner(slot layout.Side) (*Corner, error) {
	c, ok := f.Corners[slot]
	if !ok {
		return nil, &LookupError{What: "floor corner", Key: slot.String()}
	}
	return c, nil
}

func (f *Floor) RemoveCorner(slot layout.Side) *Corner {
	c := f.Corners[slot]
	delete(f.Corners, slot)
	return c
}

// Destroy deletes the floor subtree and invalidates every wall and corner.
func (f *Floor) Destroy(s host.Scene) error {
	for _, ws := range f.Walls {
		for _, w := range ws {
			w.invalidate()
		}
	}
	for _, c := range f.Corners {
		c.invalidate()
	}
	if f.Destroyed() {
		return nil
	}
	return f.Element.Destroy(s)
}

// Roof caps the building. Tiles cover interior cells only.
type Roof struct {
	Element
	TemplateID string
	Seed       int64

	Tiles   map[layout.Cell]*Tile
	Edges   map[layout.Side][]*Edge
	Corners map[layout.Side]*Corner
}

func NewRoof(root, templateID string, seed int64) *Roof {
	return &Roof{
		Element:    NewElement(root),
		TemplateID: templateID,
		Seed:       seed,
		Tiles:      map[layout.Cell]*Tile{},
		Edges:      map[layout.Side][]*Edge{},
		Corners:    map[layout.Side]*Corner{},
	}
}

func (r *Roof) SetTile(t *Tile) { r.Tiles[t.Cell] = t }

func (r *Roof) Tile(c layout.Cell) (*Tile, error) {
	t, ok := r.Tiles[c]
	if !ok {
		return nil, &LookupError{What: "roof tile", Key: strconv.Itoa(c[0]) + "," + strconv.Itoa(c[1])}
	}
	return t, nil
}

func (r *Roof) RemoveTile(c layout.Cell) *Tile {
	t := r.Tiles[c]
	delete(r.Tiles, c)
	return t
}

func (r *Roof) AddEdge(e *Edge) {
	r.Edges[e.Side] = append(r.Edges[e.Side], e)
}

func (r *Roof) RemoveEdge(e *Edge) bool {
	list := r.Edges[e.Side]
	for i, x := range list {
		if x == e {
			r.Edges[e.Side] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Roof) EdgeCount() int {
	n := 0
	for _, es := range r.Edges {
		n += len(es)
	}
	return n
}

func (r *Roof) SetCorner(c *Corner) { r.Corners[c.Side] = c }

func (r *Roof) Corner(slot layout.Side) (*Corner, error) {
	c, ok := r.Corners[slot]
	if !ok {
		return nil, &LookupError{What: "roof corner", Key: slot.String()}
	}
	return c, nil
}

func (r *Roof) Destroy(s host.Scene) error {
	for _, t := range r.Tiles {
		t.invalidate()
	}
	for _, es := range r.Edges {
		for _, e := range es {
			e.invalidate()
		}
	}
	for _, c := range r.Corners {
		c.invalidate()
	}
	if r.Destroyed() {
		return nil
	}
	return r.Element.Destroy(s)
}
