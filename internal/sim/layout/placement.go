package layout

import "sort"

// Grid is the geometric part of a template: the size of one module and the
// number of modules along x (width) and z (depth).
type Grid struct {
	Unit  Vec3
	Width int
	Depth int
}

// Placement is a computed transform for one element.
type Placement struct {
	Position Vec3
	Rotation Vec3
}

func half(unit float64) float64 { return unit * 0.5 }

// HalfExtent is the offset of the first module centre from the centreline
// of a run of length modules of size step.
func HalfExtent(length int, step float64) float64 {
	return float64(length)*0.5*step - half(step)
}

// SideLength is the number of module slots along side.
func (g Grid) SideLength(side Side) int {
	if side == Left || side == Right {
		return g.Depth
	}
	return g.Width
}

// SlotIndices lists the indices used along side. With corners the first and
// last slots belong to the corner elements and are skipped.
func (g Grid) SlotIndices(side Side, corners bool) []int {
	n := g.SideLength(side)
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if corners && (i == 0 || i == n-1) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// SlotOffset converts a position in the ordered per-side element list back
// into its slot index.
func SlotOffset(pos int, corners bool) int {
	if corners {
		return pos + 1
	}
	return pos
}

// Wall places wall i of side at base height h.
func (g Grid) Wall(side Side, i int, h float64) Placement {
	startX := HalfExtent(g.Width, g.Unit[0])
	startZ := HalfExtent(g.Depth, g.Unit[2])

	pos := Vec3{0, h + half(g.Unit[1]), 0}
	switch side {
	case Front:
		pos[0] = startX - float64(i)*g.Unit[0]
		pos[2] = float64(g.Depth) * half(g.Unit[2])
	case Back:
		pos[0] = startX - float64(i)*g.Unit[0]
		pos[2] = -float64(g.Depth) * half(g.Unit[2])
	case Left:
		pos[0] = float64(g.Width) * half(g.Unit[0])
		pos[2] = startZ - float64(i)*g.Unit[2]
	case Right:
		pos[0] = -float64(g.Width) * half(g.Unit[0])
		pos[2] = startZ - float64(i)*g.Unit[2]
	}
	return Placement{Position: pos, Rotation: side.Rotation()}
}

// FloorCorner places corner slot at base height h.
func (g Grid) FloorCorner(slot Side, h float64) Placement {
	pos := Vec3{
		float64(g.Width) * half(g.Unit[0]) * CornerWidthSign(slot),
		h + half(g.Unit[1]),
		float64(g.Depth) * half(g.Unit[2]) * CornerDepthSign(slot),
	}
	return Placement{Position: pos, Rotation: slot.Rotation()}
}

// Edge places roof edge i of side at roof height h. Edges sit one half unit
// inside the wall line.
func (g Grid) Edge(side Side, i int, h float64) Placement {
	startX := HalfExtent(g.Width, g.Unit[0])
	startZ := HalfExtent(g.Depth, g.Unit[2])
	hx, hz := half(g.Unit[0]), half(g.Unit[2])

	pos := Vec3{0, h, 0}
	switch side {
	case Front:
		pos[0] = startX - float64(i)*g.Unit[0]
		pos[2] = float64(g.Depth)*hz - hz
	case Back:
		pos[0] = startX - float64(i)*g.Unit[0]
		pos[2] = -float64(g.Depth)*hz + hz
	case Left:
		pos[0] = float64(g.Width)*hx - hx
		pos[2] = startZ - float64(i)*g.Unit[2]
	case Right:
		pos[0] = -float64(g.Width)*hx + hx
		pos[2] = startZ - float64(i)*g.Unit[2]
	}
	return Placement{Position: pos, Rotation: side.Rotation()}
}

// RoofCorner places roof corner slot at roof height h.
func (g Grid) RoofCorner(slot Side, h float64) Placement {
	ox := half(g.Unit[0]) * CornerWidthSign(slot)
	oz := half(g.Unit[2]) * CornerDepthSign(slot)
	pos := Vec3{
		float64(g.Width)*ox - ox,
		h,
		float64(g.Depth)*oz - oz,
	}
	return Placement{Position: pos, Rotation: slot.Rotation()}
}

// Cell is a roof grid coordinate.
type Cell [2]int

// IsBorder reports whether c lies in the first/last row or column.
func (g Grid) IsBorder(c Cell) bool {
	return c[0] == 0 || c[1] == 0 || c[0] == g.Width-1 || c[1] == g.Depth-1
}

// TileCells lists the interior cells in generation order: x ascending, then
// y ascending.
func (g Grid) TileCells() []Cell {
	var out []Cell
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Depth; y++ {
			c := Cell{x, y}
			if g.IsBorder(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// Tile places the tile at c at roof height h. Tiles are not rotated.
func (g Grid) Tile(c Cell, h float64) Placement {
	pos := Vec3{
		HalfExtent(g.Width, g.Unit[0]) - float64(c[0])*g.Unit[0],
		h,
		HalfExtent(g.Depth, g.Unit[2]) - float64(c[1])*g.Unit[2],
	}
	return Placement{Position: pos}
}

// CumulativeHeight sums the unit heights of every floor whose level is
// strictly below level. heights maps level to that floor's unit height.
func CumulativeHeight(level int, heights map[int]float64) float64 {
	levels := make([]int, 0, len(heights))
	for l := range heights {
		if l < level {
			levels = append(levels, l)
		}
	}
	// Sum in level order so results do not depend on map iteration.
	sort.Ints(levels)
	var h float64
	for _, l := range levels {
		h += heights[l]
	}
	return h
}

// TotalHeight is the height of the whole stack, where the roof sits.
func TotalHeight(heights map[int]float64) float64 {
	levels := make([]int, 0, len(heights))
	for l := range heights {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	var h float64
	for _, l := range levels {
		h += heights[l]
	}
	return h
}
