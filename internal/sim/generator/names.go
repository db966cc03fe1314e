package generator

import (
	"fmt"
	"strconv"

	"buildgen.ai/internal/sim/layout"
)

// Node names are derived from the building id so that a building can be
// found again by walking its root. The floor root is the only name with a
// random component.

func FloorsRootName(building string) string { return building + "_floors" }

func FloorRootName(building, token string) string { return building + "_floor_" + token }

func FloorWallsRootName(floorRoot string, side layout.Side) string {
	return floorRoot + "_walls_" + side.String()
}

func FloorCornersRootName(floorRoot string) string { return floorRoot + "_corners" }

func WallName(building string, level int, side layout.Side, i int) string {
	return wallName(building, strconv.Itoa(level), side, i)
}

func wallName(building, label string, side layout.Side, i int) string {
	return fmt.Sprintf("%s_floor_%s_%s_wall_%d", building, label, side, i)
}

func FloorCornerName(building string, level int, slot layout.Side) string {
	return floorCornerName(building, strconv.Itoa(level), slot)
}

func floorCornerName(building, label string, slot layout.Side) string {
	return fmt.Sprintf("%s_floor_%s_%s_corner", building, label, slot)
}

func RoofRootName(building string) string { return building + "_roof" }

func RoofTilesRootName(roofRoot string) string { return roofRoot + "_tiles" }

func RoofCornersRootName(roofRoot string) string { return roofRoot + "_corners" }

func RoofEdgesRootName(roofRoot string, side layout.Side) string {
	return roofRoot + "_edges_" + side.String()
}

func TileName(building string, c layout.Cell) string {
	return fmt.Sprintf("%s_roof_tile_%d_%d", building, c[0], c[1])
}

func RoofCornerName(building string, slot layout.Side) string {
	return fmt.Sprintf("%s_roof_%s_corner", building, slot)
}

func EdgeName(building string, side layout.Side, i int) string {
	return fmt.Sprintf("%s_roof_%s_edge_%d", building, side, i)
}
