package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Side identifies one of the four faces of a floor or roof. Corner slots
// reuse the same values as an implicit side.
type Side int

const (
	Front Side = iota
	Back
	Left
	Right
)

// Sides is the fixed generation order.
var Sides = [4]Side{Front, Back, Left, Right}

var sideNames = [4]string{"front", "back", "left", "right"}

func (s Side) Valid() bool { return s >= Front && s <= Right }

func (s Side) String() string {
	if !s.Valid() {
		return "side(" + strconv.Itoa(int(s)) + ")"
	}
	return sideNames[s]
}

// ParseSide accepts either a side name or its integer value.
func ParseSide(v string) (Side, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, n := range sideNames {
		if v == n {
			return Side(i), nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil || !Side(n).Valid() {
		return 0, fmt.Errorf("bad side %q", v)
	}
	return Side(n), nil
}

// YAngle is the rotation around Y, in degrees, of an element facing s.
func (s Side) YAngle() float64 {
	switch s {
	case Back:
		return 180
	case Left:
		return 90
	case Right:
		return -90
	default:
		return 0
	}
}

// Rotation returns the full rotation vector of an element facing s.
func (s Side) Rotation() Vec3 { return Vec3{0, s.YAngle(), 0} }

// CornerWidthSign and CornerDepthSign are the face direction table of the
// four corner slots. Slots 1 and 3 flip width, slots 1 and 2 flip depth.
func CornerWidthSign(slot Side) float64 {
	if slot == 1 || slot == 3 {
		return -1
	}
	return 1
}

func CornerDepthSign(slot Side) float64 {
	if slot == 1 || slot == 2 {
		return -1
	}
	return 1
}
