package voxel

import "fmt"

// Position identifies a single voxel in world space. Y is the vertical axis.
type Position struct {
	X int
	Y int
	Z int
}

// Pos is shorthand for constructing a Position.
func Pos(x, y, z int) Position {
	return Position{X: x, Y: y, Z: z}
}

// Add returns the neighbouring position in the given direction.
func (p Position) Add(d Direction) Position {
	dx, dy, dz := d.Offset()
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Position) Offset(dx, dy, dz int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Manhattan returns the L1 distance between two positions.
func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y) + abs(p.Z-o.Z)
}

// Less orders positions by X, then Y, then Z.
func (p Position) Less(o Position) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Direction is one of the six axis-aligned neighbour directions.
type Direction uint8

const (
	Up Direction = iota
	Down
	North
	South
	East
	West
)

// Directions lists every direction in a fixed order.
var Directions = [6]Direction{Up, Down, North, South, East, West}

var directionOffsets = [6][3]int{
	Up:    {0, 1, 0},
	Down:  {0, -1, 0},
	North: {0, 0, -1},
	South: {0, 0, 1},
	East:  {1, 0, 0},
	West:  {-1, 0, 0},
}

var directionNames = [6]string{"up", "down", "north", "south", "east", "west"}

func (d Direction) Offset() (dx, dy, dz int) {
	o := directionOffsets[d]
	return o[0], o[1], o[2]
}

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", d)
}

// ParseDirection resolves a direction by its lower-case name.
func ParseDirection(name string) (Direction, error) {
	for i, n := range directionNames {
		if n == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", name)
}
