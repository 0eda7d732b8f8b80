package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResolution is returned for resolutions that cannot tile
	// a root quad.
	ErrInvalidResolution = errors.New("invalid resolution")

	// ErrOutOfBounds is returned for positions outside their root quad.
	ErrOutOfBounds = errors.New("position outside root quad")
)

// Resolution is the in-quad grid size shared by every root quad of a
// globe. Y is always twice X: a root quad is two rhombi stacked pole to
// pole, each X cells on a side.
type Resolution struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// NewResolution returns the resolution whose rhombi are x cells on a side.
func NewResolution(x int) Resolution {
	return Resolution{X: x, Y: 2 * x}
}

// Validate checks that r describes a usable globe.
func (r Resolution) Validate() error {
	if r.X <= 0 {
		return fmt.Errorf("%w: x must be positive, got %d", ErrInvalidResolution, r.X)
	}
	if r.Y != 2*r.X {
		return fmt.Errorf("%w: y must be twice x, got [%d, %d]", ErrInvalidResolution, r.X, r.Y)
	}
	return nil
}

// Contains reports whether p lies within the closed bounds of its root.
// Points on the boundary are shared with a neighbouring root.
func (r Resolution) Contains(p Point3) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= r.X && p.Y <= r.Y
}

// Interior reports whether p lies strictly inside its root, away from any
// edge shared with another root.
func (r Resolution) Interior(p Point3) bool {
	return p.X > 0 && p.Y > 0 && p.X < r.X && p.Y < r.Y
}

// CellCount returns the number of distinct cells on the globe: ten
// rhombi of X*X cells plus the two poles.
func (r Resolution) CellCount() int {
	return 10*r.X*r.X + 2
}

// IsPentagon reports whether pos sits on one of the twelve cells where
// five root-quad corners meet instead of six.
func IsPentagon(pos Point3, res Resolution) bool {
	x, y := pos.X, pos.Y
	return x == 0 && y == 0 ||
		x == 0 && y == res.X ||
		x == 0 && y == res.Y ||
		x == res.X && y == 0 ||
		x == res.X && y == res.X ||
		x == res.X && y == res.Y
}
