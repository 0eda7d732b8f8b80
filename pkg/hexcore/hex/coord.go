package hex

// Axial represents axial coordinates (q, r) on a hex grid.
//
// On the globe the in-quad axes (x, y) of a cell are used directly as
// (q, r); the neighbour table below then matches the twelve-point compass
// used by the grid package, with direction 2i pointing at Directions[i].
type Axial struct {
	Q int
	R int
}

// Directions for axial neighbors, one per hex edge, in compass order.
var Directions = [6]Axial{
	{+1, 0}, {+1, -1}, {0, -1}, {-1, 0}, {-1, +1}, {0, +1},
}

// Add returns a+b in axial space.
func (a Axial) Add(b Axial) Axial { return Axial{a.Q + b.Q, a.R + b.R} }

// Sub returns a-b in axial space.
func (a Axial) Sub(b Axial) Axial { return Axial{a.Q - b.Q, a.R - b.R} }

// Mul scales an axial vector by k.
func (a Axial) Mul(k int) Axial { return Axial{a.Q * k, a.R * k} }

// Abs returns the component-wise absolute value.
func (a Axial) Abs() Axial { return Axial{absInt(a.Q), absInt(a.R)} }

// IsZero reports whether both components are zero.
func (a Axial) IsZero() bool { return a.Q == 0 && a.R == 0 }

// RotateRight rotates a about the origin by one hex edge in the direction
// of increasing compass index, so Directions[i] becomes Directions[i+1].
func (a Axial) RotateRight() Axial { return Axial{a.Q + a.R, -a.Q} }

// RotateRightN applies RotateRight n times; negative n rotates left.
func (a Axial) RotateRightN(n int) Axial {
	n %= 6
	if n < 0 {
		n += 6
	}
	for i := 0; i < n; i++ {
		a = a.RotateRight()
	}
	return a
}

// ManhattanDistance returns |dq| + |dr|. It over-estimates true hex
// distance along the (1,-1) diagonal, which is what the globe's triangle
// selection expects.
func ManhattanDistance(a, b Axial) int {
	d := a.Sub(b).Abs()
	return d.Q + d.R
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
