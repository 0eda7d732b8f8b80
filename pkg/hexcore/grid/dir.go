package grid

import "fmt"

// DirCount is the number of facings around a cell: six pointing at
// hexagon edges interleaved with six pointing at hexagon vertices.
const DirCount = 12

// Dir is a facing around a cell, 0 <= Dir < DirCount.
//
// Even values point at hex edges and are the only legal directions for
// stepping and turning. Index 2i points at hex.Directions[i]. Increasing
// the index turns right.
type Dir uint8

// NewDir returns the Dir for index i, wrapping it into [0, DirCount).
func NewDir(i int) Dir {
	i %= DirCount
	if i < 0 {
		i += DirCount
	}
	return Dir(i)
}

// Index returns the direction as an int in [0, DirCount).
func (d Dir) Index() int { return int(d) % DirCount }

// PointsAtHexEdge reports whether d points at an edge of a hexagonal cell
// rather than at one of its vertices.
func (d Dir) PointsAtHexEdge() bool { return d.Index()%2 == 0 }

// EdgeIndex returns the hex edge d points at. Only meaningful when
// PointsAtHexEdge is true.
func (d Dir) EdgeIndex() int { return d.Index() / 2 }

// NextHexEdgeLeft rotates d one hex edge to the left.
func (d Dir) NextHexEdgeLeft() Dir { return NewDir(d.Index() - 2) }

// NextHexEdgeRight rotates d one hex edge to the right.
func (d Dir) NextHexEdgeRight() Dir { return NewDir(d.Index() + 2) }

// Opposite returns the direction half a turn from d.
func (d Dir) Opposite() Dir { return NewDir(d.Index() + DirCount/2) }

// Add returns d rotated right by n compass steps (left for negative n).
func (d Dir) Add(n int) Dir { return NewDir(d.Index() + n) }

func (d Dir) String() string {
	if d.PointsAtHexEdge() {
		return fmt.Sprintf("Dir(%d, edge %d)", d.Index(), d.EdgeIndex())
	}
	return fmt.Sprintf("Dir(%d, vertex)", d.Index())
}
