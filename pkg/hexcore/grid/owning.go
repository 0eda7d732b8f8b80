package grid

import "fmt"

const (
	northPoleOwner Root = 0
	southPoleOwner Root = RootQuads - 1
)

// PosInOwningRoot re-expresses pos in the frame of the root that owns it.
//
// A cell on an edge shared by two roots has a valid position in both of
// them. For identity purposes each such cell belongs to exactly one root:
// roots own their x=0 and y=Y edges and give away their y=0 and x=X
// edges. The north pole belongs to root 0 and the south pole to root 4.
func PosInOwningRoot(pos Point3, res Resolution) (Point3, error) {
	if !pos.Root.Valid() || !res.Contains(pos) {
		return pos, fmt.Errorf("%w: %v at resolution [%d, %d]", ErrOutOfBounds, pos, res.X, res.Y)
	}

	switch {
	case pos.X == 0 && pos.Y == 0:
		pos.Root = northPoleOwner
	case pos.X == res.X && pos.Y == res.Y:
		pos.Root = southPoleOwner
	case pos.Y == 0:
		// North-west edge belongs to the root to the west.
		pos.Root = pos.Root.Prev()
		pos.X, pos.Y = 0, pos.X
	case pos.X == res.X && pos.Y <= res.X:
		pos.Root = pos.Root.Prev()
		pos.X, pos.Y = 0, pos.Y+res.X
	case pos.X == res.X:
		pos.Root = pos.Root.Prev()
		pos.X, pos.Y = pos.Y-res.X, res.Y
	}
	return pos, nil
}

// SameCell reports whether a and b name the same cell, possibly expressed
// in different roots.
func SameCell(a, b Point3, res Resolution) bool {
	oa, err := PosInOwningRoot(a, res)
	if err != nil {
		return false
	}
	ob, err := PosInOwningRoot(b, res)
	if err != nil {
		return false
	}
	return oa == ob
}
