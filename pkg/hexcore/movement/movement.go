// Package movement steps and turns cell positions across the globe's root
// quads, keeping every position in the canonical frame of the root quad
// it is facing into.
package movement

import (
	"errors"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/hex"
)

// ErrInvalidDirection is returned when asked to step or turn while facing
// a cell vertex instead of a cell edge.
var ErrInvalidDirection = errors.New("direction does not point at a hex edge")

// A pentagon has five wedges around it, so no rebase needs more passes
// than that to settle.
const maxRebasePasses = 5

// MoveForward advances pos by one cell in the direction dir, rebasing on
// whichever root quad it is then facing into.
//
// pos and dir must be canonical: if pos is on the boundary between two
// root quads then dir points into its root or along the shared edge, never
// out of it. Builds tagged hexdebug panic when that does not hold; other
// builds silently produce a position in the wrong frame.
//
// On error pos and dir are left untouched.
func MoveForward(pos *grid.Point3, dir *grid.Dir, res grid.Resolution) error {
	assertWithinRoot(*pos, res)
	if !dir.PointsAtHexEdge() {
		return ErrInvalidDirection
	}

	next, err := AdjacentPosInDir(*pos, *dir)
	if err != nil {
		return err
	}
	// Still inside the root unless the caller broke the canonical-form
	// contract; the special nature of pentagons only matters between
	// roots, so both cells can be treated as hexagons here.
	assertWithinRoot(next, res)
	*pos = next

	maybeRebaseOnAdjacentRoot(pos, dir, res)
	return nil
}

// TurnLeftByOneHexEdge turns dir one hex edge to the left in place,
// rebasing pos if the new facing points into a different root.
// The same canonical-form contract as MoveForward applies.
func TurnLeftByOneHexEdge(pos *grid.Point3, dir *grid.Dir, res grid.Resolution) error {
	return TurnByOneHexEdge(pos, dir, res, grid.TurnLeft)
}

// TurnRightByOneHexEdge turns dir one hex edge to the right in place,
// rebasing pos if the new facing points into a different root.
// The same canonical-form contract as MoveForward applies.
func TurnRightByOneHexEdge(pos *grid.Point3, dir *grid.Dir, res grid.Resolution) error {
	return TurnByOneHexEdge(pos, dir, res, grid.TurnRight)
}

// TurnByOneHexEdge turns one hex edge in the direction given by turn.
func TurnByOneHexEdge(pos *grid.Point3, dir *grid.Dir, res grid.Resolution, turn grid.TurnDir) error {
	assertWithinRoot(*pos, res)
	if !dir.PointsAtHexEdge() {
		return ErrInvalidDirection
	}
	assertCanonical(*pos, *dir, res)

	if turn == grid.TurnLeft {
		*dir = dir.NextHexEdgeLeft()
	} else {
		*dir = dir.NextHexEdgeRight()
	}

	// Even turning in place can need a rebase: near a pentagon which
	// triangle applies depends on the facing as well as the position.
	maybeRebaseOnAdjacentRoot(pos, dir, res)
	return nil
}

// TurnAroundAndFaceNeighbor turns three hex edges in the direction of
// bias. Away from pentagons this faces the cell just left behind. On a
// pentagon there is no exact reverse and bias decides which of the two
// nearest edges ends up faced.
func TurnAroundAndFaceNeighbor(pos *grid.Point3, dir *grid.Dir, res grid.Resolution, bias grid.TurnDir) error {
	if !dir.PointsAtHexEdge() {
		return ErrInvalidDirection
	}
	p, d := *pos, *dir
	for i := 0; i < 3; i++ {
		if err := TurnByOneHexEdge(&p, &d, res, bias); err != nil {
			return err
		}
	}
	*pos, *dir = p, d
	return nil
}

// AdjacentPosInDir returns the next cell in direction dir without
// considering movement between roots, so the result may lie outside the
// bounds of pos's root.
func AdjacentPosInDir(pos grid.Point3, dir grid.Dir) (grid.Point3, error) {
	if !dir.PointsAtHexEdge() {
		return pos, ErrInvalidDirection
	}
	// Direction 2i points at edge i.
	offset := hex.Directions[dir.EdgeIndex()]
	return pos.WithAxial(pos.Axial().Add(offset)), nil
}

// IsPentagon reports whether pos sits on one of the twelve pentagons.
func IsPentagon(pos grid.Point3, res grid.Resolution) bool {
	return grid.IsPentagon(pos, res)
}

// maybeRebaseOnAdjacentRoot assumes pos is within its root, possibly on
// the boundary, and re-expresses pos and dir in the frame of whichever
// root dir points into. Panics if dir does not point at a hex edge.
func maybeRebaseOnAdjacentRoot(pos *grid.Point3, dir *grid.Dir, res grid.Resolution) {
	// Away from the edges nothing can change; skip the work below so the
	// panic at the end only fires for genuinely missed cases.
	if res.Interior(*pos) {
		return
	}

	for pass := 0; pass < maxRebasePasses; pass++ {
		rebaseOnce(pos, dir, res)

		// Stepping onto a pole along a root edge can leave dir more than
		// one wedge away from the root it was expressed in. Go round
		// again until it points into (or along) the root we ended up in.
		next, _ := AdjacentPosInDir(*pos, *dir)
		if res.Contains(next) {
			return
		}
	}
	panic("movement: rebase did not settle on a canonical root")
}

func rebaseOnce(pos *grid.Point3, dir *grid.Dir, res grid.Resolution) {
	var tri *Triangle
	if IsPentagon(*pos, res) {
		// Mostly matters when turning in place on a pentagon.
		tri = triangleOnPosWithClosestMidAxis(*pos, *dir, res)
	} else {
		tri = closestTriangleToPoint(*pos, res)
	}

	// Work relative to the triangle's apex as if it were the north pole,
	// then transform back once the case is known.
	*pos, *dir = WorldToLocal(*pos, *dir, res, tri)

	next, err := AdjacentPosInDir(*pos, *dir)
	if err != nil {
		panic("movement: rebasing while facing a hex vertex")
	}

	// Only the near edges are checked: choosing the triangle nearest pos
	// means the far edges are never close enough to cross.
	switch {
	case next.X >= 0 && next.Y >= 0:
		transformIntoExitTriangle(pos, dir, res, tri.Exits[0])
	case next.X < 0:
		// East around the apex.
		pos.X, pos.Y = pos.Y, 0
		*dir = dir.NextHexEdgeRight()
		transformIntoExitTriangle(pos, dir, res, tri.Exits[1])
	case next.Y < 0:
		// West around the apex.
		pos.X, pos.Y = 0, pos.X
		*dir = dir.NextHexEdgeLeft()
		transformIntoExitTriangle(pos, dir, res, tri.Exits[4])
	default:
		panic("movement: unhandled rebase case")
	}
}

// transformIntoExitTriangle moves a local position back to world
// coordinates through exit, changing root if the exit says so.
func transformIntoExitTriangle(pos *grid.Point3, dir *grid.Dir, res grid.Resolution, exit Exit) {
	exitTri := &Triangles[exit.TriangleIndex]
	pos.Root = pos.Root.Offset(exit.RootOffset)
	*pos, *dir = LocalToWorld(*pos, *dir, res, exitTri)
}

// closestTriangleToPoint picks the triangle with the closest apex among
// those oriented so that pos lies between their x-axis and y-axis.
//
// Picking a differently oriented triangle with the same apex would
// sometimes transform positions into a neighbouring quad for no reason.
// Not suitable for pentagons; see triangleOnPosWithClosestMidAxis.
func closestTriangleToPoint(pos grid.Point3, res grid.Resolution) *Triangle {
	var candidates []Triangle
	switch {
	case pos.X+pos.Y < res.X:
		candidates = Triangles[0:3]
	case pos.Y < res.X:
		candidates = Triangles[3:6]
	case pos.X+pos.Y < res.Y:
		candidates = Triangles[6:9]
	default:
		candidates = Triangles[9:12]
	}

	p := pos.Axial()
	best := &candidates[0]
	bestDist := hex.ManhattanDistance(p, best.ApexAt(res))
	for i := 1; i < len(candidates); i++ {
		if d := hex.ManhattanDistance(p, candidates[i].ApexAt(res)); d < bestDist {
			best, bestDist = &candidates[i], d
		}
	}
	return best
}

// triangleOnPosWithClosestMidAxis considers the one to three triangles
// whose apex is exactly on pos and returns the one whose middle axis is
// angularly closest to dir.
//
// Panics if pos is not a pentagon.
func triangleOnPosWithClosestMidAxis(pos grid.Point3, dir grid.Dir, res grid.Resolution) *Triangle {
	p := pos.Axial()
	var best *Triangle
	bestAngle := grid.DirCount
	for i := range Triangles {
		tri := &Triangles[i]
		if !tri.ApexAt(res).Sub(p).IsZero() {
			continue
		}
		if a := compassDistance(tri.MidAxis(), dir); a < bestAngle {
			best, bestAngle = tri, a
		}
	}
	if best == nil {
		panic("movement: no triangle has its apex on a pentagon position")
	}
	return best
}

// compassDistance returns the number of compass steps between a and b,
// going the shorter way around.
func compassDistance(a, b grid.Dir) int {
	d := a.Index() - b.Index()
	if d > grid.DirCount/2 {
		d -= grid.DirCount
	} else if d < -grid.DirCount/2 {
		d += grid.DirCount
	}
	if d < 0 {
		d = -d
	}
	return d
}
