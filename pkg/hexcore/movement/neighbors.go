package movement

import (
	"fmt"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
)

// Neighbors returns the cells sharing an edge with pos, each expressed in
// its owning root. Pentagons have five neighbours, every other cell six.
// Z is carried through.
func Neighbors(pos grid.Point3, res grid.Resolution) ([]grid.Point3, error) {
	if !pos.Root.Valid() || !res.Contains(pos) {
		return nil, fmt.Errorf("neighbors of %v: %w", pos, grid.ErrOutOfBounds)
	}

	dir, ok := inwardDir(pos, res)
	if !ok {
		return nil, fmt.Errorf("neighbors of %v: %w", pos, grid.ErrOutOfBounds)
	}

	out := make([]grid.Point3, 0, 6)
	for i := 0; i < 6; i++ {
		next, nextDir := pos, dir
		if err := MoveForward(&next, &nextDir, res); err != nil {
			return nil, err
		}
		owned, err := grid.PosInOwningRoot(next, res)
		if err != nil {
			return nil, err
		}
		if !containsPoint(out, owned) {
			out = append(out, owned)
		}
		if err := TurnRightByOneHexEdge(&pos, &dir, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// inwardDir finds a facing whose next cell stays within pos's root.
func inwardDir(pos grid.Point3, res grid.Resolution) (grid.Dir, bool) {
	for edge := 0; edge < 6; edge++ {
		dir := grid.NewDir(2 * edge)
		next, _ := AdjacentPosInDir(pos, dir)
		if res.Contains(next) {
			return dir, true
		}
	}
	return 0, false
}

func containsPoint(points []grid.Point3, p grid.Point3) bool {
	for _, q := range points {
		if q == p {
			return true
		}
	}
	return false
}
