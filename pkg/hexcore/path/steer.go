package path

import (
	"errors"
	"fmt"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
)

// ErrNotAdjacent is returned when Steer is asked to reach a cell that is
// not a neighbour of the current one
var ErrNotAdjacent = errors.New("cell is not adjacent")

// Steer returns the shortest sequence of in-place turns after which
// stepping forward from pos lands on next. An empty result means pos
// already faces next. Equal-length turns to either side resolve to the
// right.
func Steer(pos grid.Point3, dir grid.Dir, res grid.Resolution, next grid.Point3) ([]grid.TurnDir, error) {
	for n := 0; n <= 3; n++ {
		for _, turn := range []grid.TurnDir{grid.TurnRight, grid.TurnLeft} {
			if n == 0 && turn == grid.TurnLeft {
				continue
			}
			ok, err := facesAfter(pos, dir, res, next, turn, n)
			if err != nil {
				return nil, err
			}
			if ok {
				turns := make([]grid.TurnDir, n)
				for i := range turns {
					turns[i] = turn
				}
				return turns, nil
			}
		}
	}
	return nil, fmt.Errorf("steer from %v to %v: %w", pos, next, ErrNotAdjacent)
}

func facesAfter(pos grid.Point3, dir grid.Dir, res grid.Resolution, next grid.Point3, turn grid.TurnDir, n int) (bool, error) {
	for i := 0; i < n; i++ {
		if err := movement.TurnByOneHexEdge(&pos, &dir, res, turn); err != nil {
			return false, err
		}
	}
	if err := movement.MoveForward(&pos, &dir, res); err != nil {
		return false, err
	}
	return grid.SameCell(pos, next, res), nil
}
