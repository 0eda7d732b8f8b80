//go:build hexdebug

package movement

import (
	"fmt"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
)

const debugAssertions = true

func assertWithinRoot(pos grid.Point3, res grid.Resolution) {
	if !res.Contains(pos) {
		panic(fmt.Sprintf("movement: %v is outside its root at resolution [%d, %d]", pos, res.X, res.Y))
	}
}

func assertCanonical(pos grid.Point3, dir grid.Dir, res grid.Resolution) {
	next, err := AdjacentPosInDir(pos, dir)
	if err != nil {
		return
	}
	if !res.Contains(next) {
		panic(fmt.Sprintf("movement: %v facing %v is not canonical", pos, dir))
	}
}
