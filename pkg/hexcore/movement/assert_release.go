//go:build !hexdebug

package movement

import "github.com/gravitas-games/hexglobe/pkg/hexcore/grid"

const debugAssertions = false

func assertWithinRoot(grid.Point3, grid.Resolution) {}

func assertCanonical(grid.Point3, grid.Dir, grid.Resolution) {}
