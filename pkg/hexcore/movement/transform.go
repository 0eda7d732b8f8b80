package movement

import (
	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
)

// WorldToLocal re-expresses pos and dir relative to tri's apex, rotated so
// that tri's x-axis points along direction 0.
func WorldToLocal(pos grid.Point3, dir grid.Dir, res grid.Resolution, tri *Triangle) (grid.Point3, grid.Dir) {
	rel := pos.Axial().Sub(tri.ApexAt(res))
	turns := tri.XDir.EdgeIndex()
	return pos.WithAxial(rel.RotateRightN(-turns)), dir.Add(-tri.XDir.Index())
}

// LocalToWorld is the inverse of WorldToLocal.
func LocalToWorld(pos grid.Point3, dir grid.Dir, res grid.Resolution, tri *Triangle) (grid.Point3, grid.Dir) {
	turns := tri.XDir.EdgeIndex()
	abs := pos.Axial().RotateRightN(turns).Add(tri.ApexAt(res))
	return pos.WithAxial(abs), dir.Add(tri.XDir.Index())
}
