package movement

import (
	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/hex"
)

// Each root quad is four icosahedron faces stacked pole to pole:
//
//	face A (arctic)     (0,0)  (X,0)  (0,X)
//	face B              (X,0)  (X,X)  (0,X)
//	face C              (0,X)  (X,X)  (0,Y)
//	face D (antarctic)  (X,X)  (X,Y)  (0,Y)
//
// Every face is described three times, once from each of its corners. A
// Triangle's local frame puts its apex at the origin with the face lying
// between the local x-axis (direction 0) and the local y-axis (direction
// 10). In that frame every corner looks like the north pole, so crossing
// out of the face near its apex is one of three cases: stay put, wrap
// across the y-axis, or wrap across the x-axis.
//
// Exits walk the wedges around the apex, crossing the y-axis each time.
// Exits[0] is the triangle itself; Exits[1] lies across the local y-axis
// and Exits[4] across the local x-axis. Around the poles all five wedges
// belong to the same triangle in different roots.

// Exit names the triangle on the far side of a wedge boundary, and how
// many roots east it is found.
type Exit struct {
	TriangleIndex int
	RootOffset    int
}

// Triangle is a local coordinate frame anchored on one corner of an
// icosahedron face.
type Triangle struct {
	// Apex in units of the resolution's X dimension.
	Apex  hex.Axial
	XDir  grid.Dir
	Exits [5]Exit
}

// YDir returns the direction of the triangle's local y-axis.
func (t *Triangle) YDir() grid.Dir { return t.XDir.NextHexEdgeLeft() }

// MidAxis returns the direction halfway between the local axes.
func (t *Triangle) MidAxis() grid.Dir { return t.XDir.Add(-1) }

// ApexAt returns the apex in cell coordinates for res.
func (t *Triangle) ApexAt(res grid.Resolution) hex.Axial { return t.Apex.Mul(res.X) }

// Triangles tiles a root quad. Entries 0-2 cover face A, 3-5 face B, 6-8
// face C and 9-11 face D.
var Triangles = [12]Triangle{
	// Face A
	{hex.Axial{Q: 0, R: 0}, 0, [5]Exit{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}}},
	{hex.Axial{Q: 1, R: 0}, 8, [5]Exit{{1, 0}, {2, 4}, {5, 4}, {6, 4}, {3, 0}}},
	{hex.Axial{Q: 0, R: 1}, 4, [5]Exit{{2, 0}, {5, 0}, {6, 0}, {3, 1}, {1, 1}}},
	// Face B
	{hex.Axial{Q: 1, R: 0}, 10, [5]Exit{{3, 0}, {1, 0}, {2, 4}, {5, 4}, {6, 4}}},
	{hex.Axial{Q: 1, R: 1}, 6, [5]Exit{{4, 0}, {8, 4}, {11, 4}, {9, 0}, {7, 0}}},
	{hex.Axial{Q: 0, R: 1}, 2, [5]Exit{{5, 0}, {6, 0}, {3, 1}, {1, 1}, {2, 0}}},
	// Face C
	{hex.Axial{Q: 0, R: 1}, 0, [5]Exit{{6, 0}, {3, 1}, {1, 1}, {2, 0}, {5, 0}}},
	{hex.Axial{Q: 1, R: 1}, 8, [5]Exit{{7, 0}, {4, 0}, {8, 4}, {11, 4}, {9, 0}}},
	{hex.Axial{Q: 0, R: 2}, 4, [5]Exit{{8, 0}, {11, 0}, {9, 1}, {7, 1}, {4, 1}}},
	// Face D
	{hex.Axial{Q: 1, R: 1}, 10, [5]Exit{{9, 0}, {7, 0}, {4, 0}, {8, 4}, {11, 4}}},
	{hex.Axial{Q: 1, R: 2}, 6, [5]Exit{{10, 0}, {10, 4}, {10, 3}, {10, 2}, {10, 1}}},
	{hex.Axial{Q: 0, R: 2}, 2, [5]Exit{{11, 0}, {9, 1}, {7, 1}, {4, 1}, {8, 0}}},
}
