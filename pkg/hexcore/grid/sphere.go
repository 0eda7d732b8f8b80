package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// vertexKind identifies an icosahedron vertex relative to a root quad.
type vertexKind uint8

const (
	northPole vertexKind = iota
	southPole
	upperRing // (X, 0) of the root; (0, X) is the same kind in the next root
	lowerRing // (X, X) of the root; (0, Y) is the same kind in the next root
)

type faceCorner struct {
	u, v       float64 // in units of Resolution.X
	kind       vertexKind
	rootOffset int
}

// Four icosahedron faces per root quad, ordered pole to pole.
var rootFaces = [4][3]faceCorner{
	{{0, 0, northPole, 0}, {1, 0, upperRing, 0}, {0, 1, upperRing, 1}},
	{{1, 0, upperRing, 0}, {1, 1, lowerRing, 0}, {0, 1, upperRing, 1}},
	{{0, 1, upperRing, 1}, {1, 1, lowerRing, 0}, {0, 2, lowerRing, 1}},
	{{1, 1, lowerRing, 0}, {1, 2, southPole, 0}, {0, 2, lowerRing, 1}},
}

var ringLatitude = math.Atan(0.5)

func icosahedronVertex(kind vertexKind, root Root) mgl64.Vec3 {
	switch kind {
	case northPole:
		return mgl64.Vec3{0, 0, 1}
	case southPole:
		return mgl64.Vec3{0, 0, -1}
	}
	lon := 2 * math.Pi * float64(root) / RootQuads
	lat := ringLatitude
	if kind == lowerRing {
		lon += math.Pi / RootQuads
		lat = -lat
	}
	return mgl64.Vec3{
		math.Cos(lat) * math.Cos(lon),
		math.Cos(lat) * math.Sin(lon),
		math.Sin(lat),
	}
}

// CellCenterOnUnitSphere maps pos to the centre of its cell on the unit
// sphere: the point is interpolated across the icosahedron face containing
// it and then pushed out onto the sphere. Positions shared by several roots
// map to the same point from every root.
func CellCenterOnUnitSphere(pos Point3, res Resolution) mgl64.Vec3 {
	u := float64(pos.X) / float64(res.X)
	v := float64(pos.Y) / float64(res.X)

	var face int
	switch {
	case u+v <= 1:
		face = 0
	case v <= 1:
		face = 1
	case u+v <= 2:
		face = 2
	default:
		face = 3
	}

	c := rootFaces[face]
	det := (c[1].u-c[0].u)*(c[2].v-c[0].v) - (c[2].u-c[0].u)*(c[1].v-c[0].v)
	l1 := ((u-c[0].u)*(c[2].v-c[0].v) - (c[2].u-c[0].u)*(v-c[0].v)) / det
	l2 := ((c[1].u-c[0].u)*(v-c[0].v) - (u-c[0].u)*(c[1].v-c[0].v)) / det
	l0 := 1 - l1 - l2

	a := icosahedronVertex(c[0].kind, pos.Root.Offset(c[0].rootOffset))
	b := icosahedronVertex(c[1].kind, pos.Root.Offset(c[1].rootOffset))
	d := icosahedronVertex(c[2].kind, pos.Root.Offset(c[2].rootOffset))
	p := a.Mul(l0).Add(b.Mul(l1)).Add(d.Mul(l2))
	return p.Normalize()
}
