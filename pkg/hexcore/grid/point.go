package grid

import (
	"fmt"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/hex"
)

// RootQuads is the number of root quads tiling the globe. Each one is a
// strip of four icosahedron faces running from the north pole to the
// south pole.
const RootQuads = 5

// Root identifies a root quad.
type Root int

// Offset returns the root n quads east of r, wrapping around the globe.
func (r Root) Offset(n int) Root {
	i := (int(r) + n) % RootQuads
	if i < 0 {
		i += RootQuads
	}
	return Root(i)
}

// Next returns the root to the east of r.
func (r Root) Next() Root { return r.Offset(1) }

// Prev returns the root to the west of r.
func (r Root) Prev() Root { return r.Offset(-1) }

// Valid reports whether r names one of the root quads.
func (r Root) Valid() bool { return r >= 0 && r < RootQuads }

// Point3 is a cell position: the root quad, two in-quad axes, and an
// altitude layer which the movement code carries along untouched.
type Point3 struct {
	Root Root `json:"root"`
	X    int  `json:"x"`
	Y    int  `json:"y"`
	Z    int  `json:"z"`
}

// Axial returns the in-quad axes as axial hex coordinates.
func (p Point3) Axial() hex.Axial { return hex.Axial{Q: p.X, R: p.Y} }

// WithAxial returns p with its in-quad axes replaced by a.
func (p Point3) WithAxial(a hex.Axial) Point3 {
	p.X = a.Q
	p.Y = a.R
	return p
}

func (p Point3) String() string {
	return fmt.Sprintf("(root %d, %d, %d, z %d)", p.Root, p.X, p.Y, p.Z)
}
