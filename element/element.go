// Package element describes nodal reference elements and their binding to a
// physical mesh.
package element

// GeometryType identifies the shape of an element
type GeometryType uint8

// Line is the only shape the interval meshes carry
const Line GeometryType = iota

func (g GeometryType) String() string {
	if g == Line {
		return "Line"
	}
	return "Unknown"
}

// Dimensionality is the spatial dimension of an element
type Dimensionality uint8

// D1 elements live on an interval
const D1 Dimensionality = 1

// Family names the continuity class of a discrete space
type Family string

const (
	// DG is the discontinuous nodal Lagrange family
	DG Family = "DG"
)
