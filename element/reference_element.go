package element

import "gonum.org/v1/gonum/mat"

// ElementProperties is the metadata of one reference element
type ElementProperties struct {
	Name       string // "Nodal DG Line, order 2"
	ShortName  string // "Line2", suffix of the reference matrix names
	Type       GeometryType
	Family     Family
	Order      int
	Np         int // nodes per element
	NFp        int // nodes per end point
	NVp        int
	NIp        int // nodes strictly between the end points
	NFaces     int
	Dimensions Dimensionality
}

// ReferenceGeometry places the nodes on [-1,1] and classifies them
type ReferenceGeometry struct {
	R              []float64
	VertexPoints   []int
	FacePoints     [][]int // [end][node]
	InteriorPoints []int
}

// NodalModalMatrices maps between the Legendre modes and the nodal values of
// one element, all Np × Np
type NodalModalMatrices struct {
	V    mat.Matrix
	Vinv mat.Matrix
	M    mat.Matrix
	Minv mat.Matrix
}

// ReferenceOperators act on the nodal values of one reference element
type ReferenceOperators struct {
	Dr   mat.Matrix // d/dr, Np × Np
	LIFT mat.Matrix // end point fluxes to the element interior, Np × (NFaces·NFp)
}

// ReferenceElement is implemented once per element type
type ReferenceElement interface {
	GetProperties() ElementProperties
	GetReferenceGeometry() ReferenceGeometry
	GetNodalModal() NodalModalMatrices
	GetReferenceOperators() ReferenceOperators
}
