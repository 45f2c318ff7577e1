package element

import "gonum.org/v1/gonum/mat"

// GeometricTransform holds the affine map of every element of a mesh, one
// column per element
type GeometricTransform struct {
	Rx mat.Matrix // dr/dx, Np × K
	J  mat.Matrix // dx/dr, Np × K; ∫ f dx = Σ_k ∫ f J dr
}

// MeshProperties summarizes the mesh a discretization is bound to
type MeshProperties struct {
	NumElements int
	NumVertices int
	NumFaces    int
	Domain      [2]float64
}

// MeshElement is a reference element bound to a physical mesh
type MeshElement interface {
	GetMeshProperties() MeshProperties
	GetReferenceElement() ReferenceElement
	GetGeometricTransform() GeometricTransform
	// String is a multi-line summary for the CLI
	String() string
}
