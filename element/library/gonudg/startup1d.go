package gonudg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NUDGLine holds the reference operators of a nodal line element of order N
// on [-1,1], with nodes at the Gauss-Lobatto points
type NUDGLine struct {
	// Polynomial order
	N       int
	NODETOL float64

	// Number of nodes and faces
	Np     int // Number of nodes per element
	Nfp    int // Number of nodes per face (always 1)
	Nfaces int // Number of faces per element (always 2)

	// Node coordinates in reference element
	R []float64

	// Vandermonde matrices
	V    *mat.Dense
	Vinv *mat.Dense

	// Mass matrix in reference coordinates
	MassMatrix *mat.Dense

	// Differentiation matrix
	Dr *mat.Dense

	// Lift matrix [Np × Nfaces]
	LIFT *mat.Dense

	// FaceInterp evaluates a nodal field at r=-1 (row 0) and r=+1 (row 1)
	FaceInterp *mat.Dense

	// Face masks - indices of nodes on each face
	Fmask [][]int
}

// NewNUDGLine creates and initializes the reference line element of order N
func NewNUDGLine(N int) (*NUDGLine, error) {
	if N < 0 {
		return nil, fmt.Errorf("invalid polynomial order %d", N)
	}
	el := &NUDGLine{
		N:       N,
		NODETOL: 1e-10,
		Nfp:     1,
		Nfaces:  2,
	}
	if err := el.StartUp1D(); err != nil {
		return nil, err
	}
	return el, nil
}

// StartUp1D builds the reference element matrices
func (el *NUDGLine) StartUp1D() (err error) {
	el.Np = el.N + 1
	el.R = JacobiGL(0, 0, el.N)

	el.V = Vandermonde1D(el.N, el.R)
	el.Vinv = mat.NewDense(el.Np, el.Np, nil)
	if err = el.Vinv.Inverse(el.V); err != nil {
		return fmt.Errorf("failed to invert Vandermonde matrix: %v", err)
	}

	// M = (V V^T)^{-1} = V^{-T} V^{-1}
	el.MassMatrix = mat.NewDense(el.Np, el.Np, nil)
	el.MassMatrix.Mul(el.Vinv.T(), el.Vinv)

	if el.Dr, err = Dmatrix1D(el.N, el.R, el.V); err != nil {
		return fmt.Errorf("Dmatrix1D failed: %v", err)
	}

	el.FaceInterp = el.InterpMatrix([]float64{-1, 1})
	el.BuildFmask()
	el.Lift1D()
	return nil
}

// BuildFmask finds the nodes that lie on each end of the element
func (el *NUDGLine) BuildFmask() {
	el.Fmask = [][]int{{0}, {el.Np - 1}}
}

// Lift1D computes LIFT = M^{-1} E, where E places face values at face nodes
func (el *NUDGLine) Lift1D() {
	Emat := mat.NewDense(el.Np, el.Nfaces, nil)
	for face := 0; face < el.Nfaces; face++ {
		for j := 0; j < el.Np; j++ {
			Emat.Set(j, face, el.FaceInterp.At(face, j))
		}
	}
	VVt := mat.NewDense(el.Np, el.Np, nil)
	VVt.Mul(el.V, el.V.T())
	el.LIFT = mat.NewDense(el.Np, el.Nfaces, nil)
	el.LIFT.Mul(VVt, Emat)
}

// InterpMatrix returns the [len(r) × Np] matrix which evaluates a nodal
// field at the reference coordinates r
func (el *NUDGLine) InterpMatrix(r []float64) *mat.Dense {
	IM := mat.NewDense(len(r), el.Np, nil)
	IM.Mul(Vandermonde1D(el.N, r), el.Vinv)
	return IM
}
