package gonudg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Vandermonde1D initializes the 1D Vandermonde matrix V_ij = P_j(r_i)
// for the orthonormal Legendre basis of order N
func Vandermonde1D(N int, R []float64) *mat.Dense {
	V1D := mat.NewDense(len(R), N+1, nil)
	for j := 0; j <= N; j++ {
		V1D.SetCol(j, JacobiP(R, 0, 0, j))
	}
	return V1D
}

// GradVandermonde1D initializes the gradient of the modal basis, Vr_ij = dP_j/dr(r_i)
func GradVandermonde1D(N int, R []float64) *mat.Dense {
	Vr := mat.NewDense(len(R), N+1, nil)
	for j := 0; j <= N; j++ {
		Vr.SetCol(j, GradJacobiP(R, 0, 0, j))
	}
	return Vr
}

// Dmatrix1D computes the nodal differentiation matrix Dr = Vr V^{-1}
func Dmatrix1D(N int, R []float64, V *mat.Dense) (*mat.Dense, error) {
	var Vinv mat.Dense
	if err := Vinv.Inverse(V); err != nil {
		return nil, fmt.Errorf("failed to invert Vandermonde matrix: %v", err)
	}
	Dr := mat.NewDense(len(R), len(R), nil)
	Dr.Mul(GradVandermonde1D(N, R), &Vinv)
	return Dr, nil
}
