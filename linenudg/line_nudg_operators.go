package linenudg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// GlobalIndex maps node i of element k to its position in a nodal vector
func (ln *LineNudgMesh) GlobalIndex(k, i int) int {
	return k*ln.Np + i
}

// GlobalMassMatrix assembles the block diagonal mass matrix of the whole mesh
func (ln *LineNudgMesh) GlobalMassMatrix() *mat.SymDense {
	M := mat.NewSymDense(ln.NumDofs(), nil)
	for k := 0; k < ln.K; k++ {
		jac := ln.J.At(0, k)
		for i := 0; i < ln.Np; i++ {
			for j := i; j < ln.Np; j++ {
				M.SetSym(ln.GlobalIndex(k, i), ln.GlobalIndex(k, j), jac*ln.MassMatrix.At(i, j))
			}
		}
	}
	return M
}

// Interpolate samples f at every node
func (ln *LineNudgMesh) Interpolate(f func(x float64) float64) []float64 {
	u := make([]float64, ln.NumDofs())
	for k := 0; k < ln.K; k++ {
		for i := 0; i < ln.Np; i++ {
			u[ln.GlobalIndex(k, i)] = f(ln.X.At(i, k))
		}
	}
	return u
}

// ReferenceCoordinate maps x inside element k onto [-1,1]
func (ln *LineNudgMesh) ReferenceCoordinate(k int, x float64) float64 {
	xa, xb := ln.VX[ln.EToV[k][0]], ln.VX[ln.EToV[k][1]]
	return 2*(x-xa)/(xb-xa) - 1
}

// Evaluate returns the value of the nodal field u at x
func (ln *LineNudgMesh) Evaluate(u []float64, x float64) (float64, error) {
	if len(u) != ln.NumDofs() {
		return 0, fmt.Errorf("field has %d values, discretization has %d", len(u), ln.NumDofs())
	}
	k := ln.Locate(x)
	if k < 0 {
		return 0, fmt.Errorf("point %g lies outside the mesh", x)
	}
	IM := ln.InterpMatrix([]float64{ln.ReferenceCoordinate(k, x)})
	var val float64
	for i := 0; i < ln.Np; i++ {
		val += IM.At(0, i) * u[ln.GlobalIndex(k, i)]
	}
	return val, nil
}

// AdvectionOperator assembles the global matrix L of the semi-discrete upwind
// DG form of u_t + a u_x + decay u = 0, written M du/dt = L u.
// Non-periodic meshes use a zero inflow value.
func (ln *LineNudgMesh) AdvectionOperator(a, decay float64) *mat.Dense {
	var (
		n  = ln.NumDofs()
		L  = mat.NewDense(n, n, nil)
		Np = ln.Np
		FI = ln.FaceInterp
	)

	// Weak derivative term ∫ dφ_i/dx u dx = (Dr^T M)_ij, independent of the Jacobian
	S := mat.NewDense(Np, Np, nil)
	S.Mul(ln.Dr.T(), ln.MassMatrix)

	// Fluxes are taken from the upwind side of each face
	upwindLeft, upwindRight := 1, 0
	if a < 0 {
		upwindLeft, upwindRight = 0, 1
	}

	for k := 0; k < ln.K; k++ {
		jac := ln.J.At(0, k)
		left, right := ln.Neighbors(k)
		for i := 0; i < Np; i++ {
			row := ln.GlobalIndex(k, i)
			for j := 0; j < Np; j++ {
				col := ln.GlobalIndex(k, j)
				L.Set(row, col, L.At(row, col)+a*S.At(i, j)-decay*jac*ln.MassMatrix.At(i, j))
			}

			// Right face: -a φ_i(x_r) û(x_r)
			phiR := FI.At(1, i)
			if upwindRight == 0 {
				for j := 0; j < Np; j++ {
					col := ln.GlobalIndex(k, j)
					L.Set(row, col, L.At(row, col)-a*phiR*FI.At(1, j))
				}
			} else if right >= 0 {
				for j := 0; j < Np; j++ {
					col := ln.GlobalIndex(right, j)
					L.Set(row, col, L.At(row, col)-a*phiR*FI.At(0, j))
				}
			}

			// Left face: +a φ_i(x_l) û(x_l)
			phiL := FI.At(0, i)
			if upwindLeft == 1 {
				if left >= 0 {
					for j := 0; j < Np; j++ {
						col := ln.GlobalIndex(left, j)
						L.Set(row, col, L.At(row, col)+a*phiL*FI.At(1, j))
					}
				}
			} else {
				for j := 0; j < Np; j++ {
					col := ln.GlobalIndex(k, j)
					L.Set(row, col, L.At(row, col)+a*phiL*FI.At(0, j))
				}
			}
		}
	}
	return L
}
