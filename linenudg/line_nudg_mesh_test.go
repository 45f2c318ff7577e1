package linenudg

import (
	"fmt"
	"math"
	"testing"

	"github.com/notargets/DGAdjoint/element"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/gocfd/DG1D"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestMesh(t *testing.T, order, K int, periodic bool) *LineNudgMesh {
	msh, err := mesh.NewUniformMesh(0, 2, K, periodic)
	require.NoError(t, err)
	ln, err := NewLineNudgMesh(order, msh)
	require.NoError(t, err)
	return ln
}

func TestNewLineNudgMesh(t *testing.T) {
	ln := newTestMesh(t, 2, 4, true)
	assert.Equal(t, 12, ln.NumDofs())
	assert.Equal(t, "DG2", ln.ShortName())
	assert.Contains(t, ln.String(), "Number of elements: 4")
	props := ln.GetProperties()
	assert.Equal(t, element.Line, props.Type)
	assert.Equal(t, element.D1, props.Dimensions)
	assert.Equal(t, 1, props.NIp)

	names := make([]string, 0)
	for name := range ln.GetRefMatrices() {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"V_Line2", "Vinv_Line2", "M_Line2", "Minv_Line2", "Dr_Line2", "LIFT_Line2"}, names)

	_, err := NewLineNudgMesh(1, nil)
	assert.Error(t, err)
}

// TestGeometryMatchesDG1D checks node coordinates, geometric factors and
// interior connectivity against gocfd's 1D element startup on the same mesh
func TestGeometryMatchesDG1D(t *testing.T) {
	const K = 5
	VX, EToV := DG1D.SimpleMesh1D(0, 2, K)
	for _, N := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("N=%d", N), func(t *testing.T) {
			ln := newTestMesh(t, N, K, false)
			ref := DG1D.NewElements1D(N, VX, EToV)
			J, Rx := DG1D.GeometricFactors1D(ref.Dr, ref.X)
			for i := 0; i < ln.Np; i++ {
				for k := 0; k < K; k++ {
					assert.InDelta(t, ref.X.At(i, k), ln.X.At(i, k), 1e-12, "X[%d,%d]", i, k)
					assert.InDelta(t, J.At(i, k), ln.J.At(i, k), 1e-12, "J[%d,%d]", i, k)
					assert.InDelta(t, Rx.At(i, k), ln.Rx.At(i, k), 1e-10, "Rx[%d,%d]", i, k)
				}
			}
			for k := 1; k < K-1; k++ {
				left, right := ln.Neighbors(k)
				assert.Equal(t, int(ref.EToE.At(k, 0)), left, "element %d", k)
				assert.Equal(t, int(ref.EToE.At(k, 1)), right, "element %d", k)
			}
		})
	}
}

func TestGlobalMassMatrix(t *testing.T) {
	for N := 0; N <= 3; N++ {
		t.Run(fmt.Sprintf("N=%d", N), func(t *testing.T) {
			ln := newTestMesh(t, N, 5, false)
			M := ln.GlobalMassMatrix()
			u := mat.NewVecDense(ln.NumDofs(), ln.Interpolate(func(x float64) float64 { return x }))
			ones := mat.NewVecDense(ln.NumDofs(), ln.Interpolate(func(float64) float64 { return 1 }))
			// ∫_0^2 1 dx and ∫_0^2 x dx
			assert.InDelta(t, 2.0, mat.Inner(ones, M, ones), 1e-12)
			if N >= 1 {
				assert.InDelta(t, 2.0, mat.Inner(ones, M, u), 1e-12)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	ln := newTestMesh(t, 3, 3, false)
	u := ln.Interpolate(func(x float64) float64 { return x*x*x - x })
	for _, x := range []float64{0, 0.3, 1.1, 1.999} {
		val, err := ln.Evaluate(u, x)
		require.NoError(t, err)
		assert.InDelta(t, x*x*x-x, val, 1e-12)
	}
	_, err := ln.Evaluate(u, 3)
	assert.Error(t, err)
	_, err = ln.Evaluate(u[:2], 1)
	assert.Error(t, err)
}

func TestAdvectionOperatorConservation(t *testing.T) {
	for _, a := range []float64{1.5, -0.75} {
		ln := newTestMesh(t, 2, 6, true)
		L := ln.AdvectionOperator(a, 0)
		ones := mat.NewVecDense(ln.NumDofs(), ln.Interpolate(func(float64) float64 { return 1 }))
		u := mat.NewVecDense(ln.NumDofs(), ln.Interpolate(func(x float64) float64 { return math.Sin(math.Pi * x) }))
		// Periodic upwind advection conserves the integral of u
		Lu := mat.NewVecDense(ln.NumDofs(), nil)
		Lu.MulVec(L, u)
		assert.InDelta(t, 0.0, mat.Dot(ones, Lu), 1e-12, "a=%g", a)
		// Constants are steady
		Lu.MulVec(L, ones)
		assert.InDelta(t, 0.0, mat.Norm(Lu, 2), 1e-12, "a=%g", a)
	}
}

func TestAdvectionOperatorDecay(t *testing.T) {
	ln := newTestMesh(t, 0, 1, true)
	L := ln.AdvectionOperator(1, 0.7)
	// A single periodic P0 element reduces to the ODE M du/dt = -decay M u
	assert.InDelta(t, -0.7*2, L.At(0, 0), 1e-12)
}
