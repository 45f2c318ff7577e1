package projection

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGAdjoint/element/library/gonudg"
	"github.com/notargets/DGAdjoint/linenudg"
	"github.com/notargets/DGAdjoint/mesh"
	"gonum.org/v1/gonum/mat"
)

// Supermesh merges the vertices of a and b over the overlap of their domains.
// Every interval of the result lies inside exactly one element of each mesh.
func Supermesh(a, b *mesh.Mesh) ([]float64, error) {
	aa, ab := a.Domain()
	ba, bb := b.Domain()
	lo, hi := math.Max(aa, ba), math.Min(ab, bb)
	if !(hi > lo) {
		return nil, fmt.Errorf("meshes [%g,%g] and [%g,%g] do not overlap", aa, ab, ba, bb)
	}
	tol := 1e-12 * (hi - lo)
	var pts []float64
	for _, vx := range [][]float64{a.VX, b.VX} {
		for _, x := range vx {
			if x >= lo-tol && x <= hi+tol {
				pts = append(pts, math.Min(math.Max(x, lo), hi))
			}
		}
	}
	sort.Float64s(pts)
	merged := pts[:1]
	for _, x := range pts[1:] {
		if x-merged[len(merged)-1] > tol {
			merged = append(merged, x)
		}
	}
	return merged, nil
}

// MixedMassMatrix assembles M_ts[i,j] = ∫ φ_i^target φ_j^source over the
// supermesh of the two discretizations, exactly for the polynomial degrees involved
func MixedMassMatrix(source, target *linenudg.LineNudgMesh) (*mat.Dense, error) {
	VX, err := Supermesh(source.Mesh, target.Mesh)
	if err != nil {
		return nil, err
	}
	// Gauss rule with n+1 points integrates degree 2n+1 exactly
	nq := (source.N+target.N)/2 + 1
	M := mat.NewDense(target.NumDofs(), source.NumDofs(), nil)
	for s := 0; s < len(VX)-1; s++ {
		x0, x1 := VX[s], VX[s+1]
		xm := 0.5 * (x0 + x1)
		ks, kt := source.Locate(xm), target.Locate(xm)
		if ks < 0 || kt < 0 {
			return nil, fmt.Errorf("supermesh interval [%g,%g] not covered by both meshes", x0, x1)
		}
		xq, wq := gonudg.GaussInterval(x0, x1, nq-1)
		rs, rt := make([]float64, len(xq)), make([]float64, len(xq))
		for q, x := range xq {
			rs[q] = source.ReferenceCoordinate(ks, x)
			rt[q] = target.ReferenceCoordinate(kt, x)
		}
		Is, It := source.InterpMatrix(rs), target.InterpMatrix(rt)
		for i := 0; i < target.Np; i++ {
			gi := target.GlobalIndex(kt, i)
			for j := 0; j < source.Np; j++ {
				var sum float64
				for q := range xq {
					sum += wq[q] * It.At(q, i) * Is.At(q, j)
				}
				gj := source.GlobalIndex(ks, j)
				M.Set(gi, gj, M.At(gi, gj)+sum)
			}
		}
	}
	return M, nil
}
