package linenudg

import (
	"fmt"
	"strings"

	"github.com/notargets/DGAdjoint/element"
	"github.com/notargets/DGAdjoint/element/library/gonudg"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/DGAdjoint/utils"
	"gonum.org/v1/gonum/mat"
)

// LineNudgMesh binds a nodal line element to a 1D mesh. Nodal data is laid out
// element by element: global node k*Np+i is node i of element k.
type LineNudgMesh struct {
	*gonudg.NUDGLine
	*mesh.Mesh

	K int // Number of elements

	// Physical coordinates of the nodes [Np × K]
	X *mat.Dense

	// Geometric factors [Np × K]
	J  *mat.Dense
	Rx *mat.Dense
}

var _ element.MeshElement = (*LineNudgMesh)(nil)

// NewLineNudgMesh creates a nodal DG discretization of order N on msh
func NewLineNudgMesh(order int, msh *mesh.Mesh) (ln *LineNudgMesh, err error) {
	if msh == nil {
		return nil, fmt.Errorf("nil mesh")
	}
	ln = &LineNudgMesh{
		Mesh: msh,
		K:    msh.NumElements,
	}
	if ln.NUDGLine, err = gonudg.NewNUDGLine(order); err != nil {
		return nil, err
	}

	ln.X = mat.NewDense(ln.Np, ln.K, nil)
	ln.J = mat.NewDense(ln.Np, ln.K, nil)
	ln.Rx = mat.NewDense(ln.Np, ln.K, nil)
	for k := 0; k < ln.K; k++ {
		va, vb := msh.EToV[k][0], msh.EToV[k][1]
		xa, xb := msh.VX[va], msh.VX[vb]
		jac := 0.5 * (xb - xa)
		for i := 0; i < ln.Np; i++ {
			ln.X.Set(i, k, xa+0.5*(1+ln.R[i])*(xb-xa))
			ln.J.Set(i, k, jac)
			ln.Rx.Set(i, k, 1/jac)
		}
	}
	return ln, nil
}

// NumDofs is the number of nodal values of a scalar field
func (ln *LineNudgMesh) NumDofs() int {
	return ln.Np * ln.K
}

// ShortName identifies the element, e.g. "DG2"
func (ln *LineNudgMesh) ShortName() string {
	return fmt.Sprintf("%s%d", element.DG, ln.N)
}

// String returns a summary of the LineNudgMesh properties
func (ln *LineNudgMesh) String() string {
	var sb strings.Builder

	sb.WriteString("=== LineNudgMesh Summary ===\n")

	elemProps := ln.GetProperties()
	sb.WriteString("\n--- Reference Element Properties ---\n")
	sb.WriteString(fmt.Sprintf("  Name: %s (%s)\n", elemProps.Name, elemProps.ShortName))
	sb.WriteString(fmt.Sprintf("  Type: %v\n", elemProps.Type))
	sb.WriteString(fmt.Sprintf("  Order: %d\n", elemProps.Order))
	sb.WriteString(fmt.Sprintf("  Nodes per element (Np): %d\n", elemProps.Np))
	sb.WriteString(fmt.Sprintf("  Nodes strictly interior: %d\n", elemProps.NIp))

	rMin, rMax := utils.MinMax(ln.R)
	sb.WriteString(fmt.Sprintf("  R range: [%.4f, %.4f]\n", rMin, rMax))

	meshProps := ln.GetMeshProperties()
	sb.WriteString("\n--- Physical Mesh Properties ---\n")
	sb.WriteString(fmt.Sprintf("  Number of elements: %d\n", meshProps.NumElements))
	sb.WriteString(fmt.Sprintf("  Number of vertices: %d\n", meshProps.NumVertices))
	sb.WriteString(fmt.Sprintf("  Domain: [%g, %g]\n", meshProps.Domain[0], meshProps.Domain[1]))
	sb.WriteString(fmt.Sprintf("  Total degrees of freedom: %d\n", ln.NumDofs()))

	if jMin, jMax := utils.MatrixMinMax(ln.J); jMin != 0 || jMax != 0 {
		sb.WriteString(fmt.Sprintf("  Jacobian range: [%.4e, %.4e]\n", jMin, jMax))
	}
	sb.WriteString("\n============================\n")
	return sb.String()
}

func (ln *LineNudgMesh) GetMeshProperties() element.MeshProperties {
	a, b := ln.Mesh.Domain()
	return element.MeshProperties{
		NumElements: ln.Mesh.NumElements,
		NumVertices: ln.Mesh.NumVertices,
		NumFaces:    ln.Mesh.NumVertices,
		Domain:      [2]float64{a, b},
	}
}

func (ln *LineNudgMesh) GetReferenceElement() element.ReferenceElement {
	return ln
}

func (ln *LineNudgMesh) GetGeometricTransform() element.GeometricTransform {
	return element.GeometricTransform{
		Rx: ln.Rx,
		J:  ln.J,
	}
}

func (ln *LineNudgMesh) GetProperties() element.ElementProperties {
	nip := ln.Np - 2
	if nip < 0 {
		nip = 0
	}
	return element.ElementProperties{
		Name:       fmt.Sprintf("Lagrange Line Order %d", ln.N),
		ShortName:  fmt.Sprintf("Line%d", ln.N),
		Type:       element.Line,
		Family:     element.DG,
		Order:      ln.N,
		Np:         ln.Np,
		NFp:        ln.Nfp,
		NVp:        2,
		NIp:        nip,
		NFaces:     ln.Nfaces,
		Dimensions: element.D1,
	}
}

func (ln *LineNudgMesh) GetReferenceGeometry() element.ReferenceGeometry {
	interior := make([]int, 0, ln.Np)
	for i := 1; i < ln.Np-1; i++ {
		interior = append(interior, i)
	}
	return element.ReferenceGeometry{
		R:              ln.R,
		VertexPoints:   []int{ln.Fmask[0][0], ln.Fmask[1][0]},
		FacePoints:     ln.Fmask,
		InteriorPoints: interior,
	}
}

func (ln *LineNudgMesh) GetNodalModal() element.NodalModalMatrices {
	var Minv mat.Matrix
	inv := mat.NewDense(ln.Np, ln.Np, nil)
	if err := inv.Inverse(ln.MassMatrix); err == nil {
		Minv = inv
	}
	return element.NodalModalMatrices{
		V:    ln.V,
		Vinv: ln.Vinv,
		M:    ln.MassMatrix,
		Minv: Minv,
	}
}

func (ln *LineNudgMesh) GetReferenceOperators() element.ReferenceOperators {
	return element.ReferenceOperators{
		Dr:   ln.Dr,
		LIFT: ln.LIFT,
	}
}

// GetRefMatrices returns the named reference matrices of the element
func (ln *LineNudgMesh) GetRefMatrices() map[string]mat.Matrix {
	return element.GetRefMatrices(ln)
}
