package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gocfd/DG1D"
)

// Mesh is a conforming partition of an interval [a,b] into K line elements.
// Element k spans [VX[k], VX[k+1]].
type Mesh struct {
	VX          []float64 // Vertex coordinates, strictly increasing
	EToV        [][]int   // Element to vertex connectivity
	NumElements int
	NumVertices int
	Periodic    bool // The last element's right face connects to the first element's left face
}

// NewMesh builds a mesh from strictly increasing vertex coordinates
func NewMesh(VX []float64, periodic bool) (*Mesh, error) {
	if len(VX) < 2 {
		return nil, fmt.Errorf("mesh needs at least 2 vertices, got %d", len(VX))
	}
	for i := 1; i < len(VX); i++ {
		if !(VX[i] > VX[i-1]) {
			return nil, fmt.Errorf("vertex %d at %g does not follow vertex %d at %g",
				i, VX[i], i-1, VX[i-1])
		}
	}
	m := &Mesh{
		VX:          append([]float64(nil), VX...),
		NumVertices: len(VX),
		NumElements: len(VX) - 1,
		Periodic:    periodic,
	}
	m.EToV = make([][]int, m.NumElements)
	for k := range m.EToV {
		m.EToV[k] = []int{k, k + 1}
	}
	return m, nil
}

// NewUniformMesh splits [a,b] into K equal elements
func NewUniformMesh(a, b float64, K int, periodic bool) (*Mesh, error) {
	if K < 1 {
		return nil, fmt.Errorf("invalid element count %d", K)
	}
	if !(b > a) {
		return nil, fmt.Errorf("invalid domain [%g, %g]", a, b)
	}
	vx, etov := DG1D.SimpleMesh1D(a, b, K)
	VX := append([]float64(nil), vx.Data()...)
	VX[K] = b
	m, err := NewMesh(VX, periodic)
	if err != nil {
		return nil, err
	}
	for k := range m.EToV {
		m.EToV[k] = []int{int(etov.At(k, 0)), int(etov.At(k, 1))}
	}
	return m, nil
}

// Domain returns the end points of the meshed interval
func (m *Mesh) Domain() (a, b float64) {
	return m.VX[0], m.VX[m.NumVertices-1]
}

// ElementSize returns the length of element k
func (m *Mesh) ElementSize(k int) float64 {
	return m.VX[k+1] - m.VX[k]
}

// Locate returns the element containing x. Points on an interior vertex belong
// to the element on their right, the right end point to the last element.
// Points outside the domain return -1.
func (m *Mesh) Locate(x float64) int {
	a, b := m.Domain()
	if x < a || x > b {
		return -1
	}
	k := sort.SearchFloat64s(m.VX, x)
	if k < m.NumVertices && m.VX[k] == x {
		k++
	}
	k--
	if k >= m.NumElements {
		k = m.NumElements - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Refine bisects every element
func (m *Mesh) Refine() *Mesh {
	VX := make([]float64, 0, 2*m.NumElements+1)
	for k := 0; k < m.NumElements; k++ {
		VX = append(VX, m.VX[k], 0.5*(m.VX[k]+m.VX[k+1]))
	}
	VX = append(VX, m.VX[m.NumVertices-1])
	rm, _ := NewMesh(VX, m.Periodic)
	return rm
}

// Equal reports whether two meshes share vertices to within a relative tolerance
func (m *Mesh) Equal(o *Mesh) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil || m.NumVertices != o.NumVertices || m.Periodic != o.Periodic {
		return false
	}
	a, b := m.Domain()
	tol := 1e-12 * (b - a)
	for i := range m.VX {
		if math.Abs(m.VX[i]-o.VX[i]) > tol {
			return false
		}
	}
	return true
}

// Neighbors returns the element to the left and right of element k, -1 on a
// non-periodic boundary
func (m *Mesh) Neighbors(k int) (left, right int) {
	left, right = k-1, k+1
	if left < 0 {
		left = -1
		if m.Periodic {
			left = m.NumElements - 1
		}
	}
	if right >= m.NumElements {
		right = -1
		if m.Periodic {
			right = 0
		}
	}
	return
}

func (m *Mesh) String() string {
	a, b := m.Domain()
	return fmt.Sprintf("Mesh[%d elements on [%g, %g], periodic=%v]", m.NumElements, a, b, m.Periodic)
}
