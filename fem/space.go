package fem

import (
	"fmt"
	"strings"

	"github.com/notargets/DGAdjoint/element"
	"github.com/notargets/DGAdjoint/linenudg"
	"github.com/notargets/DGAdjoint/mesh"
	"gonum.org/v1/gonum/mat"
)

// FunctionSpace is either a scalar DG space on one mesh or a mixed space made
// of independent scalar components stacked in order
type FunctionSpace struct {
	Family element.Family
	Disc   *linenudg.LineNudgMesh // nil for mixed spaces

	subs    []*FunctionSpace
	offsets []int
	mass    *mat.SymDense
}

// NewFunctionSpace creates a scalar space of the given family and order on msh
func NewFunctionSpace(msh *mesh.Mesh, family element.Family, order int) (*FunctionSpace, error) {
	if family != element.DG {
		return nil, fmt.Errorf("unsupported element family %q", family)
	}
	ln, err := linenudg.NewLineNudgMesh(order, msh)
	if err != nil {
		return nil, fmt.Errorf("function space: %w", err)
	}
	return &FunctionSpace{
		Family:  family,
		Disc:    ln,
		offsets: []int{0, ln.NumDofs()},
	}, nil
}

// NewMixedFunctionSpace stacks scalar spaces into one composite space
func NewMixedFunctionSpace(subs ...*FunctionSpace) (*FunctionSpace, error) {
	if len(subs) < 2 {
		return nil, fmt.Errorf("mixed space needs at least 2 components, got %d", len(subs))
	}
	fs := &FunctionSpace{
		Family:  subs[0].Family,
		offsets: []int{0},
	}
	for i, sub := range subs {
		if sub == nil || sub.IsMixed() {
			return nil, fmt.Errorf("mixed space component %d must be a scalar space", i)
		}
		fs.subs = append(fs.subs, sub)
		fs.offsets = append(fs.offsets, fs.offsets[i]+sub.Dim())
	}
	return fs, nil
}

func (fs *FunctionSpace) IsMixed() bool { return len(fs.subs) > 0 }

// NumSubSpaces is 1 for scalar spaces
func (fs *FunctionSpace) NumSubSpaces() int {
	if !fs.IsMixed() {
		return 1
	}
	return len(fs.subs)
}

// SubSpace returns component i; a scalar space is its own only component
func (fs *FunctionSpace) SubSpace(i int) *FunctionSpace {
	if !fs.IsMixed() {
		if i != 0 {
			panic(fmt.Errorf("scalar space has no component %d", i))
		}
		return fs
	}
	return fs.subs[i]
}

// Offsets returns the start of every component in a nodal vector, plus the total
func (fs *FunctionSpace) Offsets() []int { return fs.offsets }

// Dim is the number of degrees of freedom
func (fs *FunctionSpace) Dim() int { return fs.offsets[len(fs.offsets)-1] }

// Element describes the element used, identical for every mesh the same
// element is placed on
func (fs *FunctionSpace) Element() string {
	if !fs.IsMixed() {
		return fs.Disc.ShortName()
	}
	names := make([]string, len(fs.subs))
	for i, sub := range fs.subs {
		names[i] = sub.Element()
	}
	return "Mixed(" + strings.Join(names, ",") + ")"
}

// Mesh returns the mesh of the space, the first component's for mixed spaces
func (fs *FunctionSpace) Mesh() *mesh.Mesh {
	if fs.IsMixed() {
		return fs.subs[0].Mesh()
	}
	return fs.Disc.Mesh
}

// Same reports whether fs and o describe the same discretization
func (fs *FunctionSpace) Same(o *FunctionSpace) bool {
	switch {
	case fs == o:
		return true
	case fs == nil || o == nil:
		return false
	case fs.IsMixed() != o.IsMixed() || fs.NumSubSpaces() != o.NumSubSpaces():
		return false
	case fs.IsMixed():
		for i := range fs.subs {
			if !fs.subs[i].Same(o.subs[i]) {
				return false
			}
		}
		return true
	}
	return fs.Element() == o.Element() && fs.Disc.Mesh.Equal(o.Disc.Mesh)
}

// MassMatrix returns the (block diagonal) mass matrix of the space
func (fs *FunctionSpace) MassMatrix() *mat.SymDense {
	if fs.mass != nil {
		return fs.mass
	}
	if !fs.IsMixed() {
		fs.mass = fs.Disc.GlobalMassMatrix()
		return fs.mass
	}
	fs.mass = mat.NewSymDense(fs.Dim(), nil)
	for c, sub := range fs.subs {
		Ms, off := sub.MassMatrix(), fs.offsets[c]
		for i := 0; i < sub.Dim(); i++ {
			for j := i; j < sub.Dim(); j++ {
				fs.mass.SetSym(off+i, off+j, Ms.At(i, j))
			}
		}
	}
	return fs.mass
}

func (fs *FunctionSpace) String() string {
	a, b := fs.Mesh().Domain()
	return fmt.Sprintf("%s on %d elements [%g,%g], %d dofs",
		fs.Element(), fs.Mesh().NumElements, a, b, fs.Dim())
}
