package fem

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGAdjoint/tape"
	"github.com/notargets/DGAdjoint/utils"
	"gonum.org/v1/gonum/mat"
)

// Function is a nodal field on a FunctionSpace. Once it has been read by a
// recorded operation it carries the tape Variable holding that value.
type Function struct {
	Name  string
	space *FunctionSpace
	data  *mat.VecDense
	v     *tape.Variable
}

// NewFunction returns the zero function on fs
func NewFunction(fs *FunctionSpace, name string) *Function {
	return &Function{
		Name:  name,
		space: fs,
		data:  mat.NewVecDense(fs.Dim(), nil),
	}
}

// NewFunctionFrom copies vals into a new function on fs
func NewFunctionFrom(fs *FunctionSpace, name string, vals mat.Vector) (*Function, error) {
	f := NewFunction(fs, name)
	if err := f.Assign(vals); err != nil {
		return nil, err
	}
	return f, nil
}

// Interpolate samples one function of x per component at the nodes of fs
func Interpolate(fs *FunctionSpace, name string, fns ...func(x float64) float64) (*Function, error) {
	if len(fns) != fs.NumSubSpaces() {
		return nil, fmt.Errorf("interpolating %q: %d functions for %d components",
			name, len(fns), fs.NumSubSpaces())
	}
	f := NewFunction(fs, name)
	for c, fn := range fns {
		vals := fs.SubSpace(c).Disc.Interpolate(fn)
		off := fs.Offsets()[c]
		for i, v := range vals {
			f.data.SetVec(off+i, v)
		}
	}
	return f, nil
}

func (f *Function) Space() *FunctionSpace { return f.space }

// Vector exposes the nodal values; writes through it bypass the tape
func (f *Function) Vector() *mat.VecDense { return f.data }

// Values returns a copy of the nodal values
func (f *Function) Values() []float64 {
	return append([]float64(nil), f.data.RawVector().Data...)
}

func (f *Function) Len() int { return f.data.Len() }

// Assign overwrites the values of f. The new value is untracked.
func (f *Function) Assign(src mat.Vector) error {
	if src == nil {
		return fmt.Errorf("assigning nil to %q", f.Name)
	}
	if src.Len() != f.data.Len() {
		return fmt.Errorf("assigning %d values to %q with %d dofs", src.Len(), f.Name, f.data.Len())
	}
	f.data.CopyVec(src)
	f.v = nil
	return nil
}

// AddScaled sets f = f + alpha*x. The new value is untracked.
func (f *Function) AddScaled(alpha float64, x mat.Vector) error {
	if x.Len() != f.data.Len() {
		return fmt.Errorf("adding %d values to %q with %d dofs", x.Len(), f.Name, f.data.Len())
	}
	f.data.AddScaledVec(f.data, alpha, x)
	f.v = nil
	return nil
}

// Copy returns an untracked deep copy
func (f *Function) Copy() *Function {
	return &Function{
		Name:  f.Name,
		space: f.space,
		data:  mat.VecDenseCopyOf(f.data),
	}
}

// Variable returns the tape variable holding the current value of f,
// creating one if the value has not been recorded yet
func (f *Function) Variable() *tape.Variable {
	if f.v == nil {
		f.v = tape.NewVariable(f.Name, f.space, f.data)
	}
	return f.v
}

// Tracked reports whether the current value is held by a tape variable
func (f *Function) Tracked() bool { return f.v != nil }

func (f *Function) setVariable(v *tape.Variable) { f.v = v }

// Sub returns an untracked copy of component i
func (f *Function) Sub(i int) *Function {
	sub := f.space.SubSpace(i)
	off := f.space.Offsets()[i]
	return &Function{
		Name:  fmt.Sprintf("%s[%d]", f.Name, i),
		space: sub,
		data:  mat.VecDenseCopyOf(f.data.SliceVec(off, off+sub.Dim())),
	}
}

// SetSub overwrites component i with the values of g
func (f *Function) SetSub(i int, g *Function) error {
	sub := f.space.SubSpace(i)
	if g.Len() != sub.Dim() {
		return fmt.Errorf("component %d of %q has %d dofs, got %d", i, f.Name, sub.Dim(), g.Len())
	}
	off := f.space.Offsets()[i]
	f.data.SliceVec(off, off+sub.Dim()).(*mat.VecDense).CopyVec(g.data)
	f.v = nil
	return nil
}

// Norm is the L2 norm sqrt(u^T M u)
func (f *Function) Norm() float64 {
	return math.Sqrt(mat.Inner(f.data, f.space.MassMatrix(), f.data))
}

// IsZero reports whether every value is zero to the default tolerance
func (f *Function) IsZero() bool { return utils.IsZero(f.data) }

// Fields maps field names to their values
type Fields map[string]*Function

// Names returns the field names in sorted order
func (fl Fields) Names() []string {
	names := make([]string, 0, len(fl))
	for name := range fl {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy deep copies every field, dropping tape variables
func (fl Fields) Copy() Fields {
	out := make(Fields, len(fl))
	for name, f := range fl {
		out[name] = f.Copy()
	}
	return out
}
