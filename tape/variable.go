package tape

import (
	"gonum.org/v1/gonum/mat"
)

// Space is the discretization a Variable belongs to
type Space interface {
	Element() string // Element descriptor, e.g. "DG1"
	Dim() int        // Number of degrees of freedom
}

// Variable is one recorded value: the saved forward output of a block and
// the adjoint value accumulated into it during the backward sweep
type Variable struct {
	Name  string
	Space Space // nil for scalars

	Value *mat.VecDense // Saved forward value
	Adj   *mat.VecDense // Accumulated adjoint value, nil until reached
}

// NewVariable snapshots value into a new Variable
func NewVariable(name string, space Space, value mat.Vector) *Variable {
	v := &Variable{
		Name:  name,
		Space: space,
	}
	if value != nil {
		v.Value = mat.VecDenseCopyOf(value)
	}
	return v
}

// NewScalarVariable records a single number
func NewScalarVariable(name string, value float64) *Variable {
	return &Variable{
		Name:  name,
		Value: mat.NewVecDense(1, []float64{value}),
	}
}

// Len is the length of the saved value
func (v *Variable) Len() int {
	if v.Value == nil {
		return 0
	}
	return v.Value.Len()
}

// HasAdjoint reports whether any adjoint contribution reached v
func (v *Variable) HasAdjoint() bool {
	return v.Adj != nil
}

// SetAdjoint overwrites the adjoint value of v
func (v *Variable) SetAdjoint(adj mat.Vector) {
	if adj == nil {
		v.Adj = nil
		return
	}
	v.Adj = mat.VecDenseCopyOf(adj)
}

// AddAdjoint accumulates alpha*adj into the adjoint value of v
func (v *Variable) AddAdjoint(alpha float64, adj mat.Vector) {
	if v.Adj == nil {
		v.Adj = mat.NewVecDense(adj.Len(), nil)
	}
	v.Adj.AddScaledVec(v.Adj, alpha, adj)
}

// AdjointValue returns a copy of the adjoint value, zero when nothing reached v
func (v *Variable) AdjointValue() *mat.VecDense {
	if v.Adj == nil {
		n := v.Len()
		if n == 0 {
			return nil
		}
		return mat.NewVecDense(n, nil)
	}
	return mat.VecDenseCopyOf(v.Adj)
}

// Control registers a Variable as a point sensitivities are attributed to
type Control struct {
	Field string
	Var   *Variable
}

// NewControl wraps v as a Control for field
func NewControl(field string, v *Variable) *Control {
	return &Control{
		Field: field,
		Var:   v,
	}
}
