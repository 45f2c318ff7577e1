package fem

import (
	"fmt"

	"github.com/notargets/DGAdjoint/tape"
	"gonum.org/v1/gonum/mat"
)

// Term is the dependence of a Form on one Function
type Term struct {
	Function *Function
	Gradient *mat.VecDense // ∂value/∂Function at its current value
}

// Form is an assembled scalar functional along with its gradients
type Form struct {
	Value float64
	Terms []Term
}

// SquaredL2 is ∫ u² dx = u^T M u
func SquaredL2(u *Function) Form {
	Mu := mat.NewVecDense(u.Len(), nil)
	Mu.MulVec(u.space.MassMatrix(), u.data)
	grad := mat.NewVecDense(u.Len(), nil)
	grad.ScaleVec(2, Mu)
	return Form{
		Value: mat.Dot(u.data, Mu),
		Terms: []Term{{Function: u, Gradient: grad}},
	}
}

// Integral is ∫ u dx = 1^T M u
func Integral(u *Function) Form {
	ones := mat.NewVecDense(u.Len(), nil)
	for i := 0; i < u.Len(); i++ {
		ones.SetVec(i, 1)
	}
	grad := mat.NewVecDense(u.Len(), nil)
	grad.MulVec(u.space.MassMatrix(), ones)
	return Form{
		Value: mat.Dot(grad, u.data),
		Terms: []Term{{Function: u, Gradient: grad}},
	}
}

// Scale returns c times f
func (f Form) Scale(c float64) Form {
	out := Form{Value: c * f.Value}
	for _, t := range f.Terms {
		g := mat.NewVecDense(t.Gradient.Len(), nil)
		g.ScaleVec(c, t.Gradient)
		out.Terms = append(out.Terms, Term{Function: t.Function, Gradient: g})
	}
	return out
}

// Sum adds forms
func Sum(forms ...Form) Form {
	var out Form
	for _, f := range forms {
		out.Value += f.Value
		out.Terms = append(out.Terms, f.Terms...)
	}
	return out
}

// Assemble returns the value of f, recording it as a functional when tp is recording
func Assemble(tp tape.Tape, f Form) (float64, error) {
	if tp == nil || !tp.Recording() {
		return f.Value, nil
	}
	deps := make([]*tape.Variable, len(f.Terms))
	grads := make([]*mat.VecDense, len(f.Terms))
	for i, t := range f.Terms {
		deps[i] = t.Function.Variable()
		grads[i] = t.Gradient
	}
	fb, err := tape.NewFunctionalBlock(f.Value, deps, grads)
	if err != nil {
		return 0, fmt.Errorf("assembling functional: %w", err)
	}
	tp.Record(fb)
	return f.Value, nil
}
