package fem

import (
	"fmt"

	"github.com/notargets/DGAdjoint/tape"
	"gonum.org/v1/gonum/mat"
)

// Dependency is one right hand side contribution Operator*Function of a
// LinearProblem. Lagged marks the field's own value at the previous step.
type Dependency struct {
	Function *Function
	Operator mat.Matrix // nil means the identity
	Lagged   bool
}

// LinearProblem is A u = Σ_k C_k d_k + f for the field named Field
type LinearProblem struct {
	Field        string
	Operator     mat.Matrix
	Dependencies []Dependency
	Source       mat.Vector // optional constant f
}

// Solve solves p into u. When tp is recording the solve is appended to the
// tape and u carries the recorded output.
func Solve(tp tape.Tape, p LinearProblem, u *Function) error {
	n := u.Len()
	if r, c := p.Operator.Dims(); r != n || c != n {
		return fmt.Errorf("solving %q: operator is %d×%d for %d dofs", p.Field, r, c, n)
	}
	rhs := mat.NewVecDense(n, nil)
	if p.Source != nil {
		rhs.CopyVec(p.Source)
	}
	tmp := mat.NewVecDense(n, nil)
	for k, d := range p.Dependencies {
		if d.Operator == nil {
			if d.Function.Len() != n {
				return fmt.Errorf("solving %q: dependency %d has %d dofs, expected %d",
					p.Field, k, d.Function.Len(), n)
			}
			rhs.AddVec(rhs, d.Function.data)
			continue
		}
		if r, c := d.Operator.Dims(); r != n || c != d.Function.Len() {
			return fmt.Errorf("solving %q: dependency %d operator is %d×%d", p.Field, k, r, c)
		}
		tmp.MulVec(d.Operator, d.Function.data)
		rhs.AddVec(rhs, tmp)
	}

	var lu mat.LU
	lu.Factorize(p.Operator)
	sol := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(sol, false, rhs); err != nil {
		return fmt.Errorf("solving %q: %w", p.Field, err)
	}

	if tp == nil || !tp.Recording() {
		u.data.CopyVec(sol)
		u.v = nil
		return nil
	}

	deps := make([]*tape.Variable, len(p.Dependencies))
	coefs := make([]mat.Matrix, len(p.Dependencies))
	var lagged []int
	for k, d := range p.Dependencies {
		deps[k] = d.Function.Variable()
		coefs[k] = d.Operator
		if d.Lagged {
			lagged = append(lagged, k)
		}
	}
	u.data.CopyVec(sol)
	out := tape.NewVariable(u.Name, u.space, sol)
	sb, err := tape.NewSolveBlock(p.Field, u.space, p.Operator, &lu, deps, coefs, out, lagged...)
	if err != nil {
		return err
	}
	tp.Record(sb)
	u.setVariable(out)
	return nil
}

// Weighted is one term of a linear combination
type Weighted struct {
	Coef     float64
	Function *Function
}

// Combine sets u = Σ c_k f_k, recording the combination when tp is recording
func Combine(tp tape.Tape, u *Function, terms ...Weighted) error {
	sum := mat.NewVecDense(u.Len(), nil)
	for k, t := range terms {
		if t.Function.Len() != u.Len() {
			return fmt.Errorf("combining into %q: term %d has %d dofs, expected %d",
				u.Name, k, t.Function.Len(), u.Len())
		}
		sum.AddScaledVec(sum, t.Coef, t.Function.data)
	}
	if tp == nil || !tp.Recording() {
		u.data.CopyVec(sum)
		u.v = nil
		return nil
	}
	deps := make([]*tape.Variable, len(terms))
	coefs := make([]float64, len(terms))
	for k, t := range terms {
		deps[k] = t.Function.Variable()
		coefs[k] = t.Coef
	}
	u.data.CopyVec(sum)
	out := tape.NewVariable(u.Name, u.space, sum)
	cb, err := tape.NewCombinationBlock(deps, coefs, out)
	if err != nil {
		return err
	}
	tp.Record(cb)
	u.setVariable(out)
	return nil
}
