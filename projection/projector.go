package projection

import (
	"errors"
	"fmt"

	"github.com/notargets/DGAdjoint/fem"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularMass is returned when the target mass matrix cannot be factorized
	ErrSingularMass = errors.New("singular or ill-conditioned target mass matrix")
	// ErrIncompatibleSpaces is returned when the component structure of two spaces differs
	ErrIncompatibleSpaces = errors.New("incompatible function spaces")
)

// MaxCondition bounds the condition number accepted for a target mass matrix
const MaxCondition = 1e12

type transfer struct {
	mixed *mat.Dense // [target dofs × source dofs]
	mass  *mat.Cholesky
}

type key struct {
	source, target *fem.FunctionSpace
}

// Projector performs L2 projections between discretizations, caching the
// transfer operators of every pair of scalar spaces it has seen
type Projector struct {
	cache map[key]*transfer
}

func NewProjector() *Projector {
	return &Projector{cache: make(map[key]*transfer)}
}

// Project maps src into target: x_t = M_t^{-1} M_ts x_s.
// Coinciding spaces give a copy, mixed spaces are projected per component.
func (p *Projector) Project(src *fem.Function, target *fem.FunctionSpace) (*fem.Function, error) {
	return p.apply(src, src.Space(), target, false)
}

// ProjectAdjoint is the transpose of Project: given a seed on the target
// space of a projection from source, x_s = M_ts^T M_t^{-T} y_t
func (p *Projector) ProjectAdjoint(seed *fem.Function, source *fem.FunctionSpace) (*fem.Function, error) {
	return p.apply(seed, seed.Space(), source, true)
}

func (p *Projector) apply(f *fem.Function, from, to *fem.FunctionSpace, adjoint bool) (*fem.Function, error) {
	if from.Same(to) {
		return fem.NewFunctionFrom(to, f.Name, f.Vector())
	}
	if from.IsMixed() != to.IsMixed() || from.NumSubSpaces() != to.NumSubSpaces() {
		return nil, fmt.Errorf("%w: %s and %s", ErrIncompatibleSpaces, from.Element(), to.Element())
	}
	if !to.IsMixed() {
		return p.applyScalar(f, from, to, adjoint)
	}
	out := fem.NewFunction(to, f.Name)
	for c := 0; c < to.NumSubSpaces(); c++ {
		sub, err := p.apply(f.Sub(c), from.SubSpace(c), to.SubSpace(c), adjoint)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", c, err)
		}
		if err = out.SetSub(c, sub); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Projector) applyScalar(f *fem.Function, from, to *fem.FunctionSpace, adjoint bool) (*fem.Function, error) {
	var (
		tr  *transfer
		err error
		dst = mat.NewVecDense(to.Dim(), nil)
	)
	if !adjoint {
		if tr, err = p.operator(from, to); err != nil {
			return nil, err
		}
		rhs := mat.NewVecDense(to.Dim(), nil)
		rhs.MulVec(tr.mixed, f.Vector())
		if err = tr.mass.SolveVecTo(dst, rhs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularMass, err)
		}
	} else {
		// the forward map went from `to` into `from`
		if tr, err = p.operator(to, from); err != nil {
			return nil, err
		}
		r := mat.NewVecDense(from.Dim(), nil)
		if err = tr.mass.SolveVecTo(r, f.Vector()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularMass, err)
		}
		dst.MulVec(tr.mixed.T(), r)
	}
	return fem.NewFunctionFrom(to, f.Name, dst)
}

func (p *Projector) operator(source, target *fem.FunctionSpace) (*transfer, error) {
	k := key{source: source, target: target}
	if tr, ok := p.cache[k]; ok {
		return tr, nil
	}
	mixed, err := MixedMassMatrix(source.Disc, target.Disc)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(target.MassMatrix()); !ok {
		return nil, fmt.Errorf("%w: %s is not positive definite", ErrSingularMass, target)
	}
	if cond := chol.Cond(); cond > MaxCondition {
		return nil, fmt.Errorf("%w: %s has condition number %.3g", ErrSingularMass, target, cond)
	}
	tr := &transfer{mixed: mixed, mass: &chol}
	p.cache[k] = tr
	return tr, nil
}
