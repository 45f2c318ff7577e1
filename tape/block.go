package tape

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Block is one recorded operation
type Block interface {
	Dependencies() []*Variable
	Outputs() []*Variable
	// EvaluateAdjoint propagates the adjoint values of the outputs into the dependencies
	EvaluateAdjoint() error
}

// SolveBlock records the linear solve A u = Σ_k C_k d_k + f for one field,
// where d_k are the recorded dependencies and f is a constant source
type SolveBlock struct {
	Tag string // Field the solve belongs to

	space  Space
	a      mat.Matrix
	lu     *mat.LU
	deps   []*Variable
	coefs  []mat.Matrix // nil entries mean the identity
	output *Variable
	lagged []int

	// AdjSol is the adjoint solution A^{-T} adj(u), nil until evaluated
	AdjSol *mat.VecDense
}

// NewSolveBlock records a solve. lu may carry the factorization of A used in
// the forward solve. lagged lists the dependencies tagged as the field's own
// value at the previous step; negative entries are ignored.
func NewSolveBlock(tag string, space Space, A mat.Matrix, lu *mat.LU,
	deps []*Variable, coefs []mat.Matrix, output *Variable, lagged ...int) (*SolveBlock, error) {
	if len(deps) != len(coefs) {
		return nil, fmt.Errorf("solve block %q: %d dependencies but %d operators", tag, len(deps), len(coefs))
	}
	var tagged []int
	for _, l := range lagged {
		if l >= len(deps) {
			return nil, fmt.Errorf("solve block %q: lagged index %d out of range [0,%d)", tag, l, len(deps))
		}
		if l >= 0 {
			tagged = append(tagged, l)
		}
	}
	if lu == nil {
		lu = &mat.LU{}
		lu.Factorize(A)
	}
	return &SolveBlock{
		Tag:    tag,
		space:  space,
		a:      A,
		lu:     lu,
		deps:   deps,
		coefs:  coefs,
		output: output,
		lagged: tagged,
	}, nil
}

func (sb *SolveBlock) Dependencies() []*Variable { return sb.deps }
func (sb *SolveBlock) Outputs() []*Variable      { return []*Variable{sb.output} }
func (sb *SolveBlock) Output() *Variable         { return sb.output }
func (sb *SolveBlock) Space() Space              { return sb.space }

// LaggedIndex is the first dependency index tagged as the previous-step value, -1 if none
func (sb *SolveBlock) LaggedIndex() int {
	if len(sb.lagged) == 0 {
		return -1
	}
	return sb.lagged[0]
}

// LaggedIndices lists every dependency tagged as the previous-step value
func (sb *SolveBlock) LaggedIndices() []int { return sb.lagged }

// HasAdjointSolution reports whether the backward sweep reached this solve
func (sb *SolveBlock) HasAdjointSolution() bool { return sb.AdjSol != nil }

func (sb *SolveBlock) EvaluateAdjoint() error {
	if !sb.output.HasAdjoint() {
		return nil
	}
	lambda := mat.NewVecDense(sb.output.Len(), nil)
	if err := sb.lu.SolveVecTo(lambda, true, sb.output.Adj); err != nil {
		return fmt.Errorf("adjoint solve for %q: %w", sb.Tag, err)
	}
	sb.AdjSol = lambda

	for k, dep := range sb.deps {
		if sb.coefs[k] == nil {
			dep.AddAdjoint(1, lambda)
			continue
		}
		contrib := mat.NewVecDense(dep.Len(), nil)
		contrib.MulVec(sb.coefs[k].T(), lambda)
		dep.AddAdjoint(1, contrib)
	}
	return nil
}

// CombinationBlock records out = Σ_k c_k d_k
type CombinationBlock struct {
	deps   []*Variable
	coefs  []float64
	output *Variable
}

func NewCombinationBlock(deps []*Variable, coefs []float64, output *Variable) (*CombinationBlock, error) {
	if len(deps) != len(coefs) {
		return nil, fmt.Errorf("combination block: %d dependencies but %d coefficients", len(deps), len(coefs))
	}
	return &CombinationBlock{
		deps:   deps,
		coefs:  coefs,
		output: output,
	}, nil
}

func (cb *CombinationBlock) Dependencies() []*Variable { return cb.deps }
func (cb *CombinationBlock) Outputs() []*Variable      { return []*Variable{cb.output} }

func (cb *CombinationBlock) EvaluateAdjoint() error {
	if !cb.output.HasAdjoint() {
		return nil
	}
	for k, dep := range cb.deps {
		dep.AddAdjoint(cb.coefs[k], cb.output.Adj)
	}
	return nil
}

// FunctionalBlock records a scalar functional J(d_1..d_n) together with the
// gradients ∂J/∂d_k at the recorded values. Its output is seeded with an
// adjoint value of 1.
type FunctionalBlock struct {
	deps      []*Variable
	gradients []*mat.VecDense
	output    *Variable
}

func NewFunctionalBlock(value float64, deps []*Variable, gradients []*mat.VecDense) (*FunctionalBlock, error) {
	if len(deps) != len(gradients) {
		return nil, fmt.Errorf("functional block: %d dependencies but %d gradients", len(deps), len(gradients))
	}
	for k, g := range gradients {
		if g.Len() != deps[k].Len() {
			return nil, fmt.Errorf("functional block: gradient %d has length %d, dependency has %d",
				k, g.Len(), deps[k].Len())
		}
	}
	out := NewScalarVariable("J", value)
	out.SetAdjoint(mat.NewVecDense(1, []float64{1}))
	return &FunctionalBlock{
		deps:      deps,
		gradients: gradients,
		output:    out,
	}, nil
}

func (fb *FunctionalBlock) Dependencies() []*Variable { return fb.deps }
func (fb *FunctionalBlock) Outputs() []*Variable      { return []*Variable{fb.output} }
func (fb *FunctionalBlock) Output() *Variable         { return fb.output }
func (fb *FunctionalBlock) Value() float64            { return fb.output.Value.AtVec(0) }

func (fb *FunctionalBlock) EvaluateAdjoint() error {
	if !fb.output.HasAdjoint() {
		return nil
	}
	seed := fb.output.Adj.AtVec(0)
	for k, dep := range fb.deps {
		dep.AddAdjoint(seed, fb.gradients[k])
	}
	return nil
}
