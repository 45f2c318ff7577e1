// Package advection is the periodic 1D advection-decay problem
//
//	u_t + a u_x + κ u = 0
//
// discretized with upwind nodal DG in space and either implicit Euler or an
// explicit Runge-Kutta scheme in time.
package advection

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/DGAdjoint/element"
	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/partitions"
	"gonum.org/v1/gonum/mat"
)

// Scheme names a time integrator
type Scheme string

const (
	ImplicitEuler Scheme = "implicit_euler"
	Heun          Scheme = "heun"
	SSPRK3        Scheme = "ssprk3"
)

// Problem holds the physical and discretization parameters
type Problem struct {
	Field    string
	Velocity float64
	Decay    float64
	Order    int
	Scheme   Scheme

	Initial func(x float64) float64

	operators map[*fem.FunctionSpace]*operators
}

type operators struct {
	dt    float64
	mass  *mat.SymDense
	lhs   *mat.Dense // M - dt L for implicit Euler, M for explicit stages
	dtL   *mat.Dense
	stage [][]*mat.Dense // A[s][r] dt L
}

// New returns a problem with a sine wave initial state
func New(field string, velocity, decay float64, order int, scheme Scheme) (*Problem, error) {
	p := &Problem{
		Field:    field,
		Velocity: velocity,
		Decay:    decay,
		Order:    order,
		Scheme:   scheme,
		Initial:  func(x float64) float64 { return math.Sin(2 * math.Pi * x) },
	}
	if _, err := p.Tableau(); err != nil {
		return nil, err
	}
	if order < 0 {
		return nil, fmt.Errorf("invalid polynomial order %d", order)
	}
	return p, nil
}

// Tableau is the Runge-Kutta scheme used, nil for implicit Euler
func (p *Problem) Tableau() (*fem.Tableau, error) {
	switch p.Scheme {
	case ImplicitEuler, "":
		return nil, nil
	case Heun:
		return fem.Heun, nil
	case SSPRK3:
		return fem.SSPRK3, nil
	}
	return nil, fmt.Errorf("unknown time integration scheme %q", p.Scheme)
}

// FunctionSpaces places a DG space of the problem's order on msh
func (p *Problem) FunctionSpaces(msh *mesh.Mesh) (map[string]*fem.FunctionSpace, error) {
	fs, err := fem.NewFunctionSpace(msh, element.DG, p.Order)
	if err != nil {
		return nil, err
	}
	return map[string]*fem.FunctionSpace{p.Field: fs}, nil
}

// InitialCondition interpolates Initial on the first segment
func (p *Problem) InitialCondition(spaces map[string]*fem.FunctionSpace) (fem.Fields, error) {
	u0, err := fem.Interpolate(spaces[p.Field], p.Field, p.Initial)
	if err != nil {
		return nil, err
	}
	return fem.Fields{p.Field: u0}, nil
}

func (p *Problem) operatorsFor(fs *fem.FunctionSpace, dt float64, tb *fem.Tableau) *operators {
	if p.operators == nil {
		p.operators = make(map[*fem.FunctionSpace]*operators)
	}
	if ops, ok := p.operators[fs]; ok && ops.dt == dt {
		return ops
	}
	n := fs.Dim()
	ops := &operators{
		dt:   dt,
		mass: fs.MassMatrix(),
		lhs:  mat.NewDense(n, n, nil),
		dtL:  mat.NewDense(n, n, nil),
	}
	ops.dtL.Scale(dt, fs.Disc.AdvectionOperator(p.Velocity, p.Decay))
	if tb == nil {
		ops.lhs.Sub(ops.mass, ops.dtL)
	} else {
		ops.lhs.Copy(ops.mass)
		ops.stage = make([][]*mat.Dense, tb.Stages())
		for s, row := range tb.A {
			ops.stage[s] = make([]*mat.Dense, s)
			for r := 0; r < s; r++ {
				if row[r] == 0 {
					continue
				}
				ops.stage[s][r] = mat.NewDense(n, n, nil)
				ops.stage[s][r].Scale(row[r], ops.dtL)
			}
		}
	}
	p.operators[fs] = ops
	return ops
}

// Solve advances ic across the segment. Every timestep records one solve for
// implicit Euler and one per stage for Runge-Kutta schemes, the first
// dependency of each being the previous timestep's value.
func (p *Problem) Solve(ctx context.Context, run *meshseq.SegmentRun, ic fem.Fields) (fem.Fields, error) {
	fs := run.Spaces[p.Field]
	ops := p.operatorsFor(fs, run.Timestep, run.Tableau)
	uOld := ic[p.Field]
	t := run.TStart
	for step := 0; step < run.NumTimesteps; step++ {
		var (
			u   *fem.Function
			err error
		)
		if run.Tableau == nil {
			u, err = p.implicitStep(run, ops, uOld)
		} else {
			u, err = p.explicitStep(run, ops, uOld)
		}
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", step, err)
		}
		t += run.Timestep
		if err = run.AccumulateQoI(fem.Fields{p.Field: u}, t); err != nil {
			return nil, err
		}
		uOld = u
	}
	return fem.Fields{p.Field: uOld}, nil
}

// (M - dt L) u = M u_old
func (p *Problem) implicitStep(run *meshseq.SegmentRun, ops *operators, uOld *fem.Function) (*fem.Function, error) {
	u := fem.NewFunction(uOld.Space(), p.Field)
	err := fem.Solve(run.Tape, fem.LinearProblem{
		Field:        p.Field,
		Operator:     ops.lhs,
		Dependencies: []fem.Dependency{{Function: uOld, Operator: ops.mass, Lagged: true}},
	}, u)
	return u, err
}

// M k_s = dt L (u_old + Σ_r A[s][r] k_r), u = u_old + Σ_s b_s k_s
func (p *Problem) explicitStep(run *meshseq.SegmentRun, ops *operators, uOld *fem.Function) (*fem.Function, error) {
	tb := run.Tableau
	stages := make([]*fem.Function, tb.Stages())
	for s := range stages {
		deps := []fem.Dependency{{Function: uOld, Operator: ops.dtL, Lagged: true}}
		for r := 0; r < s; r++ {
			if ops.stage[s][r] != nil {
				deps = append(deps, fem.Dependency{Function: stages[r], Operator: ops.stage[s][r]})
			}
		}
		stages[s] = fem.NewFunction(uOld.Space(), fmt.Sprintf("%s_stage%d", p.Field, s))
		if err := fem.Solve(run.Tape, fem.LinearProblem{
			Field:        p.Field,
			Operator:     ops.lhs,
			Dependencies: deps,
		}, stages[s]); err != nil {
			return nil, fmt.Errorf("stage %d: %w", s, err)
		}
	}
	terms := []fem.Weighted{{Coef: 1, Function: uOld}}
	for s, k := range stages {
		terms = append(terms, fem.Weighted{Coef: tb.B[s], Function: k})
	}
	u := fem.NewFunction(uOld.Space(), p.Field)
	if err := fem.Combine(run.Tape, u, terms...); err != nil {
		return nil, err
	}
	return u, nil
}

// EndTimeQoI is ∫ u(T)² dx
func (p *Problem) EndTimeQoI(_ partitions.Segment) any {
	return func(sol fem.Fields) fem.Form {
		return fem.SquaredL2(sol[p.Field])
	}
}

// TimeIntegratedQoI is ∫_0^T ∫ u² dx dt, by the right rectangle rule
func (p *Problem) TimeIntegratedQoI(seg partitions.Segment) any {
	dt := seg.Timestep
	return func(sol fem.Fields, _ float64) fem.Form {
		return fem.SquaredL2(sol[p.Field]).Scale(dt)
	}
}

// MeshSeq wires the problem into a MeshSeq over meshes
func (p *Problem) MeshSeq(tp *partitions.TimePartition, meshes []*mesh.Mesh, opts ...meshseq.Option) (*meshseq.MeshSeq, error) {
	tb, err := p.Tableau()
	if err != nil {
		return nil, err
	}
	if tb != nil {
		opts = append([]meshseq.Option{meshseq.WithTableau(tb)}, opts...)
	}
	return meshseq.New(tp, meshes, p.FunctionSpaces, p.InitialCondition, p.Solve, opts...)
}
