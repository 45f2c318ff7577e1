// Package meshseq runs a time-dependent problem over a sequence of segments,
// each with its own mesh, and reconstructs exported snapshots from the
// recorded solves of every segment.
package meshseq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/DGAdjoint/observability"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/notargets/DGAdjoint/projection"
	"github.com/notargets/DGAdjoint/tape"
	"go.opentelemetry.io/otel/trace"
)

// FunctionSpaceFunc builds the function space of every field on one mesh
type FunctionSpaceFunc func(msh *mesh.Mesh) (map[string]*fem.FunctionSpace, error)

// InitialConditionFunc builds the initial state on the spaces of the first segment
type InitialConditionFunc func(spaces map[string]*fem.FunctionSpace) (fem.Fields, error)

// SolverFunc advances ic across one segment and returns the final state of
// every field. Solves that should be differentiated go through run.Tape.
type SolverFunc func(ctx context.Context, run *SegmentRun, ic fem.Fields) (fem.Fields, error)

// Option configures a MeshSeq
type Option func(*MeshSeq)

// WithLogger sets the logger for warnings and phase logs, slog.Default by
// default
func WithLogger(logger *slog.Logger) Option {
	return func(m *MeshSeq) { m.logger = logger }
}

// WithTape replaces the WorkingTape the segments record on
func WithTape(tp tape.Tape) Option {
	return func(m *MeshSeq) { m.tape = tp }
}

// WithMetrics reports segment, record and warning counts to metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *MeshSeq) { m.metrics = metrics }
}

// WithTracerProvider sets where phase spans are exported
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *MeshSeq) { m.tracer = observability.Tracer(tp) }
}

// WithTableau declares the solver uses an explicit Runge-Kutta scheme, one
// recorded solve per stage
func WithTableau(tb *fem.Tableau) Option {
	return func(m *MeshSeq) { m.tableau = tb }
}

// WithProjector shares a projector, and its cached transfer operators, across
// mesh sequences
func WithProjector(p *projection.Projector) Option {
	return func(m *MeshSeq) { m.projector = p }
}

// MeshSeq binds a TimePartition to one mesh per segment and to the
// collaborators that discretize and solve the problem on them
type MeshSeq struct {
	TimePartition *partitions.TimePartition
	Fields        []string

	meshes           []*mesh.Mesh
	spaces           map[string][]*fem.FunctionSpace
	getSpaces        FunctionSpaceFunc
	getInitial       InitialConditionFunc
	solver           SolverFunc
	initialCondition fem.Fields

	tape      tape.Tape
	tableau   *fem.Tableau
	projector *projection.Projector
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer

	laggedIdx map[string]int
}

// New builds a MeshSeq. A single mesh is used for every segment.
func New(tp *partitions.TimePartition, meshes []*mesh.Mesh, getSpaces FunctionSpaceFunc,
	getInitial InitialConditionFunc, solver SolverFunc, opts ...Option) (*MeshSeq, error) {
	if tp == nil {
		return nil, fmt.Errorf("%w: nil time partition", ErrContractViolation)
	}
	if getSpaces == nil || getInitial == nil || solver == nil {
		return nil, fmt.Errorf("%w: function spaces, initial condition and solver are all required",
			ErrContractViolation)
	}
	switch len(meshes) {
	case tp.NumSegments:
	case 1:
		single := meshes[0]
		meshes = make([]*mesh.Mesh, tp.NumSegments)
		for i := range meshes {
			meshes[i] = single
		}
	default:
		return nil, fmt.Errorf("%w: %d meshes for %d segments", ErrContractViolation, len(meshes), tp.NumSegments)
	}
	m := &MeshSeq{
		TimePartition: tp,
		Fields:        tp.Fields,
		meshes:        meshes,
		getSpaces:     getSpaces,
		getInitial:    getInitial,
		solver:        solver,
		laggedIdx:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tape == nil {
		m.tape = tape.NewWorkingTape()
	}
	if m.projector == nil {
		m.projector = projection.NewProjector()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.tracer == nil {
		m.tracer = observability.Tracer(nil)
	}
	if m.tableau != nil {
		if err := m.tableau.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContractViolation, err)
		}
	}
	if err := m.buildFunctionSpaces(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MeshSeq) buildFunctionSpaces() error {
	m.spaces = make(map[string][]*fem.FunctionSpace, len(m.Fields))
	for i, msh := range m.meshes {
		if msh == nil {
			return fmt.Errorf("%w: nil mesh for segment %d", ErrContractViolation, i)
		}
		fss, err := m.getSpaces(msh)
		if err != nil {
			return fmt.Errorf("function spaces of segment %d: %w", i, err)
		}
		got := make(fem.Fields, len(fss))
		for f, fs := range fss {
			if fs != nil {
				got[f] = fem.NewFunction(fs, f)
			}
		}
		if err := CheckFields(fmt.Sprintf("function spaces of segment %d", i), m.Fields, got); err != nil {
			return err
		}
		for _, f := range m.Fields {
			fs := fss[f]
			if i > 0 && fs.Element() != m.spaces[f][0].Element() {
				return fmt.Errorf("%w: field %q uses %s on segment 0 but %s on segment %d",
					ErrDiscretizationMismatch, f, m.spaces[f][0].Element(), fs.Element(), i)
			}
			m.spaces[f] = append(m.spaces[f], fs)
		}
	}
	return nil
}

// Len is the number of segments
func (m *MeshSeq) Len() int { return m.TimePartition.NumSegments }

// Mesh returns the mesh of segment i
func (m *MeshSeq) Mesh(i int) *mesh.Mesh { return m.meshes[i] }

// FunctionSpaces returns field -> per segment function spaces
func (m *MeshSeq) FunctionSpaces() map[string][]*fem.FunctionSpace { return m.spaces }

// SegmentSpaces returns the function space of every field on segment i
func (m *MeshSeq) SegmentSpaces(i int) map[string]*fem.FunctionSpace {
	out := make(map[string]*fem.FunctionSpace, len(m.spaces))
	for f, fss := range m.spaces {
		out[f] = fss[i]
	}
	return out
}

// InitialCondition builds and validates the initial state once
func (m *MeshSeq) InitialCondition() (fem.Fields, error) {
	if m.initialCondition != nil {
		return m.initialCondition, nil
	}
	ic, err := m.getInitial(m.SegmentSpaces(0))
	if err != nil {
		return nil, fmt.Errorf("initial condition: %w", err)
	}
	if err = CheckFields("initial condition", m.Fields, ic); err != nil {
		return nil, err
	}
	if err = m.checkSpaces("initial condition", 0, ic); err != nil {
		return nil, err
	}
	m.initialCondition = ic
	return ic, nil
}

func (m *MeshSeq) checkSpaces(source string, i int, fl fem.Fields) error {
	for _, f := range m.Fields {
		if !fl[f].Space().Same(m.spaces[f][i]) {
			return fmt.Errorf("%w: %s: field %q lives on %s, segment %d uses %s",
				ErrContractViolation, source, f, fl[f].Space(), i, m.spaces[f][i])
		}
	}
	return nil
}

func (m *MeshSeq) Tape() tape.Tape                  { return m.tape }
func (m *MeshSeq) Projector() *projection.Projector { return m.projector }
func (m *MeshSeq) Logger() *slog.Logger             { return m.logger }
func (m *MeshSeq) Metrics() *observability.Metrics  { return m.metrics }
func (m *MeshSeq) Tracer() trace.Tracer             { return m.tracer }
func (m *MeshSeq) Tableau() *fem.Tableau            { return m.tableau }

// SolvesPerTimestep is the number of recorded solves per field per timestep
func (m *MeshSeq) SolvesPerTimestep() int {
	if m.tableau == nil {
		return 1
	}
	return m.tableau.Stages()
}

// Warn logs a non fatal warning and counts it
func (m *MeshSeq) Warn(ctx context.Context, kind, msg string, attrs ...any) {
	m.logger.WarnContext(ctx, msg, append([]any{"kind", kind}, attrs...)...)
	m.metrics.Warning(kind)
}

// ProjectFields projects every field onto the spaces of segment i
func (m *MeshSeq) ProjectFields(fl fem.Fields, i int) (fem.Fields, error) {
	out := make(fem.Fields, len(fl))
	for _, f := range m.Fields {
		p, err := m.projector.Project(fl[f], m.spaces[f][i])
		if err != nil {
			return nil, fmt.Errorf("projecting %q onto segment %d: %w", f, i, err)
		}
		out[f] = p
	}
	return out, nil
}
