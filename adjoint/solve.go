package adjoint

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/solution"
	"github.com/notargets/DGAdjoint/tape"
	"github.com/notargets/DGAdjoint/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SolveOptions selects the optional outputs and checks of SolveAdjoint
type SolveOptions struct {
	// AdjointActions also archives the adjoint action on the lagged dependency
	AdjointActions bool
	// CrossCheck solves the final segment while checkpointing and requires
	// the QoI from that run to match the one accumulated in reverse
	CrossCheck bool
}

// SolveAdjoint solves the forward problem to get checkpoints, then for every
// segment in reverse replays it with recording on, seeds the tape with the QoI
// or the projected seed of the following segment, evaluates it backward and
// extracts the exported forward and adjoint snapshots.
func (m *AdjointMeshSeq) SolveAdjoint(ctx context.Context, opts SolveOptions) (archive *solution.Archive, err error) {
	ctx, span := m.Tracer().Start(ctx, "solve_adjoint", trace.WithAttributes(
		attribute.String("run_id", m.runID),
		attribute.Int("segments", m.Len()),
		attribute.String("qoi_type", string(m.QoIType())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	logger := m.logger()

	tp := m.Tape()
	if err = tp.Acquire(); err != nil {
		return nil, err
	}
	defer tp.Release()

	checkpoints, err := m.GetCheckpoints(ctx, opts.CrossCheck)
	if err != nil {
		return nil, err
	}
	if opts.CrossCheck {
		m.warnZero(ctx, m.j, "QoI is zero after checkpointing, is it implemented as intended?")
	}
	jCheckpoint := m.j
	m.j = 0

	labels := []solution.Label{solution.Forward, solution.ForwardOld, solution.Adjoint}
	if !m.steady {
		labels = append(labels, solution.AdjointNext)
	}
	if opts.AdjointActions {
		labels = append(labels, solution.AdjointAction)
	}
	if archive, err = m.NewArchive(labels...); err != nil {
		return nil, err
	}
	extractor := &meshseq.SolutionExtractor{
		Archive:   archive,
		Tableau:   m.Tableau(),
		Projector: m.Projector(),
		Spaces:    m.FunctionSpaces(),
		Steady:    m.steady,
		Warn:      m.Warn,
	}

	tp.Clear()
	var seeds fem.Fields
	for i := m.Len() - 1; i >= 0; i-- {
		logger.DebugContext(ctx, "adjoint segment", "segment", i)
		if seeds, err = m.reverseSegment(ctx, i, checkpoints[i], seeds, extractor); err != nil {
			tp.Clear()
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}
	m.seeds = seeds

	if opts.CrossCheck && !utils.IsClose(jCheckpoint, m.j) {
		return nil, fmt.Errorf("%w: checkpointing gave %.12g, adjoint run gave %.12g",
			ErrConsistencyCheck, jCheckpoint, m.j)
	}
	logger.InfoContext(ctx, "adjoint solved", "J", m.j, "segments", m.Len())
	return archive, nil
}

// reverseSegment runs the replay, seed, backward, extract and propagate steps
// of segment i and returns the seeds for segment i-1
func (m *AdjointMeshSeq) reverseSegment(ctx context.Context, i int, cp meshseq.Checkpoint,
	seeds fem.Fields, extractor *meshseq.SolutionExtractor) (fem.Fields, error) {
	var (
		tp     = m.Tape()
		spaces = m.SegmentSpaces(i)
		attrs  = trace.WithAttributes(attribute.Int("segment", i))
	)

	// replay from a fresh copy of the checkpoint
	rctx, span := m.Tracer().Start(ctx, "replay", attrs)
	start := time.Now()
	init := cp.Fields()
	controls := make([]*tape.Control, len(m.Fields))
	for k, f := range m.Fields {
		controls[k] = tape.NewControl(f, init[f].Variable())
	}
	sols, err := m.RunSegment(rctx, i, init, true, m.accumulator())
	if err != nil {
		span.End()
		return nil, err
	}

	// seed
	if i == m.Len()-1 {
		if m.kind == EndTime {
			tp.BeginRecording()
			m.j, err = m.evaluateEndTime(i, sols)
			tp.StopRecording()
			if err != nil {
				span.End()
				return nil, err
			}
			m.warnZero(rctx, m.j, "QoI is zero, is it implemented as intended?")
		}
	} else {
		for _, f := range m.Fields {
			adj, err := m.Projector().ProjectAdjoint(seeds[f], spaces[f])
			if err != nil {
				span.End()
				return nil, fmt.Errorf("seeding %q: %w", f, err)
			}
			sols[f].Variable().SetAdjoint(adj.Vector())
		}
	}
	span.End()
	m.Metrics().SegmentDone("replay")
	m.Metrics().ObservePhase("replay", start)

	// backward over this segment's controls only
	_, span = m.Tracer().Start(ctx, "backward", attrs)
	start = time.Now()
	tp.Mark(controls)
	err = tp.EvaluateBackward()
	span.End()
	m.Metrics().ObservePhase("backward", start)
	if err != nil {
		return nil, fmt.Errorf("backward evaluation: %w", err)
	}

	// extract
	ectx, span := m.Tracer().Start(ctx, "extract", attrs)
	start = time.Now()
	seg := m.TimePartition.Segment(i)
	for _, f := range m.Fields {
		records, err := m.SolveRecords(ectx, f, i)
		if err != nil {
			span.End()
			return nil, err
		}
		lagged := m.LaggedDependencyIndex(ectx, f, i, records)
		if err = extractor.Extract(ectx, f, seg, records, lagged); err != nil {
			span.End()
			return nil, err
		}
		m.Metrics().RecordsExtracted(f, len(records))

		sols := extractor.Archive.Field(f)
		if adj := sols.At(solution.Adjoint, i, 0); adj != nil {
			m.warnZero(ectx, adj.Norm(), "adjoint solution is zero", "field", f, "segment", i)
		}
		if act := sols.At(solution.AdjointAction, i, 0); act != nil {
			m.warnZero(ectx, utils.Norm(act.Vector()), "adjoint action is zero", "field", f, "segment", i)
		}
	}
	span.End()
	m.Metrics().ObservePhase("extract", start)

	// propagate
	next := make(fem.Fields, len(m.Fields))
	for k, f := range m.Fields {
		seed, err := fem.NewFunctionFrom(spaces[f], f, tp.Sensitivity(controls[k]))
		if err != nil {
			return nil, err
		}
		if m.warn && seed.IsZero() {
			msg := "adjoint seed is zero, does the QoI depend on this field?"
			if m.steady {
				msg = "adjoint seed is zero, as expected for a steady problem"
			}
			m.Warn(ctx, meshseq.WarnZeroSignal, msg, "field", f, "segment", i)
		}
		next[f] = seed
	}
	tp.Clear()
	return next, nil
}
