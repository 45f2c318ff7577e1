// Package adjoint solves the adjoint of a MeshSeq problem segment by segment
// in reverse, recomputing each segment's forward solve from a checkpoint.
package adjoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/notargets/DGAdjoint/utils"
)

// Option configures an AdjointMeshSeq
type Option func(*AdjointMeshSeq)

// WithSteady marks the problem steady, suppressing adjoint_next snapshots
func WithSteady(steady bool) Option {
	return func(m *AdjointMeshSeq) { m.steady = steady }
}

// WithWarnings toggles the zero signal checks
func WithWarnings(enabled bool) Option {
	return func(m *AdjointMeshSeq) { m.warn = enabled }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(m *AdjointMeshSeq) { m.runID = id }
}

// AdjointMeshSeq adds a quantity of interest and the reverse sweep to a MeshSeq
type AdjointMeshSeq struct {
	*meshseq.MeshSeq

	getQoI QoIFunc
	qois   map[int]qoi
	kind   QoIType
	steady bool
	warn   bool
	runID  string

	j     float64
	seeds fem.Fields
}

// New wraps ms with the QoI returned by getQoI. The QoI of the first segment
// is inspected immediately to determine its type.
func New(ms *meshseq.MeshSeq, getQoI QoIFunc, opts ...Option) (*AdjointMeshSeq, error) {
	if ms == nil || getQoI == nil {
		return nil, fmt.Errorf("%w: mesh sequence and QoI are required", meshseq.ErrContractViolation)
	}
	m := &AdjointMeshSeq{
		MeshSeq: ms,
		getQoI:  getQoI,
		qois:    make(map[int]qoi),
		steady:  ms.TimePartition.Steady,
		warn:    true,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	q, err := m.qoiOf(0)
	if err != nil {
		return nil, err
	}
	m.kind = q.kind
	return m, nil
}

// qoiOf returns the discovered QoI of segment i
func (m *AdjointMeshSeq) qoiOf(i int) (qoi, error) {
	if q, ok := m.qois[i]; ok {
		return q, nil
	}
	q, err := discoverQoI(m.getQoI(m.TimePartition.Segment(i)))
	if err != nil {
		return qoi{}, fmt.Errorf("QoI of segment %d: %w", i, err)
	}
	if m.kind != "" && q.kind != m.kind {
		return qoi{}, fmt.Errorf("%w: QoI of segment %d is %s, segment 0 is %s",
			meshseq.ErrContractViolation, i, q.kind, m.kind)
	}
	m.qois[i] = q
	return q, nil
}

// QoIType reports steady, end_time or time_integrated
func (m *AdjointMeshSeq) QoIType() QoIType {
	if m.steady {
		return Steady
	}
	return m.kind
}

// J is the QoI value of the last checkpointing or adjoint run
func (m *AdjointMeshSeq) J() float64 { return m.j }

// RunID identifies this driver in logs and traces
func (m *AdjointMeshSeq) RunID() string { return m.runID }

// Steady reports whether the problem is treated as steady
func (m *AdjointMeshSeq) Steady() bool { return m.steady }

// InitialSensitivity is dJ/du0 per field after SolveAdjoint, nil before
func (m *AdjointMeshSeq) InitialSensitivity() fem.Fields { return m.seeds }

func (m *AdjointMeshSeq) logger() *slog.Logger {
	return m.Logger().With("run_id", m.runID)
}

// accumulator sums time integrated QoI contributions into J, recording them
// when the tape is recording
func (m *AdjointMeshSeq) accumulator() meshseq.AccumulateFunc {
	if m.kind != TimeIntegrated {
		return nil
	}
	return func(seg partitions.Segment, sol fem.Fields, t float64) error {
		q, err := m.qoiOf(seg.Index)
		if err != nil {
			return err
		}
		v, err := fem.Assemble(m.Tape(), q.timeIntegrated(sol, t))
		if err != nil {
			return err
		}
		m.j += v
		return nil
	}
}

// evaluateEndTime assembles the end time QoI on the final state of segment i
func (m *AdjointMeshSeq) evaluateEndTime(i int, sols fem.Fields) (float64, error) {
	q, err := m.qoiOf(i)
	if err != nil {
		return 0, err
	}
	return fem.Assemble(m.Tape(), q.endTime(sols))
}

// GetCheckpoints solves forward without recording, accumulating or
// evaluating the QoI into J along the way. The end time QoI is only
// available when runFinal is set.
func (m *AdjointMeshSeq) GetCheckpoints(ctx context.Context, runFinal bool) ([]meshseq.Checkpoint, error) {
	m.j = 0
	checkpoints, err := m.Checkpoints(ctx, runFinal, m.accumulator())
	if err != nil {
		return nil, err
	}
	if runFinal && m.kind == EndTime {
		n := m.Len()
		if m.j, err = m.evaluateEndTime(n-1, checkpoints[n].Fields()); err != nil {
			return nil, err
		}
	}
	return checkpoints, nil
}

func (m *AdjointMeshSeq) warnZero(ctx context.Context, v float64, msg string, attrs ...any) {
	if m.warn && utils.IsClose(v, 0) {
		m.Warn(ctx, meshseq.WarnZeroSignal, msg, attrs...)
	}
}
