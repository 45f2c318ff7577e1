package meshseq

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/DGAdjoint/solution"
)

// SolveForward solves every segment in turn, recording the solves of each
// segment to extract its forward and forward_old exports. Recording more
// exports than declared is an error here.
func (m *MeshSeq) SolveForward(ctx context.Context) (*solution.Archive, error) {
	ctx, span := m.tracer.Start(ctx, "solve_forward")
	defer span.End()

	if err := m.tape.Acquire(); err != nil {
		return nil, err
	}
	defer m.tape.Release()

	archive, err := m.NewArchive(solution.Forward, solution.ForwardOld)
	if err != nil {
		return nil, err
	}
	extractor := &SolutionExtractor{
		Archive:   archive,
		Tableau:   m.tableau,
		Projector: m.projector,
		Spaces:    m.spaces,
		Strict:    true,
		Warn:      m.Warn,
	}

	state, err := m.InitialCondition()
	if err != nil {
		return nil, err
	}
	state = state.Copy()
	m.tape.Clear()
	for i := 0; i < m.Len(); i++ {
		start := time.Now()
		sols, err := m.RunSegment(ctx, i, state, true, nil)
		if err != nil {
			return nil, err
		}
		seg := m.TimePartition.Segment(i)
		for _, field := range m.Fields {
			records, err := m.SolveRecords(ctx, field, i)
			if err != nil {
				return nil, err
			}
			lagged := m.LaggedDependencyIndex(ctx, field, i, records)
			if err = extractor.Extract(ctx, field, seg, records, lagged); err != nil {
				return nil, err
			}
			m.metrics.RecordsExtracted(field, len(records))
		}
		m.tape.Clear()
		m.metrics.SegmentDone("forward")
		m.metrics.ObservePhase("forward", start)

		if i+1 < m.Len() {
			if state, err = m.ProjectFields(sols, i+1); err != nil {
				return nil, fmt.Errorf("segment %d: %w", i+1, err)
			}
		}
	}
	return archive, nil
}

// NewArchive allocates an archive with one snapshot per export after the
// initial one on every segment
func (m *MeshSeq) NewArchive(labels ...solution.Label) (*solution.Archive, error) {
	exports := make([]int, m.Len())
	for i := range exports {
		exports[i] = m.TimePartition.ExportsPerSegment[i] - 1
	}
	return solution.NewArchive(m.Fields, m.spaces, exports, labels...)
}
