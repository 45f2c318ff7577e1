package meshseq

import (
	"context"
	"fmt"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/notargets/DGAdjoint/tape"
)

// AccumulateFunc receives the state after every timestep of seg, e.g. to
// sum a time integrated functional
type AccumulateFunc func(seg partitions.Segment, sol fem.Fields, t float64) error

// SegmentRun is everything a solver needs to advance one segment
type SegmentRun struct {
	partitions.Segment

	Spaces  map[string]*fem.FunctionSpace
	Tape    tape.Tape
	Tableau *fem.Tableau // nil for single stage schemes

	accumulate AccumulateFunc
}

// Recording reports whether solves are being recorded
func (r *SegmentRun) Recording() bool {
	return r.Tape != nil && r.Tape.Recording()
}

// AccumulateQoI hands the state at time t to the driver's accumulator, if
// any. Solvers call it once per timestep.
func (r *SegmentRun) AccumulateQoI(sol fem.Fields, t float64) error {
	if r.accumulate == nil {
		return nil
	}
	return r.accumulate(r.Segment, sol, t)
}

// RunSegment solves segment i from ic. With record set the solves are
// appended to the tape, which is left not recording on return.
func (m *MeshSeq) RunSegment(ctx context.Context, i int, ic fem.Fields, record bool, acc AccumulateFunc) (fem.Fields, error) {
	if i < 0 || i >= m.Len() {
		return nil, fmt.Errorf("segment %d out of range [0,%d)", i, m.Len())
	}
	source := fmt.Sprintf("initial state of segment %d", i)
	if err := CheckFields(source, m.Fields, ic); err != nil {
		return nil, err
	}
	if err := m.checkSpaces(source, i, ic); err != nil {
		return nil, err
	}

	run := &SegmentRun{
		Segment:    m.TimePartition.Segment(i),
		Spaces:     m.SegmentSpaces(i),
		Tape:       m.tape,
		Tableau:    m.tableau,
		accumulate: acc,
	}
	m.logger.DebugContext(ctx, "solving segment", "segment", i, "record", record,
		"t_start", run.TStart, "t_end", run.TEnd)
	if record {
		m.tape.BeginRecording()
	} else {
		m.tape.StopRecording()
	}
	sols, err := m.solver(ctx, run, ic)
	m.tape.StopRecording()
	if err != nil {
		return nil, fmt.Errorf("solver on segment %d: %w", i, err)
	}

	source = fmt.Sprintf("solver output of segment %d", i)
	if err = CheckFields(source, m.Fields, sols); err != nil {
		return nil, err
	}
	if err = m.checkSpaces(source, i, sols); err != nil {
		return nil, err
	}
	return sols, nil
}
