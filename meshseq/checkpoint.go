package meshseq

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/DGAdjoint/fem"
)

// Checkpoint is the state at the start of a segment
type Checkpoint struct {
	Segment int
	fields  fem.Fields
}

// NewCheckpoint snapshots fl as the state entering segment i
func NewCheckpoint(i int, fl fem.Fields) Checkpoint {
	return Checkpoint{Segment: i, fields: fl.Copy()}
}

// Fields returns an untracked copy of the stored state
func (c Checkpoint) Fields() fem.Fields { return c.fields.Copy() }

// Field returns an untracked copy of one stored field, nil if absent
func (c Checkpoint) Field(name string) *fem.Function {
	if f := c.fields[name]; f != nil {
		return f.Copy()
	}
	return nil
}

// Checkpoints solves forward without recording and returns the state entering
// every segment. With runFinal set the last segment is solved too and its final
// state is appended, giving Len()+1 checkpoints. acc sees every timestep solved.
func (m *MeshSeq) Checkpoints(ctx context.Context, runFinal bool, acc AccumulateFunc) ([]Checkpoint, error) {
	ctx, span := m.tracer.Start(ctx, "checkpointing")
	defer span.End()
	defer m.metrics.ObservePhase("checkpointing", time.Now())

	ic, err := m.InitialCondition()
	if err != nil {
		return nil, err
	}
	n := m.Len()
	checkpoints := []Checkpoint{NewCheckpoint(0, ic)}
	last := n - 1
	if runFinal {
		last = n
	}

	state := ic.Copy()
	for i := 0; i < last; i++ {
		sols, err := m.RunSegment(ctx, i, state, false, acc)
		if err != nil {
			return nil, err
		}
		m.metrics.SegmentDone("checkpoint")
		if i == n-1 {
			checkpoints = append(checkpoints, NewCheckpoint(n, sols))
			break
		}
		if state, err = m.ProjectFields(sols, i+1); err != nil {
			return nil, fmt.Errorf("checkpoint %d: %w", i+1, err)
		}
		checkpoints = append(checkpoints, NewCheckpoint(i+1, state))
	}
	return checkpoints, nil
}

// GetCheckpoints is Checkpoints without a timestep accumulator
func (m *MeshSeq) GetCheckpoints(ctx context.Context, runFinal bool) ([]Checkpoint, error) {
	return m.Checkpoints(ctx, runFinal, nil)
}
