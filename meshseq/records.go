package meshseq

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/DGAdjoint/tape"
)

// SolveRecords returns the recorded solves of field on segment i, checking
// they share one element and that their count is a whole multiple of the
// segment's timestep count
func (m *MeshSeq) SolveRecords(ctx context.Context, field string, i int) ([]*tape.SolveBlock, error) {
	if len(m.tape.Blocks()) == 0 {
		return nil, fmt.Errorf("%w: tape is empty on segment %d", ErrEmptyTrace, i)
	}
	records := tape.SolveBlocks(m.tape, field)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: field %q on segment %d, does the solution depend on the initial condition?",
			ErrEmptyTrace, field, i)
	}
	m.logger.DebugContext(ctx, "solve records", "field", field, "segment", i, "count", len(records))

	element := m.spaces[field][i].Element()
	for j, r := range records {
		if r.Space() == nil || r.Space().Element() != element {
			got := "<nil>"
			if r.Space() != nil {
				got = r.Space().Element()
			}
			return nil, fmt.Errorf("%w: solve %d of field %q on segment %d uses %s, expected %s",
				ErrDiscretizationMismatch, j, field, i, got, element)
		}
	}

	steps := m.TimePartition.NumTimesteps[i]
	ratio := float64(len(records)) / float64(steps)
	if math.Abs(ratio-math.Round(ratio)) > 1e-8 {
		return nil, fmt.Errorf("%w: %d timesteps on segment %d do not divide %d solves of field %q",
			ErrContractViolation, steps, i, len(records), field)
	}
	return records, nil
}

// LaggedDependencyIndex returns the dependency slot of the first record
// tagged as the field's previous-step value, or -1. The result is cached per field.
func (m *MeshSeq) LaggedDependencyIndex(ctx context.Context, field string, i int, records []*tape.SolveBlock) int {
	if idx, ok := m.laggedIdx[field]; ok {
		return idx
	}
	idx := -1
	if len(records) > 0 {
		tagged := records[0].LaggedIndices()
		switch {
		case len(tagged) == 0:
			m.Warn(ctx, WarnMissingLagged, "solve has no dependency tagged as the previous timestep",
				"field", field, "segment", i)
		case len(tagged) > 1:
			m.Warn(ctx, WarnAmbiguousLagged, "solve has several dependencies tagged as the previous timestep, using the first",
				"field", field, "segment", i, "indices", tagged)
			idx = tagged[0]
		default:
			idx = tagged[0]
		}
	}
	m.laggedIdx[field] = idx
	return idx
}
