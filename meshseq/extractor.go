package meshseq

import (
	"context"
	"errors"
	"fmt"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/notargets/DGAdjoint/projection"
	"github.com/notargets/DGAdjoint/solution"
	"github.com/notargets/DGAdjoint/tape"
	"gonum.org/v1/gonum/mat"
)

// ErrStrideOverrun is returned by a strict extractor when a segment recorded
// more exports than its partition declares
var ErrStrideOverrun = errors.New("more solves recorded than exports declared")

// SolutionExtractor fills the exports of one segment of an Archive from the
// recorded solves of a field. Only labels enabled in the archive are written.
type SolutionExtractor struct {
	Archive   *solution.Archive
	Tableau   *fem.Tableau // nil for single stage schemes
	Projector *projection.Projector
	Spaces    map[string][]*fem.FunctionSpace

	// Steady suppresses the adjoint_next label
	Steady bool
	// Strict turns a stride overrun into an error
	Strict bool

	Warn func(ctx context.Context, kind, msg string, attrs ...any)
}

// SolvesPerTimestep is the number of recorded solves per timestep
func (x *SolutionExtractor) SolvesPerTimestep() int {
	if x.Tableau == nil {
		return 1
	}
	return x.Tableau.Stages()
}

func (x *SolutionExtractor) warn(ctx context.Context, kind, msg string, attrs ...any) {
	if x.Warn != nil {
		x.Warn(ctx, kind, msg, attrs...)
	}
}

// Extract reads the exports of field on seg from records. lagged is the
// dependency slot of the previous-step value, -1 when there is none.
func (x *SolutionExtractor) Extract(ctx context.Context, field string, seg partitions.Segment,
	records []*tape.SolveBlock, lagged int) error {
	sols := x.Archive.Field(field)
	if sols == nil {
		return fmt.Errorf("%w: field %q is not archived", ErrContractViolation, field)
	}
	var (
		i       = seg.Index
		q       = x.SolvesPerTimestep()
		stride  = seg.TimestepsPerExport * q
		num     = len(records)
		exports = x.Archive.NumExports(i)
		attrs   = []any{"field", field, "segment", i}
	)
	if num == 0 {
		return fmt.Errorf("%w: field %q on segment %d", ErrEmptyTrace, field, i)
	}

	if governing := (num + stride - 1) / stride; governing > exports {
		if x.Strict {
			return fmt.Errorf("%w: field %q on segment %d has %d exports, expected %d",
				ErrStrideOverrun, field, i, governing, exports)
		}
		x.warn(ctx, WarnStrideOverrun, "more solves recorded than expected",
			append(attrs, "exports", governing, "expected", exports)...)
	}

	if x.Steady || (x.Archive.NumSegments() == 1 && num == 1) {
		sols.Disable(solution.AdjointNext)
	}
	if lagged < 0 {
		sols.Disable(solution.ForwardOld)
	}
	if q > 1 && lagged < 0 {
		return fmt.Errorf("%w: field %q needs a lagged dependency for multi-stage extraction",
			ErrContractViolation, field)
	}

	missingAdjoint := 0
	for j := 0; j < exports && j*stride < num; j++ {
		block := records[j*stride]
		if lagged >= 0 {
			dep := block.Dependencies()[lagged]
			if sols.Has(solution.ForwardOld) {
				if err := sols.At(solution.ForwardOld, i, j).Assign(dep.Value); err != nil {
					return x.wrap(err, field, solution.ForwardOld, i, j)
				}
			}
			if sols.Has(solution.AdjointAction) {
				if err := sols.At(solution.AdjointAction, i, j).Assign(dep.AdjointValue()); err != nil {
					return x.wrap(err, field, solution.AdjointAction, i, j)
				}
			}
		}

		if sols.Has(solution.AdjointNext) {
			if err := x.extractAdjointNext(field, seg, records, j*stride+q, sols.At(solution.AdjointNext, i, j)); err != nil {
				return x.wrap(err, field, solution.AdjointNext, i, j)
			}
		}

		group := records[j*stride : min(j*stride+q, num)]
		if len(group) < q {
			return fmt.Errorf("%w: field %q on segment %d: export %d has %d of %d stage solves",
				ErrContractViolation, field, i, j, len(group), q)
		}
		if sols.Has(solution.Forward) {
			if err := x.extractForward(group, sols, i, j); err != nil {
				return x.wrap(err, field, solution.Forward, i, j)
			}
		}
		if sols.Has(solution.Adjoint) {
			missing, err := x.extractAdjoint(group, sols.At(solution.Adjoint, i, j))
			if err != nil {
				return x.wrap(err, field, solution.Adjoint, i, j)
			}
			missingAdjoint += missing
		}
	}
	if missingAdjoint > 0 {
		x.warn(ctx, WarnMissingAdjoint, "solves without an adjoint solution, substituting zero",
			append(attrs, "count", missingAdjoint)...)
	}
	return nil
}

func (x *SolutionExtractor) wrap(err error, field string, l solution.Label, i, j int) error {
	return fmt.Errorf("extracting %s of %q at (%d, %d): %w", l, field, i, j, err)
}

func (x *SolutionExtractor) extractForward(group []*tape.SolveBlock, sols *solution.FieldSolutions, i, j int) error {
	dst := sols.At(solution.Forward, i, j)
	if len(group) == 1 {
		return dst.Assign(group[0].Output().Value)
	}
	// u_{n+1} = u_n + Σ_s b_s k_s
	lagged := group[0].LaggedIndex()
	if err := dst.Assign(group[0].Dependencies()[lagged].Value); err != nil {
		return err
	}
	for s, b := range group {
		if err := dst.AddScaled(x.Tableau.B[s], b.Output().Value); err != nil {
			return err
		}
	}
	return nil
}

// extractAdjoint writes the weighted adjoint solutions of the group into dst
// and returns how many were missing
func (x *SolutionExtractor) extractAdjoint(group []*tape.SolveBlock, dst *fem.Function) (int, error) {
	if len(group) == 1 {
		if !group[0].HasAdjointSolution() {
			return 1, dst.Assign(zeros(dst.Len()))
		}
		return 0, dst.Assign(group[0].AdjSol)
	}
	missing := 0
	if err := dst.Assign(zeros(dst.Len())); err != nil {
		return 0, err
	}
	for s, b := range group {
		if !b.HasAdjointSolution() {
			missing++
			continue
		}
		if err := dst.AddScaled(x.Tableau.B[s], b.AdjSol); err != nil {
			return 0, err
		}
	}
	return missing, nil
}

// extractAdjointNext reads the adjoint solution of the solves starting at
// next, or stitches it from the following segment when next is one past the end
func (x *SolutionExtractor) extractAdjointNext(field string, seg partitions.Segment,
	records []*tape.SolveBlock, next int, dst *fem.Function) error {
	q := x.SolvesPerTimestep()
	switch {
	case next < len(records):
		if next+q > len(records) {
			return fmt.Errorf("%w: solves %d..%d requested but %d recorded",
				ErrContractViolation, next, next+q-1, len(records))
		}
		if q == 1 {
			if records[next].HasAdjointSolution() {
				return dst.Assign(records[next].AdjSol)
			}
			return nil
		}
		if err := dst.Assign(zeros(dst.Len())); err != nil {
			return err
		}
		for s, b := range records[next : next+q] {
			if b.HasAdjointSolution() {
				if err := dst.AddScaled(x.Tableau.B[s], b.AdjSol); err != nil {
					return err
				}
			}
		}
		return nil
	case next == len(records):
		if seg.Index+1 >= x.Archive.NumSegments() {
			return nil
		}
		following := x.Archive.Field(field).At(solution.AdjointNext, seg.Index+1, 0)
		if following == nil {
			return nil
		}
		projected, err := x.Projector.ProjectAdjoint(following, x.Spaces[field][seg.Index])
		if err != nil {
			return err
		}
		return dst.Assign(projected.Vector())
	}
	return fmt.Errorf("%w: cannot extract solve %d of %d", ErrContractViolation, next, len(records))
}

func zeros(n int) *mat.VecDense { return mat.NewVecDense(n, nil) }
