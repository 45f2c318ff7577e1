package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type testSpace int

func (ts testSpace) Element() string { return "DG0" }
func (ts testSpace) Dim() int        { return int(ts) }

// scalar recurrence u_{n+1} = u_n / (1+k), J = u_N^2
func recordDecay(t *testing.T, tp Tape, u0 *Variable, k float64, steps int) (*Variable, *FunctionalBlock) {
	t.Helper()
	A := mat.NewDense(1, 1, []float64{1 + k})
	u := u0
	for i := 0; i < steps; i++ {
		next := NewVariable("u", testSpace(1), mat.NewVecDense(1, []float64{u.Value.AtVec(0) / (1 + k)}))
		sb, err := NewSolveBlock("u", testSpace(1), A, nil, []*Variable{u}, []mat.Matrix{nil}, next, 0)
		require.NoError(t, err)
		tp.Record(sb)
		u = next
	}
	uN := u.Value.AtVec(0)
	fb, err := NewFunctionalBlock(uN*uN, []*Variable{u}, []*mat.VecDense{mat.NewVecDense(1, []float64{2 * uN})})
	require.NoError(t, err)
	tp.Record(fb)
	return u, fb
}

func TestWorkingTapeDecay(t *testing.T) {
	tp := NewWorkingTape()
	u0 := NewVariable("u", testSpace(1), mat.NewVecDense(1, []float64{1}))
	ctrl := NewControl("u", u0)

	tp.BeginRecording()
	_, fb := recordDecay(t, tp, u0, 0.5, 4)
	tp.StopRecording()
	require.Len(t, tp.Blocks(), 5)
	require.Len(t, SolveBlocks(tp, "u"), 4)
	assert.Empty(t, SolveBlocks(tp, "v"))

	tp.Mark([]*Control{ctrl})
	require.NoError(t, tp.EvaluateBackward())

	r := 1 / 1.5
	uN := r * r * r * r
	assert.InDelta(t, uN*uN, fb.Value(), 1e-14)
	assert.InDelta(t, 2*uN*r*r*r*r, tp.Sensitivity(ctrl).AtVec(0), 1e-14)

	for _, sb := range SolveBlocks(tp, "u") {
		assert.True(t, sb.HasAdjointSolution())
		assert.Equal(t, 0, sb.LaggedIndex())
	}

	tp.Clear()
	assert.Empty(t, tp.Blocks())
}

func TestEvaluateBackwardWhileRecording(t *testing.T) {
	tp := NewWorkingTape()
	tp.BeginRecording()
	assert.ErrorIs(t, tp.EvaluateBackward(), ErrRecording)
}

func TestRecordIgnoredWhenNotRecording(t *testing.T) {
	tp := NewWorkingTape()
	u0 := NewVariable("u", testSpace(1), mat.NewVecDense(1, []float64{1}))
	fb, err := NewFunctionalBlock(1, []*Variable{u0}, []*mat.VecDense{mat.NewVecDense(1, []float64{2})})
	require.NoError(t, err)
	assert.False(t, tp.Record(fb))
	assert.Empty(t, tp.Blocks())
}

func TestMarkSkipsUnreachableBlocks(t *testing.T) {
	tp := NewWorkingTape()
	u0 := NewVariable("u", testSpace(1), mat.NewVecDense(1, []float64{1}))
	other := NewVariable("v", testSpace(1), mat.NewVecDense(1, []float64{3}))
	ctrl := NewControl("u", u0)

	tp.BeginRecording()
	recordDecay(t, tp, u0, 1, 1)
	// functional of an unrelated variable
	fb, err := NewFunctionalBlock(9, []*Variable{other}, []*mat.VecDense{mat.NewVecDense(1, []float64{6})})
	require.NoError(t, err)
	tp.Record(fb)
	tp.StopRecording()

	tp.Mark([]*Control{ctrl})
	require.NoError(t, tp.EvaluateBackward())
	assert.False(t, other.HasAdjoint())
	assert.InDelta(t, 0.5*2*0.5, tp.Sensitivity(ctrl).AtVec(0), 1e-14)
}

func TestCombinationBlock(t *testing.T) {
	tp := NewWorkingTape()
	a := NewVariable("a", testSpace(2), mat.NewVecDense(2, []float64{1, 2}))
	b := NewVariable("b", testSpace(2), mat.NewVecDense(2, []float64{3, 4}))
	out := NewVariable("c", testSpace(2), mat.NewVecDense(2, []float64{1 + 0.5*3, 2 + 0.5*4}))
	cb, err := NewCombinationBlock([]*Variable{a, b}, []float64{1, 0.5}, out)
	require.NoError(t, err)

	tp.BeginRecording()
	tp.Record(cb)
	tp.StopRecording()
	out.SetAdjoint(mat.NewVecDense(2, []float64{1, -1}))
	require.NoError(t, tp.EvaluateBackward())

	assert.Equal(t, []float64{1, -1}, a.AdjointValue().RawVector().Data)
	assert.Equal(t, []float64{0.5, -0.5}, b.AdjointValue().RawVector().Data)
}

func TestSolveBlockOperators(t *testing.T) {
	// A u = C d with A = diag(2, 4) and C = [[1, 1], [0, 1]]
	A := mat.NewDense(2, 2, []float64{2, 0, 0, 4})
	C := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	d := NewVariable("d", testSpace(2), mat.NewVecDense(2, []float64{1, 1}))
	u := NewVariable("u", testSpace(2), mat.NewVecDense(2, []float64{1, 0.25}))
	sb, err := NewSolveBlock("u", testSpace(2), A, nil, []*Variable{d}, []mat.Matrix{C}, u, -5)
	require.NoError(t, err)
	assert.Equal(t, -1, sb.LaggedIndex())

	u.SetAdjoint(mat.NewVecDense(2, []float64{2, 4}))
	require.NoError(t, sb.EvaluateAdjoint())
	// λ = A^{-T} ω = (1, 1), adj(d) = C^T λ = (1, 2)
	assert.Equal(t, []float64{1, 1}, sb.AdjSol.RawVector().Data)
	assert.Equal(t, []float64{1, 2}, d.AdjointValue().RawVector().Data)
}

func TestNewSolveBlockRejectsBadShapes(t *testing.T) {
	A := mat.NewDense(1, 1, []float64{1})
	d := NewVariable("d", testSpace(1), mat.NewVecDense(1, []float64{1}))
	_, err := NewSolveBlock("u", testSpace(1), A, nil, []*Variable{d}, nil, d, 0)
	assert.Error(t, err)
	_, err = NewSolveBlock("u", testSpace(1), A, nil, []*Variable{d}, []mat.Matrix{nil}, d, 1)
	assert.Error(t, err)
}

func TestSensitivityWithoutAdjointIsZero(t *testing.T) {
	tp := NewWorkingTape()
	v := NewVariable("u", testSpace(3), mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.Equal(t, []float64{0, 0, 0}, tp.Sensitivity(NewControl("u", v)).RawVector().Data)
}

func TestAcquireRelease(t *testing.T) {
	tp := NewWorkingTape()
	require.NoError(t, tp.Acquire())
	assert.ErrorIs(t, tp.Acquire(), ErrTapeBusy)
	tp.Release()
	assert.NoError(t, tp.Acquire())
}

func TestWithoutRecording(t *testing.T) {
	tp := NewWorkingTape()
	tp.BeginRecording()
	err := WithoutRecording(tp, func() error {
		assert.False(t, tp.Recording())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, tp.Recording())
}
