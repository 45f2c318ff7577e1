package advection

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalState(t *testing.T, p *Problem, endTime, dt float64, K int) (fem.Fields, *meshseq.MeshSeq) {
	t.Helper()
	tp, err := partitions.NewTimeInterval(endTime, dt, []string{p.Field}, 1)
	require.NoError(t, err)
	msh, err := mesh.NewUniformMesh(0, 1, K, true)
	require.NoError(t, err)
	ms, err := p.MeshSeq(tp, []*mesh.Mesh{msh}, meshseq.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	cps, err := ms.GetCheckpoints(context.Background(), true)
	require.NoError(t, err)
	return cps[len(cps)-1].Fields(), ms
}

func TestNew(t *testing.T) {
	_, err := New("u", 1, 0, 1, "leapfrog")
	assert.Error(t, err)
	_, err = New("u", 1, 0, -1, ImplicitEuler)
	assert.Error(t, err)

	for scheme, stages := range map[Scheme]int{ImplicitEuler: 0, "": 0, Heun: 2, SSPRK3: 3} {
		p, err := New("u", 1, 0, 1, scheme)
		require.NoError(t, err)
		tb, err := p.Tableau()
		require.NoError(t, err)
		if stages == 0 {
			assert.Nil(t, tb)
			continue
		}
		assert.Equal(t, stages, tb.Stages())
	}
}

func TestPureDecay(t *testing.T) {
	p, err := New("u", 0, 2, 1, ImplicitEuler)
	require.NoError(t, err)
	sol, ms := finalState(t, p, 0.5, 0.1, 4)
	ic, err := ms.InitialCondition()
	require.NoError(t, err)

	factor := math.Pow(1+2*0.1, -5)
	for i, v := range ic["u"].Values() {
		assert.InDelta(t, factor*v, sol["u"].Vector().AtVec(i), 1e-12)
	}
}

func TestConservation(t *testing.T) {
	for _, scheme := range []Scheme{ImplicitEuler, Heun, SSPRK3} {
		t.Run(string(scheme), func(t *testing.T) {
			p, err := New("u", 1, 0, 2, scheme)
			require.NoError(t, err)
			p.Initial = func(x float64) float64 { return 1 + math.Sin(2*math.Pi*x) }
			sol, ms := finalState(t, p, 0.25, 1./200, 8)
			ic, err := ms.InitialCondition()
			require.NoError(t, err)

			mass0, err := fem.Assemble(nil, fem.Integral(ic["u"]))
			require.NoError(t, err)
			mass1, err := fem.Assemble(nil, fem.Integral(sol["u"]))
			require.NoError(t, err)
			assert.InDelta(t, 1., mass0, 1e-10)
			assert.InDelta(t, mass0, mass1, 1e-12)
		})
	}
}

func TestExplicitAccuracy(t *testing.T) {
	// one period around the domain returns the initial wave
	for _, scheme := range []Scheme{Heun, SSPRK3} {
		t.Run(string(scheme), func(t *testing.T) {
			p, err := New("u", 1, 0, 2, scheme)
			require.NoError(t, err)
			sol, ms := finalState(t, p, 1, 1./400, 16)
			ic, err := ms.InitialCondition()
			require.NoError(t, err)

			diff := sol["u"].Copy()
			require.NoError(t, diff.AddScaled(-1, ic["u"].Vector()))
			assert.Less(t, diff.Norm(), 1e-2)
			assert.InDelta(t, ic["u"].Norm(), sol["u"].Norm(), 1e-2)
		})
	}
}

func TestQoIs(t *testing.T) {
	p, err := New("u", 1, 0, 1, ImplicitEuler)
	require.NoError(t, err)
	msh, err := mesh.NewUniformMesh(0, 1, 8, true)
	require.NoError(t, err)
	spaces, err := p.FunctionSpaces(msh)
	require.NoError(t, err)
	ic, err := p.InitialCondition(spaces)
	require.NoError(t, err)

	seg := partitions.Segment{Timestep: 0.25}
	end, ok := p.EndTimeQoI(seg).(func(fem.Fields) fem.Form)
	require.True(t, ok)
	// ∫ sin² 2πx dx over [0,1], up to interpolation error
	assert.InDelta(t, 0.5, end(ic).Value, 5e-2)

	integrated, ok := p.TimeIntegratedQoI(seg).(func(fem.Fields, float64) fem.Form)
	require.True(t, ok)
	assert.InDelta(t, 0.25*end(ic).Value, integrated(ic, 0.5).Value, 1e-14)
}

func TestSolveRecordsPerStep(t *testing.T) {
	for scheme, perStep := range map[Scheme]int{ImplicitEuler: 1, Heun: 2, SSPRK3: 3} {
		p, err := New("u", 1, 0.1, 1, scheme)
		require.NoError(t, err)
		tp, err := partitions.NewTimeInterval(0.1, 0.025, []string{"u"}, 1)
		require.NoError(t, err)
		msh, err := mesh.NewUniformMesh(0, 1, 4, true)
		require.NoError(t, err)
		ms, err := p.MeshSeq(tp, []*mesh.Mesh{msh}, meshseq.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)
		ic, err := ms.InitialCondition()
		require.NoError(t, err)

		steps := 0
		_, err = ms.RunSegment(context.Background(), 0, ic.Copy(), true,
			func(partitions.Segment, fem.Fields, float64) error { steps++; return nil })
		require.NoError(t, err)
		records, err := ms.SolveRecords(context.Background(), "u", 0)
		require.NoError(t, err)
		assert.Len(t, records, 4*perStep, "scheme %s", scheme)
		assert.Equal(t, 4, steps)
		for _, r := range records {
			assert.Equal(t, 0, r.LaggedIndex())
		}
		ms.Tape().Clear()
	}
}
