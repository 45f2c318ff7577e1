package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimePartition(t *testing.T) {
	tp, err := New(Config{
		EndTime:            1,
		NumSegments:        2,
		Timesteps:          []float64{0.125, 0.0625},
		Fields:             []string{"c"},
		TimestepsPerExport: []int{2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tp.Len())
	assert.Equal(t, [][2]float64{{0, 0.5}, {0.5, 1}}, tp.Subintervals)
	assert.Equal(t, []int{4, 8}, tp.NumTimesteps)
	assert.Equal(t, []int{2, 2}, tp.TimestepsPerExport)
	assert.Equal(t, []int{3, 5}, tp.ExportsPerSegment)
	assert.True(t, tp.HasField("c"))
	assert.False(t, tp.HasField("u"))

	seg := tp.Segment(1)
	assert.Equal(t, Segment{
		Index:              1,
		TStart:             0.5,
		TEnd:               1,
		Timestep:           0.0625,
		NumTimesteps:       8,
		TimestepsPerExport: 2,
		NumExports:         5,
	}, seg)
	assert.Len(t, tp.Segments(), 2)
	assert.Contains(t, tp.Debug(), "TimePartition")
	assert.Equal(t, "[0, 0.5], [0.5, 1]", tp.String())
}

func TestTimePartitionSubintervals(t *testing.T) {
	tp, err := New(Config{
		StartTime:    1,
		EndTime:      2,
		NumSegments:  3,
		Timesteps:    []float64{0.05},
		Fields:       []string{"u", "v"},
		Subintervals: [][2]float64{{1, 1.25}, {1.25, 1.5}, {1.5, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5, 10}, tp.NumTimesteps)
	assert.Equal(t, []int{6, 6, 11}, tp.ExportsPerSegment)
}

func TestTimePartitionValidation(t *testing.T) {
	base := func() Config {
		return Config{
			EndTime:     1,
			NumSegments: 2,
			Timesteps:   []float64{0.1},
			Fields:      []string{"c"},
		}
	}
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no fields", func(c *Config) { c.Fields = nil }},
		{"repeated field", func(c *Config) { c.Fields = []string{"c", "c"} }},
		{"no segments", func(c *Config) { c.NumSegments = 0 }},
		{"reversed interval", func(c *Config) { c.EndTime = -1 }},
		{"no timestep", func(c *Config) { c.Timesteps = nil }},
		{"negative timestep", func(c *Config) { c.Timesteps = []float64{-0.1} }},
		{"timestep count mismatch", func(c *Config) { c.Timesteps = []float64{0.1, 0.1, 0.1} }},
		{"non integer steps", func(c *Config) { c.Timesteps = []float64{0.3} }},
		{"stride does not divide", func(c *Config) { c.TimestepsPerExport = []int{3} }},
		{"zero stride", func(c *Config) { c.TimestepsPerExport = []int{0} }},
		{"gap", func(c *Config) { c.Subintervals = [][2]float64{{0, 0.4}, {0.5, 1}} }},
		{"short cover", func(c *Config) { c.Subintervals = [][2]float64{{0, 0.5}, {0.5, 0.9}} }},
		{"subinterval count", func(c *Config) { c.Subintervals = [][2]float64{{0, 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestTimestepTolerance(t *testing.T) {
	// 0.5/(1/32) is not exactly 16 in floating point
	tp, err := New(Config{
		EndTime:     0.5,
		NumSegments: 2,
		Timesteps:   []float64{1. / 32},
		Fields:      []string{"c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8}, tp.NumTimesteps)
}

func TestTimeIntervalAndInstant(t *testing.T) {
	ti, err := NewTimeInterval(0.5, 0.05, []string{"c"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, ti.Len())
	assert.Equal(t, []int{3}, ti.ExportsPerSegment)
	assert.False(t, ti.Steady)

	inst, err := NewTimeInstant([]string{"c"}, 1)
	require.NoError(t, err)
	assert.True(t, inst.Steady)
	assert.Equal(t, []int{1}, inst.NumTimesteps)
	assert.Equal(t, []int{2}, inst.ExportsPerSegment)
}

func TestValidateLayoutDetectsEdits(t *testing.T) {
	tp, err := NewTimeInterval(1, 0.25, []string{"c"}, 1)
	require.NoError(t, err)
	tp.ExportsPerSegment[0] = 7
	assert.ErrorIs(t, tp.ValidateLayout(), ErrValidation)
}
