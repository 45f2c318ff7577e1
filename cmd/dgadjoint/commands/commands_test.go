package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/DGAdjoint/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testConfig = `
time:
  end_time: 0.25
  num_segments: 2
  dt: 0.0625
mesh:
  elements: [4, 6]
problem:
  decay: 0.5
logging:
  level: error
`

func run(t *testing.T, args ...string) (Summary, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", path))
	require.NoError(t, root.Execute())

	var summary Summary
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &summary))
	return summary, stderr.String()
}

func TestSolveCommand(t *testing.T) {
	summary, stderr := run(t, "solve", "--cross-check", "--adjoint-actions", "--metrics")
	assert.Equal(t, "solve", summary.Command)
	assert.Equal(t, "end_time", summary.QoIType)
	assert.NotEmpty(t, summary.RunID)
	require.NotNil(t, summary.J)
	assert.Greater(t, *summary.J, 0.)
	require.Len(t, summary.Segments, 2)
	assert.Equal(t, 6, summary.Segments[1].Elements)
	assert.Equal(t, 2, summary.Segments[1].Timesteps)
	require.Len(t, summary.Fields, 1)
	norms := summary.Fields[0].Norms
	assert.Contains(t, norms, "adjoint_action")
	assert.Len(t, norms["forward"][1], 2)
	assert.Greater(t, summary.Sensitivity["c"], 0.)
	assert.Contains(t, stderr, "dgadjoint_segments_total")
}

func TestForwardCommand(t *testing.T) {
	summary, stderr := run(t, "forward")
	assert.Equal(t, "forward", summary.Command)
	assert.Nil(t, summary.J)
	require.Len(t, summary.Fields, 1)
	assert.ElementsMatch(t, []string{"forward", "forward_old"}, keys(summary.Fields[0].Norms))
	assert.Empty(t, stderr)
}

func TestCheckpointsCommand(t *testing.T) {
	summary, _ := run(t, "checkpoints")
	require.Len(t, summary.Segments, 3)
	require.NotNil(t, summary.J)
	for _, seg := range summary.Segments {
		assert.Contains(t, seg.Checkpoint, "c")
	}
	assert.Equal(t, 0.25, summary.Segments[2].TStart)

	summary, _ = run(t, "checkpoints", "--final=false")
	assert.Len(t, summary.Segments, 2)
	assert.Nil(t, summary.J)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	var stdout bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetArgs([]string{"config", "--config", path, "--log-level", "debug"})
	require.NoError(t, root.Execute())

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &cfg))
	assert.Equal(t, []int{4, 6}, cfg.Mesh.Elements)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDiscretizationCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	describe := func(args ...string) string {
		var stdout bytes.Buffer
		root := NewRootCommand()
		root.SetOut(&stdout)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"discretization", "--config", path}, args...))
		require.NoError(t, root.Execute())
		return stdout.String()
	}

	out := describe()
	assert.Contains(t, out, "Segment 0:")
	assert.Contains(t, out, "Segment 1:")
	assert.Contains(t, out, "Number of elements: 4")
	assert.Contains(t, out, "Number of elements: 6")
	assert.NotContains(t, out, "M_Line1")

	out = describe("--matrices")
	assert.Contains(t, out, "M_Line1 [2×2] = {")
	assert.Contains(t, out, "LIFT_Line1")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("time:\n  dt: -1\n"), 0o600))
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"solve", "--config", path})
	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidTime)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
