package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/linucb"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphbandit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
problem:
  users: 4
  items: 40
  dim: 3
  pool_size: 5
  horizon: 200
  graph: er
policy:
  alpha: 0.5
  confidence: self-normalized
  neighbors: 2
algorithms:
  - linucb
  - club
loops: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Problem.Users)
	assert.Equal(t, 40, cfg.Problem.Items)
	assert.Equal(t, "er", cfg.Problem.Graph)
	assert.Equal(t, 0.5, cfg.Policy.Alpha)
	assert.Equal(t, "self-normalized", cfg.Policy.Confidence)
	assert.Equal(t, []string{LinUCB, CLUB}, cfg.Algorithms)
	assert.Equal(t, 2, cfg.Loops)
	// untouched keys keep their defaults
	assert.Equal(t, Default().Policy.Delta, cfg.Policy.Delta)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "loops: 2\n")
	t.Setenv("GRAPHBANDIT_LOOPS", "7")
	t.Setenv("GRAPHBANDIT_PROBLEM__HORIZON", "50")
	t.Setenv("GRAPHBANDIT_POLICY__SAMPLE_VARIANCE", "0.25")
	t.Setenv("GRAPHBANDIT_ALGORITHMS", "gob, lapucb_sim ,lints")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Loops)
	assert.Equal(t, 50, cfg.Problem.Horizon)
	assert.Equal(t, 0.25, cfg.Policy.SampleVariance)
	assert.Equal(t, []string{GOB, LapUCBSim, LinTS}, cfg.Algorithms)
}

func TestLoadConfigPathEnv(t *testing.T) {
	path := writeConfig(t, "seed: 99\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Seed)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "problem: [1, 2\n"))
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(writeConfig(t, "policy:\n  delta: 1.5\n"))
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Experiment)
	}{
		{"zero users", func(e *Experiment) { e.Problem.Users = 0 }},
		{"pool larger than items", func(e *Experiment) { e.Problem.PoolSize = e.Problem.Items + 1 }},
		{"neighbors above users", func(e *Experiment) { e.Policy.Neighbors = e.Problem.Users + 1 }},
		{"unknown algorithm", func(e *Experiment) { e.Algorithms = []string{"ucb1"} }},
		{"duplicate algorithm", func(e *Experiment) { e.Algorithms = []string{GOB, GOB} }},
		{"no algorithms", func(e *Experiment) { e.Algorithms = nil }},
		{"non-positive alpha", func(e *Experiment) { e.Policy.Alpha = 0 }},
		{"unknown confidence", func(e *Experiment) { e.Policy.Confidence = "loose" }},
		{"unknown solver", func(e *Experiment) { e.Policy.Solver = "qr" }},
		{"unknown graph", func(e *Experiment) { e.Problem.Graph = "lattice" }},
		{"unknown log format", func(e *Experiment) { e.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLinUCBOptions(t *testing.T) {
	pol := Default().Policy
	pol.Alpha = 2
	pol.Solver = "cholesky"

	opts, err := pol.LinUCBOptions()
	require.NoError(t, err)

	params := linucb.DefaultParams()
	params.Confidence = linucb.SelfNormalizedConfidence
	params.Apply(opts...)
	assert.Equal(t, 2.0, params.Alpha)
	assert.IsType(t, linucb.CholeskySolver{}, params.Solver)
	// an empty confidence keeps the algorithm default
	assert.Equal(t, linucb.SelfNormalizedConfidence, params.Confidence)

	pol.Confidence = "constant"
	pol.Inflation = "log"
	opts, err = pol.LinUCBOptions()
	require.NoError(t, err)
	params.Apply(opts...)
	assert.Equal(t, linucb.ConstantConfidence, params.Confidence)
	assert.Equal(t, linucb.LogInflation, params.Inflation)
}

func TestGraphNormalization(t *testing.T) {
	norm, err := Default().Policy.GraphNormalization()
	require.NoError(t, err)
	assert.Equal(t, graph.Symmetric, norm)
}

func TestParseSolver(t *testing.T) {
	for name, want := range map[string]linucb.Solver{
		"":                 linucb.PinvSolver{},
		"pinv":             linucb.PinvSolver{},
		"cholesky":         linucb.CholeskySolver{},
		"sherman-morrison": linucb.ShermanMorrison{},
	} {
		got, err := ParseSolver(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseSolver("lu")
	assert.Error(t, err)
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "problem.pool_size", envTransformFunc("GRAPHBANDIT_PROBLEM__POOL_SIZE"))
	assert.Equal(t, "loops", envTransformFunc("GRAPHBANDIT_LOOPS"))
	assert.Equal(t, "", envTransformFunc(ConfigPathEnvVar))
}
