// Package config loads experiment configuration for the graphbandit CLI.
//
// Values are layered in order of increasing precedence:
//  1. built-in defaults
//  2. an optional YAML file
//  3. GRAPHBANDIT_* environment variables (GRAPHBANDIT_PROBLEM__USERS -> problem.users)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/internal/synth"
	"github.com/n0madic/go-graph-bandits/linucb"
)

const (
	// EnvPrefix is the prefix of environment overrides.
	EnvPrefix = "GRAPHBANDIT_"

	// ConfigPathEnvVar names a config file when no path is given explicitly.
	ConfigPathEnvVar = "GRAPHBANDIT_CONFIG"
)

// DefaultConfigPaths are searched when neither a path nor ConfigPathEnvVar is set.
var DefaultConfigPaths = []string{
	"graphbandit.yaml",
	"graphbandit.yml",
}

// Algorithm names accepted in the algorithms list.
const (
	LinUCB    = "linucb"
	GOB       = "gob"
	LapUCB    = "lapucb"
	LapUCBSim = "lapucb_sim"
	SCLUB     = "sclub"
	CLUB      = "club"
	CoLin     = "colin"
	LinTS     = "lints"
)

// Algorithms lists every known algorithm name.
var Algorithms = []string{LinUCB, GOB, LapUCB, LapUCBSim, SCLUB, CLUB, CoLin, LinTS}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Experiment is the complete configuration of one CLI run.
type Experiment struct {
	Problem    Problem  `koanf:"problem" json:"problem"`
	Policy     Policy   `koanf:"policy" json:"policy"`
	Algorithms []string `koanf:"algorithms" json:"algorithms" validate:"min=1,dive,oneof=linucb gob lapucb lapucb_sim sclub club colin lints"`
	Loops      int      `koanf:"loops" json:"loops" validate:"min=1,max=1000"`
	Workers    int      `koanf:"workers" json:"workers" validate:"min=0"`
	Seed       uint64   `koanf:"seed" json:"seed"`
	LogEvery   int      `koanf:"log_every" json:"log_every" validate:"min=0"`
	Logging    Logging  `koanf:"logging" json:"logging"`
}

// Problem describes the synthetic problem drawn for every repetition.
type Problem struct {
	Users      int     `koanf:"users" json:"users" validate:"min=1,max=1000"`
	Items      int     `koanf:"items" json:"items" validate:"min=1"`
	Dim        int     `koanf:"dim" json:"dim" validate:"min=1,max=256"`
	PoolSize   int     `koanf:"pool_size" json:"pool_size" validate:"min=1"`
	Horizon    int     `koanf:"horizon" json:"horizon" validate:"min=1"`
	Noise      float64 `koanf:"noise" json:"noise" validate:"min=0"`
	Graph      string  `koanf:"graph" json:"graph" validate:"oneof=rbf er"`
	EdgeProb   float64 `koanf:"edge_prob" json:"edge_prob" validate:"min=0,max=1"`
	Threshold  float64 `koanf:"threshold" json:"threshold" validate:"min=0,max=1"`
	Smoothness float64 `koanf:"smoothness" json:"smoothness" validate:"min=0"`
}

// Policy holds the hyperparameters shared by the algorithms.
type Policy struct {
	Alpha          float64 `koanf:"alpha" json:"alpha" validate:"gt=0"`
	Beta           float64 `koanf:"beta" json:"beta" validate:"min=0"`
	Sigma          float64 `koanf:"sigma" json:"sigma" validate:"min=0"`
	Delta          float64 `koanf:"delta" json:"delta" validate:"gt=0,lt=1"`
	Bound          float64 `koanf:"bound" json:"bound" validate:"min=0"`
	Confidence     string  `koanf:"confidence" json:"confidence" validate:"omitempty,oneof=constant self-normalized"`
	Inflation      string  `koanf:"inflation" json:"inflation" validate:"omitempty,oneof=none log"`
	Solver         string  `koanf:"solver" json:"solver" validate:"oneof=pinv cholesky sherman-morrison"`
	Neighbors      int     `koanf:"neighbors" json:"neighbors" validate:"min=0"`
	Gamma          float64 `koanf:"gamma" json:"gamma" validate:"min=0"`
	Threshold      float64 `koanf:"threshold" json:"threshold" validate:"min=0,max=1"`
	ClubThreshold  float64 `koanf:"club_threshold" json:"club_threshold" validate:"min=0,max=1"`
	Stabilizer     float64 `koanf:"stabilizer" json:"stabilizer" validate:"gt=0"`
	Normalization  string  `koanf:"normalization" json:"normalization" validate:"oneof=unnormalized random-walk symmetric"`
	Resolution     float64 `koanf:"resolution" json:"resolution" validate:"gt=0"`
	SampleVariance float64 `koanf:"sample_variance" json:"sample_variance" validate:"min=0"`
}

// Logging configures the CLI logger.
type Logging struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" json:"format" validate:"oneof=console json"`
}

// Default returns the built-in configuration.
func Default() *Experiment {
	return &Experiment{
		Problem: Problem{
			Users:      10,
			Items:      500,
			Dim:        5,
			PoolSize:   20,
			Horizon:    1000,
			Noise:      0.1,
			Graph:      synth.RBFGraph,
			EdgeProb:   0.3,
			Threshold:  0.5,
			Smoothness: 1,
		},
		Policy: Policy{
			Alpha:          1,
			Beta:           0.1,
			Sigma:          0.01,
			Delta:          0.1,
			Bound:          1,
			Solver:         "pinv",
			Neighbors:      3,
			Threshold:      0,
			ClubThreshold:  0.8,
			Stabilizer:     graph.DefaultStabilizer,
			Normalization:  graph.Symmetric.String(),
			Resolution:     1,
			SampleVariance: 0.01,
		},
		Algorithms: []string{LinUCB, GOB, LapUCB, LapUCBSim, SCLUB},
		Loops:      5,
		Workers:    0,
		Seed:       2024,
		LogEvery:   100,
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// the one found through ConfigPathEnvVar and DefaultConfigPaths when path is
// empty) and environment overrides, then validates it.
func Load(path string) (*Experiment, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Experiment{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps GRAPHBANDIT_POLICY__SAMPLE_VARIANCE to
// policy.sample_variance. Keys that map to nothing are skipped.
func envTransformFunc(s string) string {
	if s == ConfigPathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// sliceConfigPaths are parsed as comma-separated lists when set from the environment.
var sliceConfigPaths = []string{
	"algorithms",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		str, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(str, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the constraints between fields.
func (e *Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
				if fe.Param() != "" {
					msgs[i] += fmt.Sprintf(" (%s)", fe.Param())
				}
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if e.Problem.PoolSize > e.Problem.Items {
		return fmt.Errorf("%w: pool_size %d exceeds items %d", ErrInvalid, e.Problem.PoolSize, e.Problem.Items)
	}
	if e.Policy.Neighbors > e.Problem.Users {
		return fmt.Errorf("%w: neighbors %d exceeds users %d", ErrInvalid, e.Policy.Neighbors, e.Problem.Users)
	}
	seen := make(map[string]bool, len(e.Algorithms))
	for _, name := range e.Algorithms {
		if seen[name] {
			return fmt.Errorf("%w: algorithm %q listed twice", ErrInvalid, name)
		}
		seen[name] = true
	}
	return nil
}

// Synth returns the generator parameters of the problem section.
func (p Problem) Synth() synth.Params {
	return synth.Params{
		Users:      p.Users,
		Items:      p.Items,
		Dim:        p.Dim,
		PoolSize:   p.PoolSize,
		Horizon:    p.Horizon,
		Noise:      p.Noise,
		Graph:      p.Graph,
		EdgeProb:   p.EdgeProb,
		Threshold:  p.Threshold,
		Smoothness: p.Smoothness,
	}
}

// LinUCBOptions translates the shared hyperparameters into estimator options.
// An empty confidence or inflation leaves the algorithm's own default alone.
func (p Policy) LinUCBOptions() ([]linucb.Option, error) {
	solver, err := ParseSolver(p.Solver)
	if err != nil {
		return nil, err
	}
	opts := []linucb.Option{
		linucb.WithAlpha(p.Alpha),
		linucb.WithBeta(p.Beta),
		linucb.WithSigma(p.Sigma),
		linucb.WithDelta(p.Delta),
		linucb.WithBound(p.Bound),
		linucb.WithSolver(solver),
	}
	if p.Confidence != "" {
		conf, err := linucb.ParseConfidence(p.Confidence)
		if err != nil {
			return nil, err
		}
		opts = append(opts, linucb.WithConfidence(conf))
	}
	if p.Inflation != "" {
		infl, err := linucb.ParseInflation(p.Inflation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, linucb.WithInflation(infl))
	}
	return opts, nil
}

// GraphNormalization parses the Laplacian normalization.
func (p Policy) GraphNormalization() (graph.Normalization, error) {
	return graph.ParseNormalization(p.Normalization)
}

// ParseSolver maps a solver name to its implementation.
func ParseSolver(name string) (linucb.Solver, error) {
	switch name {
	case "", "pinv":
		return linucb.PinvSolver{}, nil
	case "cholesky":
		return linucb.CholeskySolver{}, nil
	case "sherman-morrison":
		return linucb.ShermanMorrison{}, nil
	}
	return nil, fmt.Errorf("unknown solver %q", name)
}
