// Package config loads the run configuration of the dgadjoint tool from a
// YAML file and DGADJOINT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/DGAdjoint/adjoint"
	"github.com/notargets/DGAdjoint/mesh"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/observability"
	"github.com/notargets/DGAdjoint/partitions"
	"github.com/notargets/DGAdjoint/problems/advection"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidTime    = errors.New("invalid time configuration")
	ErrInvalidMesh    = errors.New("invalid mesh configuration")
	ErrInvalidProblem = errors.New("invalid problem configuration")
)

const (
	EnvPrefix = "DGADJOINT"

	QoIEndTime        = "end_time"
	QoITimeIntegrated = "time_integrated"
)

// Config is the complete run configuration
type Config struct {
	Time    TimeConfig                  `mapstructure:"time" yaml:"time"`
	Mesh    MeshConfig                  `mapstructure:"mesh" yaml:"mesh"`
	Problem ProblemConfig               `mapstructure:"problem" yaml:"problem"`
	Adjoint AdjointConfig               `mapstructure:"adjoint" yaml:"adjoint"`
	Logging observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

type TimeConfig struct {
	StartTime          float64 `mapstructure:"start_time" yaml:"start_time"`
	EndTime            float64 `mapstructure:"end_time" yaml:"end_time"`
	NumSegments        int     `mapstructure:"num_segments" yaml:"num_segments"`
	Dt                 float64 `mapstructure:"dt" yaml:"dt"`
	TimestepsPerExport int     `mapstructure:"timesteps_per_export" yaml:"timesteps_per_export"`
}

type MeshConfig struct {
	Left     float64 `mapstructure:"left" yaml:"left"`
	Right    float64 `mapstructure:"right" yaml:"right"`
	Elements []int   `mapstructure:"elements" yaml:"elements"` // One entry per segment, or one for all
	Order    int     `mapstructure:"order" yaml:"order"`
	Periodic bool    `mapstructure:"periodic" yaml:"periodic"`
}

type ProblemConfig struct {
	Field    string  `mapstructure:"field" yaml:"field"`
	Velocity float64 `mapstructure:"velocity" yaml:"velocity"`
	Decay    float64 `mapstructure:"decay" yaml:"decay"`
	Scheme   string  `mapstructure:"scheme" yaml:"scheme"`   // implicit_euler, heun, ssprk3
	QoI      string  `mapstructure:"qoi" yaml:"qoi"`         // end_time or time_integrated
	Initial  string  `mapstructure:"initial" yaml:"initial"` // sine, constant or gaussian
}

type AdjointConfig struct {
	AdjointActions bool `mapstructure:"adjoint_actions" yaml:"adjoint_actions"`
	CrossCheck     bool `mapstructure:"cross_check" yaml:"cross_check"`
	Steady         bool `mapstructure:"steady" yaml:"steady"`
	Warnings       bool `mapstructure:"warnings" yaml:"warnings"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("time.start_time", 0.)
	v.SetDefault("time.end_time", 0.5)
	v.SetDefault("time.num_segments", 2)
	v.SetDefault("time.dt", 1./64)
	v.SetDefault("time.timesteps_per_export", 1)

	v.SetDefault("mesh.left", 0.)
	v.SetDefault("mesh.right", 1.)
	v.SetDefault("mesh.elements", []int{16})
	v.SetDefault("mesh.order", 1)
	v.SetDefault("mesh.periodic", true)

	v.SetDefault("problem.field", "c")
	v.SetDefault("problem.velocity", 1.)
	v.SetDefault("problem.decay", 0.)
	v.SetDefault("problem.scheme", string(advection.ImplicitEuler))
	v.SetDefault("problem.qoi", QoIEndTime)
	v.SetDefault("problem.initial", "sine")

	v.SetDefault("adjoint.adjoint_actions", false)
	v.SetDefault("adjoint.cross_check", false)
	v.SetDefault("adjoint.steady", false)
	v.SetDefault("adjoint.warnings", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Default is the configuration used when no file or environment variable
// overrides a key
func Default() *Config {
	cfg, err := load(viper.New(), false)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path, if not empty, over the defaults and applies environment
// overrides such as DGADJOINT_TIME_END_TIME
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return load(v, true)
}

func load(v *viper.Viper, env bool) (*Config, error) {
	setDefaults(v)
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that can be checked without building the run
func (c *Config) Validate() error {
	t := c.Time
	switch {
	case !(t.EndTime > t.StartTime):
		return fmt.Errorf("%w: end_time %g must follow start_time %g", ErrInvalidTime, t.EndTime, t.StartTime)
	case t.NumSegments < 1:
		return fmt.Errorf("%w: num_segments must be positive, got %d", ErrInvalidTime, t.NumSegments)
	case !(t.Dt > 0):
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidTime, t.Dt)
	case t.TimestepsPerExport < 1:
		return fmt.Errorf("%w: timesteps_per_export must be positive, got %d", ErrInvalidTime, t.TimestepsPerExport)
	}

	m := c.Mesh
	if !(m.Right > m.Left) {
		return fmt.Errorf("%w: right %g must follow left %g", ErrInvalidMesh, m.Right, m.Left)
	}
	if n := len(m.Elements); n != 1 && n != t.NumSegments {
		return fmt.Errorf("%w: %d element counts for %d segments", ErrInvalidMesh, n, t.NumSegments)
	}
	for i, K := range m.Elements {
		if K < 1 {
			return fmt.Errorf("%w: segment %d has %d elements", ErrInvalidMesh, i, K)
		}
	}
	if m.Order < 0 {
		return fmt.Errorf("%w: order must be non negative, got %d", ErrInvalidMesh, m.Order)
	}

	p := c.Problem
	if p.Field == "" {
		return fmt.Errorf("%w: field name is empty", ErrInvalidProblem)
	}
	switch advection.Scheme(p.Scheme) {
	case advection.ImplicitEuler, advection.Heun, advection.SSPRK3:
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrInvalidProblem, p.Scheme)
	}
	if p.QoI != QoIEndTime && p.QoI != QoITimeIntegrated {
		return fmt.Errorf("%w: unknown qoi %q", ErrInvalidProblem, p.QoI)
	}
	if _, err := initialFunc(p.Initial, m.Left, m.Right); err != nil {
		return err
	}
	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func initialFunc(name string, left, right float64) (func(float64) float64, error) {
	L := right - left
	switch name {
	case "sine":
		return func(x float64) float64 { return math.Sin(2 * math.Pi * (x - left) / L) }, nil
	case "constant":
		return func(float64) float64 { return 1 }, nil
	case "gaussian":
		mid := left + L/2
		return func(x float64) float64 { return math.Exp(-100 * (x - mid) * (x - mid) / (L * L)) }, nil
	}
	return nil, fmt.Errorf("%w: unknown initial condition %q", ErrInvalidProblem, name)
}

// TimePartition builds the partition of the time section
func (c *Config) TimePartition() (*partitions.TimePartition, error) {
	return partitions.New(partitions.Config{
		StartTime:          c.Time.StartTime,
		EndTime:            c.Time.EndTime,
		NumSegments:        c.Time.NumSegments,
		Timesteps:          []float64{c.Time.Dt},
		Fields:             []string{c.Problem.Field},
		TimestepsPerExport: []int{c.Time.TimestepsPerExport},
	})
}

// Meshes builds the uniform mesh of every entry of mesh.elements
func (c *Config) Meshes() ([]*mesh.Mesh, error) {
	meshes := make([]*mesh.Mesh, len(c.Mesh.Elements))
	for i, K := range c.Mesh.Elements {
		msh, err := mesh.NewUniformMesh(c.Mesh.Left, c.Mesh.Right, K, c.Mesh.Periodic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMesh, err)
		}
		meshes[i] = msh
	}
	return meshes, nil
}

// BuildProblem builds the advection problem of the problem section
func (c *Config) BuildProblem() (*advection.Problem, error) {
	p, err := advection.New(c.Problem.Field, c.Problem.Velocity, c.Problem.Decay, c.Mesh.Order,
		advection.Scheme(c.Problem.Scheme))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
	}
	if p.Initial, err = initialFunc(c.Problem.Initial, c.Mesh.Left, c.Mesh.Right); err != nil {
		return nil, err
	}
	return p, nil
}

// MeshSeq wires the configured problem into a MeshSeq
func (c *Config) MeshSeq(opts ...meshseq.Option) (*meshseq.MeshSeq, error) {
	_, ms, err := c.build(opts)
	return ms, err
}

func (c *Config) build(opts []meshseq.Option) (*advection.Problem, *meshseq.MeshSeq, error) {
	tp, err := c.TimePartition()
	if err != nil {
		return nil, nil, err
	}
	meshes, err := c.Meshes()
	if err != nil {
		return nil, nil, err
	}
	p, err := c.BuildProblem()
	if err != nil {
		return nil, nil, err
	}
	ms, err := p.MeshSeq(tp, meshes, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, ms, nil
}

// AdjointMeshSeq wires the configured problem and QoI into an AdjointMeshSeq
func (c *Config) AdjointMeshSeq(opts ...meshseq.Option) (*adjoint.AdjointMeshSeq, error) {
	p, ms, err := c.build(opts)
	if err != nil {
		return nil, err
	}
	qoi := p.EndTimeQoI
	if c.Problem.QoI == QoITimeIntegrated {
		qoi = p.TimeIntegratedQoI
	}
	aopts := []adjoint.Option{adjoint.WithWarnings(c.Adjoint.Warnings)}
	if c.Adjoint.Steady {
		aopts = append(aopts, adjoint.WithSteady(true))
	}
	return adjoint.New(ms, qoi, aopts...)
}

// SolveOptions are the adjoint section's solve switches
func (c *Config) SolveOptions() adjoint.SolveOptions {
	return adjoint.SolveOptions{
		AdjointActions: c.Adjoint.AdjointActions,
		CrossCheck:     c.Adjoint.CrossCheck,
	}
}

// YAML encodes the configuration in the layout Load reads
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
