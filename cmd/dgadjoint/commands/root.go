// Package commands implements the dgadjoint subcommands.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/notargets/DGAdjoint/config"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app holds the flags shared by every subcommand
type app struct {
	configPath  string
	logLevel    string
	dumpMetrics bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

// NewRootCommand builds the dgadjoint command tree
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dgadjoint",
		Short: "Segmented adjoint solver for 1D DG advection",
		Long: `dgadjoint splits the time interval into segments, solves forward to store
checkpoints and then solves the adjoint segment by segment in reverse.

Commands:
  solve        forward checkpoints followed by the reverse adjoint sweep
  forward      forward solve with exported snapshots
  checkpoints  forward solve storing only the segment checkpoints`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")
	root.PersistentFlags().BoolVar(&a.dumpMetrics, "metrics", false, "write prometheus metrics to stderr on exit")

	root.AddCommand(newSolveCommand(a), newForwardCommand(a), newCheckpointsCommand(a),
		newDiscretizationCommand(a), newConfigCommand(a))
	return root
}

// setup loads the configuration and builds the logger and metrics of a run
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logger, err = observability.NewLogger(cfg.Logging, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.registry = prometheus.NewRegistry()
	if a.metrics, err = observability.NewMetrics(a.registry); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) options() []meshseq.Option {
	return []meshseq.Option{meshseq.WithLogger(a.logger), meshseq.WithMetrics(a.metrics)}
}

// finish writes the summary as YAML and the metrics if requested
func (a *app) finish(cmd *cobra.Command, summary any) error {
	if err := writeYAML(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if !a.dumpMetrics {
		return nil
	}
	return writeMetrics(cmd.ErrOrStderr(), a.registry)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return enc.Close()
}

func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err = expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), a.cfg)
		},
	}
}
