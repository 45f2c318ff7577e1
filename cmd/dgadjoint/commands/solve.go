package commands

import (
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/spf13/cobra"
)

func newSolveCommand(a *app) *cobra.Command {
	var crossCheck, actions bool
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve the adjoint problem and report J and the snapshot norms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("cross-check") {
				a.cfg.Adjoint.CrossCheck = crossCheck
			}
			if cmd.Flags().Changed("adjoint-actions") {
				a.cfg.Adjoint.AdjointActions = actions
			}
			am, err := a.cfg.AdjointMeshSeq(a.options()...)
			if err != nil {
				return err
			}
			archive, err := am.SolveAdjoint(cmd.Context(), a.cfg.SolveOptions())
			if err != nil {
				return err
			}
			J := am.J()
			summary := Summary{
				Command:     "solve",
				RunID:       am.RunID(),
				QoIType:     string(am.QoIType()),
				J:           &J,
				Segments:    segments(am.MeshSeq),
				Fields:      fieldSummaries(archive),
				Sensitivity: make(map[string]float64),
			}
			for f, s := range am.InitialSensitivity() {
				summary.Sensitivity[f] = s.Norm()
			}
			return a.finish(cmd, summary)
		},
	}
	cmd.Flags().BoolVar(&crossCheck, "cross-check", false, "require the checkpoint and adjoint QoI values to agree")
	cmd.Flags().BoolVar(&actions, "adjoint-actions", false, "also archive the adjoint actions")
	return cmd
}

func newForwardCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forward",
		Short: "Solve forward and report the exported snapshot norms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			ms, err := a.cfg.MeshSeq(a.options()...)
			if err != nil {
				return err
			}
			archive, err := ms.SolveForward(cmd.Context())
			if err != nil {
				return err
			}
			return a.finish(cmd, Summary{
				Command:  "forward",
				Segments: segments(ms),
				Fields:   fieldSummaries(archive),
			})
		},
	}
}

func newCheckpointsCommand(a *app) *cobra.Command {
	var final bool
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Solve forward without recording and report the checkpoint norms and J",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			am, err := a.cfg.AdjointMeshSeq(a.options()...)
			if err != nil {
				return err
			}
			cps, err := am.GetCheckpoints(cmd.Context(), final)
			if err != nil {
				return err
			}
			summary := Summary{
				Command:  "checkpoints",
				RunID:    am.RunID(),
				QoIType:  string(am.QoIType()),
				Segments: segments(am.MeshSeq),
			}
			if final {
				J := am.J()
				summary.J = &J
			}
			for _, cp := range cps {
				if cp.Segment >= len(summary.Segments) {
					// state at the end time
					summary.Segments = append(summary.Segments, SegmentSummary{
						Index:  cp.Segment,
						TStart: am.TimePartition.EndTime,
						TEnd:   am.TimePartition.EndTime,
					})
				}
				summary.Segments[cp.Segment].Checkpoint = checkpointNorms(cp)
			}
			return a.finish(cmd, summary)
		},
	}
	cmd.Flags().BoolVar(&final, "final", true, "also solve the last segment and evaluate J")
	return cmd
}

func checkpointNorms(cp meshseq.Checkpoint) map[string]float64 {
	norms := make(map[string]float64)
	for f, u := range cp.Fields() {
		norms[f] = u.Norm()
	}
	return norms
}
