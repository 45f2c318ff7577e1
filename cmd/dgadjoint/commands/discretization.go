package commands

import (
	"fmt"
	"sort"

	"github.com/notargets/DGAdjoint/element"
	"github.com/spf13/cobra"
)

func newDiscretizationCommand(a *app) *cobra.Command {
	var matrices bool
	cmd := &cobra.Command{
		Use:   "discretization",
		Short: "Describe the DG discretization of every segment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			ms, err := a.cfg.MeshSeq(a.options()...)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			field := a.cfg.Problem.Field
			for i := 0; i < ms.Len(); i++ {
				fs := ms.SegmentSpaces(i)[field]
				if i > 0 && fs == ms.SegmentSpaces(i-1)[field] {
					fmt.Fprintf(w, "Segment %d: same discretization as segment %d\n", i, i-1)
					continue
				}
				fmt.Fprintf(w, "Segment %d: %s\n", i, fs)
				if fs.Disc == nil {
					continue
				}
				fmt.Fprint(w, fs.Disc)
				if !matrices {
					continue
				}
				refs := fs.Disc.GetRefMatrices()
				names := make([]string, 0, len(refs))
				for name := range refs {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprint(w, element.FormatMatrix(name, refs[name]))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&matrices, "matrices", false, "also print the reference element matrices")
	return cmd
}
