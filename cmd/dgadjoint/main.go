// Command dgadjoint runs the segmented adjoint of a 1D advection problem
// described by a YAML configuration.
package main

import (
	"fmt"
	"os"

	"github.com/notargets/DGAdjoint/cmd/dgadjoint/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
