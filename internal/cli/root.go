package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	supportDir string
	outputJSON bool
	noProgress bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coreupdater",
		Short: "Emulation core update and install CLI",
	}

	cmd.PersistentFlags().StringVar(&supportDir, "support", "", "Path to the application support directory")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newListCmd())

	manifestCmd := newManifestCmd()
	cmd.AddCommand(manifestCmd)
	// manifest add edits a file in place; support/json flags don't apply.
	for _, name := range []string{"support", "json", "no-progress"} {
		if f := manifestCmd.InheritedFlags().Lookup(name); f != nil {
			f.Hidden = true
		}
	}

	return cmd
}
