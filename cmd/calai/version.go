package calai

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/yazinsai/cal-ai/cmd/calai.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Show version/build metadata",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "calai %s\n", version)
	fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\nbuilt: %s\ngo: %s\n", commit, date, runtime.Version())
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
