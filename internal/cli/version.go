package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "heron %s\n", build.Version)
		fmt.Fprintf(out, "  commit:     %s\n", build.Commit)
		fmt.Fprintf(out, "  built:      %s\n", build.BuildDate)
		fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
	},
}
