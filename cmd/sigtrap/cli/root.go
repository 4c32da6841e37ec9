// Package cli implements supervisor-style demos of the sigtrap primitives:
// polling a trap between units of work, supervising child processes, and
// re-executing the current process in place on a crash signal.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sigtrap",
	Short: "Synchronous signal handling demos for process supervisors",
	Long: `sigtrap demonstrates race-free, synchronous signal handling:
signals are blocked at the mask level and consumed one at a time with
blocking waits, and a crash signal re-executes the process image in place
instead of killing it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
