package cli

import (
	"time"

	"github.com/codemodus/sigtrap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var pollInterval time.Duration

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll for SIGINT between units of work",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trap := sigtrap.New(sigtrap.SIGINT)
		defer trap.Close()

		for {
			if sig, ok := trap.Wait(time.Now()); ok {
				logrus.WithField("signal", sig).Info("gracefully interrupted")
				return nil
			}

			logrus.Debug("no signal pending, working")
			time.Sleep(pollInterval)
		}
	},
}

func init() {
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 100*time.Millisecond, "length of one simulated unit of work")
	rootCmd.AddCommand(pollCmd)
}
