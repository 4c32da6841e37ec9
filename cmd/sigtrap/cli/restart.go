package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/codemodus/sigtrap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [GENERATION]",
	Short: "Re-execute this process in place on SIGQUIT",
	Long: `restart installs a crash-exec handler for SIGQUIT pointing back at
this same command with an incremented generation counter, then idles until
interrupted. Sending SIGQUIT replaces the process image in place; the pid
stays the same while the generation count climbs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		generation := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse generation: %w", err)
			}
			generation = n
		}

		program, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve current executable: %w", err)
		}

		sigtrap.SetCommandLine(program,
			[]string{os.Args[0], "restart", strconv.Itoa(generation + 1)},
			os.Environ())
		if err := sigtrap.SetHandler([]sigtrap.Signal{sigtrap.SIGQUIT}, true); err != nil {
			return fmt.Errorf("install crash handler: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"pid":        os.Getpid(),
			"generation": generation,
		}).Info("running; SIGQUIT re-executes in place, SIGINT or SIGTERM exits")

		trap := sigtrap.New(sigtrap.SIGINT, sigtrap.SIGTERM)
		defer trap.Close()

		logrus.WithField("signal", trap.Next()).Info("exiting")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
