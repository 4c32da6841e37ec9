package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/codemodus/sigtrap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var restartChildren bool

var runCmd = &cobra.Command{
	Use:   "run CMD [ARG...] [--- CMD [ARG...]]...",
	Short: "Run child commands and supervise them synchronously",
	Long: `run starts one or more child command lines (separated by "---"),
then traps SIGTERM, SIGINT and SIGCHLD and consumes them one at a time:
children are reaped on SIGCHLD, and a termination signal stops the
supervisor. With --restart, failed children are respawned with exponential
backoff.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChildren,
}

func init() {
	runCmd.Flags().BoolVar(&restartChildren, "restart", false, "respawn failed children with exponential backoff")
	rootCmd.AddCommand(runCmd)
}

type child struct {
	argv  []string
	delay *backoff.ExponentialBackOff
}

func splitCommandLines(args []string) [][]string {
	var lines [][]string
	line := []string{}
	for _, arg := range args {
		if arg == "---" {
			if len(line) > 0 {
				lines = append(lines, line)
				line = []string{}
			}
			continue
		}
		line = append(line, arg)
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}

func startChild(c *child, children map[int]*child) error {
	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", strings.Join(c.argv, " "), err)
	}

	children[cmd.Process.Pid] = c
	logrus.WithFields(logrus.Fields{
		"pid":  cmd.Process.Pid,
		"argv": strings.Join(c.argv, " "),
	}).Info("started")

	return nil
}

func runChildren(cmd *cobra.Command, args []string) error {
	children := map[int]*child{}
	for _, argv := range splitCommandLines(args) {
		c := &child{argv: argv, delay: backoff.NewExponentialBackOff()}
		if err := startChild(c, children); err != nil {
			return err
		}
	}

	trap := sigtrap.New(sigtrap.SIGTERM, sigtrap.SIGINT, sigtrap.SIGCHLD)
	defer trap.Close()

	for sig := range trap.Signals() {
		if sig != sigtrap.SIGCHLD {
			logrus.WithField("signal", sig).Info("stopping")
			for pid := range children {
				_ = unix.Kill(pid, unix.SIGTERM)
			}
			return nil
		}

		done, err := reap(children)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	return nil
}

// reap collects every child that has exited since the last SIGCHLD; one
// delivery may stand for several exits since standard signals coalesce.
func reap(children map[int]*child) (done bool, err error) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err == unix.ECHILD {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("wait4: %w", err)
		}
		if pid == 0 {
			return len(children) == 0, nil
		}

		c := children[pid]
		delete(children, pid)

		failed := false
		switch {
		case ws.Signaled():
			logrus.WithFields(logrus.Fields{"pid": pid, "signal": ws.Signal()}).Warn("child killed")
			failed = true
		case ws.Exited():
			logrus.WithFields(logrus.Fields{"pid": pid, "status": ws.ExitStatus()}).Info("child exited")
			failed = ws.ExitStatus() != 0
		}

		if !failed || !restartChildren || c == nil {
			continue
		}

		delay := c.delay.NextBackOff()
		if delay == backoff.Stop {
			logrus.WithField("argv", strings.Join(c.argv, " ")).Error("giving up on child")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"argv":  strings.Join(c.argv, " "),
			"delay": delay,
		}).Warn("restarting child")
		time.Sleep(delay)

		if err := startChild(c, children); err != nil {
			return false, err
		}
	}
}
