package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/velopack/velopack/internal/apply"
)

var startFlags = struct {
	waitPID       int
	waitForParent bool
}{}

var startCmd = &cobra.Command{
	Use:   "start [-- args...]",
	Short: "Launch the installed application",
	Long:  "Launch the current version of the installed application, optionally waiting for a handed-off process to exit first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if startFlags.waitPID != 0 && startFlags.waitForParent {
			return fmt.Errorf("--waitPid and --waitForParent are mutually exclusive")
		}

		if startFlags.waitForParent {
			apply.WaitForPID(os.Getppid())
		} else if startFlags.waitPID != 0 {
			apply.WaitForPID(startFlags.waitPID)
		}

		cfg, err := locate()
		if err != nil {
			return fmt.Errorf("locate installation: %w", err)
		}
		exePath, err := cfg.GetMainExePath()
		if err != nil {
			return fmt.Errorf("locate main executable: %w", err)
		}

		child := exec.Command(exePath, args...)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Stdin = os.Stdin
		return child.Start()
	},
}

func init() {
	startCmd.Flags().IntVar(&startFlags.waitPID, "waitPid", 0, "wait for this PID to exit before launching")
	startCmd.Flags().BoolVar(&startFlags.waitForParent, "waitForParent", false, "wait for the updater's own parent process to exit before launching")
}
