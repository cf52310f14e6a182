package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velopack/velopack/internal/apply"
)

var applyFlags = struct {
	restart bool
	pkg     string
	waitPID int
}{}

var applyCmd = &cobra.Command{
	Use:   "apply [-- args...]",
	Short: "Apply a downloaded package",
	Long:  "Run the apply engine: extract and swap in a package, run lifecycle hooks, and optionally restart the application.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := locate()
		if err != nil {
			return fmt.Errorf("locate installation: %w", err)
		}

		_, err = apply.Apply(context.Background(), cfg, apply.Options{
			PackagePath: applyFlags.pkg,
			WaitPID:     applyFlags.waitPID,
			Restart:     applyFlags.restart,
			RestartArgs: args,
			RunHooks:    true,
		}, func(s apply.State) {
			fmt.Printf("apply: %s\n", s)
		})
		return err
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyFlags.restart, "restart", false, "restart the application after a successful apply")
	applyCmd.Flags().StringVar(&applyFlags.pkg, "package", "", "package to apply (defaults to the newest package in the packages directory)")
	applyCmd.Flags().IntVar(&applyFlags.waitPID, "waitPid", 0, "wait for this PID to exit before swapping")
}
