package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velopack/velopack/internal/uninstall"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the application",
	Long:  "Stop the running app, run the uninstall hook, remove shortcuts and platform integration, wipe the install directory, and schedule removal of this updater binary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := locate()
		if err != nil {
			return fmt.Errorf("locate installation: %w", err)
		}

		result, err := uninstall.Uninstall(cfg, uninstall.Options{DeleteSelf: true, RunHook: true})
		if err != nil {
			return err
		}
		if result.AlreadyUninstalled {
			fmt.Println("already uninstalled")
		} else if result.FinishedWithErrors {
			fmt.Println("uninstall completed with errors; see log for details")
		}
		return nil
	},
}
