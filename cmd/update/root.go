// Command update is the updater binary: the thing that gets copied next to
// an installed application and re-invoked by it to check for, download, and
// apply updates, plus run the uninstall flow. It never imports the app's own
// code; everything it needs comes from the installed manifest and the
// locator's directory layout.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "update",
	Short:         "Apply and manage application updates",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("VELOPACK_DEBUG") == "" {
			log.SetFlags(0)
		}
		return nil
	},
}

var rootFlags = struct {
	exePath string
}{}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.exePath, "exePath", "", "path of the running application executable (defaults to the updater's own location)")
	rootCmd.AddCommand(startCmd, applyCmd, patchCmd, uninstallCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "update:", err)
		os.Exit(1)
	}
}
