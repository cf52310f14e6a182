package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velopack/velopack/internal/delta"
)

var patchFlags = struct {
	old    string
	patch  string
	output string
}{}

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply a single delta patch",
	Long:  "Reconstruct a target file by applying one zstd-dictionary patch to an old file, independent of a full delta chain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if patchFlags.old == "" || patchFlags.patch == "" || patchFlags.output == "" {
			return fmt.Errorf("--old, --patch, and --output are all required")
		}
		return delta.ApplyOne(patchFlags.old, patchFlags.patch, patchFlags.output)
	},
}

func init() {
	patchCmd.Flags().StringVar(&patchFlags.old, "old", "", "path of the prior full file, used as the patch dictionary")
	patchCmd.Flags().StringVar(&patchFlags.patch, "patch", "", "path of the delta patch file")
	patchCmd.Flags().StringVar(&patchFlags.output, "output", "", "path to write the reconstructed file")
}
