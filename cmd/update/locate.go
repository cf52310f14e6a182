package main

import (
	"fmt"
	"os"

	"github.com/velopack/velopack/internal/locator"
)

// locate resolves the install layout relative to rootFlags.exePath, falling
// back to the updater's own location the way every subcommand needs to.
func locate() (*locator.Config, error) {
	exePath := rootFlags.exePath
	if exePath == "" {
		p, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve updater executable: %w", err)
		}
		exePath = p
	}
	return locator.Locate(exePath)
}
