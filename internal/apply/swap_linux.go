//go:build linux

package apply

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/velopack/velopack/internal/bundle"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

// swapPackage extracts the new .AppImage from the bundle to a temp file,
// marks it executable, and renames it over the current AppImage. A
// permission-denied rename (install root owned by another user) falls back
// to pkexec running a tiny shell script that performs the same mv.
func swapPackage(cfg *locator.Config, bun *bundle.Bundle, target *nuspec.Manifest) error {
	tempPath := os.TempDir() + "/velopack_" + uuid.NewString()
	scriptPath := os.TempDir() + "/velopack_update_" + target.ID + ".sh"
	defer os.Remove(tempPath)
	defer os.Remove(scriptPath)

	if err := bun.ExtractZipPredicateToPath(func(name string) bool {
		return strings.HasSuffix(name, ".AppImage")
	}, tempPath); err != nil {
		return fmt.Errorf("extract AppImage from bundle: %w", err)
	}

	if err := os.Chmod(tempPath, 0o755); err != nil {
		return fmt.Errorf("chmod AppImage executable: %w", err)
	}

	forceStopPackage(cfg)

	err := os.Rename(tempPath, cfg.RootAppDir)
	if err == nil {
		return nil
	}
	if !os.IsPermission(err) {
		return fmt.Errorf("replace AppImage: %w", err)
	}

	log.Printf("[apply] permission denied replacing AppImage, attempting pkexec elevation")
	script := fmt.Sprintf("#!/bin/sh\nmv -f '%s' '%s'\n", tempPath, cfg.RootAppDir)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return fmt.Errorf("write elevation script: %w", err)
	}
	if out, err := exec.Command("pkexec", scriptPath).CombinedOutput(); err != nil {
		return fmt.Errorf("pkexec elevation failed: %s: %w", out, err)
	}
	return nil
}

func forceStopPackage(cfg *locator.Config) {
	_ = exec.Command("pkill", "-f", cfg.RootAppDir).Run()
}
