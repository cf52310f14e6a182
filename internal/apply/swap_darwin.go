//go:build darwin

package apply

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/velopack/velopack/internal/bundle"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

// swapPackage extracts the new .app bundle alongside the current one and
// performs a two-phase rename: current.app -> current.app.old,
// new.app -> current.app. On permission failure it asks the user (via
// osascript) to authorize an elevated retry.
func swapPackage(cfg *locator.Config, bun *bundle.Bundle, target *nuspec.Manifest) error {
	appBundle := cfg.CurrentBinaryDir
	parentDir := filepath.Dir(appBundle)

	extractDir, err := os.MkdirTemp(parentDir, "velopack_update_*")
	if err != nil {
		return fmt.Errorf("create temp dir next to bundle: %w", err)
	}
	defer os.RemoveAll(extractDir)

	if err := bun.ExtractLibContentsToPath(extractDir, nil); err != nil {
		return fmt.Errorf("extract package: %w", err)
	}

	forceStopPackage(cfg)

	oldBundle := appBundle + ".old"
	os.RemoveAll(oldBundle)

	if err := os.Rename(appBundle, oldBundle); err != nil {
		if isPermissionDenied(err) {
			return elevatedSwap(appBundle, extractDir)
		}
		return fmt.Errorf("rename current bundle aside: %w", err)
	}

	if err := os.Rename(extractDir, appBundle); err != nil {
		if restoreErr := os.Rename(oldBundle, appBundle); restoreErr != nil {
			log.Printf("[apply] CRITICAL: failed to restore previous bundle: %v", restoreErr)
		}
		return fmt.Errorf("move new bundle into place: %w", err)
	}

	// Clear the quarantine attribute so Gatekeeper doesn't re-prompt for a
	// bundle the user already approved once.
	if out, err := exec.Command("xattr", "-cr", appBundle).CombinedOutput(); err != nil {
		log.Printf("[apply] xattr -cr warning: %s (%v)", out, err)
	}

	return nil
}

func forceStopPackage(cfg *locator.Config) {
	_ = exec.Command("osascript", "-e", fmt.Sprintf("quit app %q", cfg.RootAppDir)).Start()
}

func isPermissionDenied(err error) bool {
	return os.IsPermission(err)
}

// elevatedSwap prompts the user via osascript to authorize moving the
// extracted bundle into place with administrator privileges.
func elevatedSwap(appBundle, extractDir string) error {
	script := fmt.Sprintf(
		`do shell script "rm -rf %q && mv %q %q" with administrator privileges`,
		appBundle, extractDir, appBundle,
	)
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("elevated swap failed: %s: %w", out, err)
	}
	return nil
}
