//go:build linux || darwin

package uninstall

import (
	"os"
	"os/exec"
	"time"

	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

func forceStopApp(cfg *locator.Config) {
	if exePath, err := cfg.GetMainExePath(); err == nil {
		_ = exec.Command("pkill", "-f", exePath).Run()
	}
}

// removeShortcuts is a no-op on linux/darwin: neither platform's install
// layout creates a shortcut file outside the install root itself, which
// Uninstall already removes wholesale.
func removeShortcuts(cfg *locator.Config, manifest *nuspec.Manifest) error {
	return nil
}

// removeUninstallEntry is a no-op: there is no system-wide package manager
// entry for a self-contained Velopack install on linux or macOS.
func removeUninstallEntry(manifest *nuspec.Manifest) error {
	return nil
}

// registerIntentToDeleteSelf schedules UpdateNix for deletion via a
// detached shell that sleeps then removes the binary, since the running
// process cannot unlink itself while its own code is still mapped on some
// unix variants' package managers expect a clean uninstall tree.
func registerIntentToDeleteSelf(updateExePath string, delay time.Duration) error {
	if _, err := os.Stat(updateExePath); err != nil {
		return nil
	}
	script := "sleep " + delay.Truncate(time.Second).String() + "; rm -f '" + updateExePath + "'"
	cmd := exec.Command("/bin/sh", "-c", script)
	return cmd.Start()
}
