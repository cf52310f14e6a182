//go:build windows

package uninstall

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/windows/registry"

	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

func forceStopApp(cfg *locator.Config) {
	exePath, err := cfg.GetMainExePath()
	if err != nil {
		return
	}
	_ = exec.Command("taskkill", "/F", "/IM", filepath.Base(exePath)).Run()
}

// removeShortcuts deletes the Start Menu shortcut this install's installer
// would have created. Desktop shortcuts are intentionally left in place —
// removing user-placed shortcuts without being asked is surprising.
func removeShortcuts(cfg *locator.Config, manifest *nuspec.Manifest) error {
	startMenu, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	link := filepath.Join(startMenu, "Microsoft", "Windows", "Start Menu", "Programs", nuspecTitleOrID(manifest)+".lnk")
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func removeUninstallEntry(manifest *nuspec.Manifest) error {
	keyPath := `Software\Microsoft\Windows\CurrentVersion\Uninstall\` + manifest.ID
	return registry.DeleteKey(registry.CURRENT_USER, keyPath)
}

// registerIntentToDeleteSelf schedules Update.exe for deletion by spawning
// a detached cmd.exe that waits, then deletes the binary — Windows refuses
// to delete a running executable's own file directly.
func registerIntentToDeleteSelf(updateExePath string, delay time.Duration) error {
	seconds := int(delay.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	cmd := exec.Command("cmd", "/C", "timeout", "/t", strconv.Itoa(seconds), "/nobreak", ">NUL", "&", "del", "/F", "/Q", updateExePath)
	return cmd.Start()
}
