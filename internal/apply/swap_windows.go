//go:build windows

package apply

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/velopack/velopack/internal/bundle"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

// swapPackage extracts the new package's lib/ contents to a temp directory,
// force-stops the running app, and renames current/ -> temp-old and
// temp-new -> current/. A rename failure (almost always the app is still
// holding a file open) is retried once under elevation before giving up.
func swapPackage(cfg *locator.Config, bun *bundle.Bundle, target *nuspec.Manifest) error {
	tempNew := filepath.Join(os.TempDir(), "velopack_"+uuid.NewString())
	tempOld := filepath.Join(os.TempDir(), "velopack_"+uuid.NewString())
	defer os.RemoveAll(tempNew)
	defer os.RemoveAll(tempOld)

	if err := bun.ExtractLibContentsToPath(tempNew, nil); err != nil {
		return fmt.Errorf("extract package: %w", err)
	}

	forceStopPackage(cfg)

	err := renameSwap(cfg.CurrentBinaryDir, tempOld, tempNew)
	if err != nil {
		log.Printf("[apply] swap failed (%v), attempting elevated retry", err)
		if elevErr := elevatedSwap(cfg.CurrentBinaryDir, tempNew); elevErr != nil {
			return fmt.Errorf("swap failed even under elevation: %w (original error: %v)", elevErr, err)
		}
	}

	if err := writeUninstallEntry(cfg, target); err != nil {
		log.Printf("[apply] failed to write uninstall registry entry: %v", err)
	}
	return nil
}

func renameSwap(currentDir, tempOld, tempNew string) error {
	if err := os.Rename(currentDir, tempOld); err != nil {
		return fmt.Errorf("rename current to backup: %w", err)
	}
	if err := os.Rename(tempNew, currentDir); err != nil {
		// best effort: restore the old directory so the app isn't left broken
		if restoreErr := os.Rename(tempOld, currentDir); restoreErr != nil {
			log.Printf("[apply] CRITICAL: failed to restore previous version: %v", restoreErr)
		}
		return fmt.Errorf("rename new into place: %w", err)
	}
	return nil
}

// elevationTimeout bounds how long elevatedSwap waits for the UAC-elevated
// script to finish (or for the user to dismiss the prompt entirely).
const elevationTimeout = 120 * time.Second

var (
	modshell32        = windows.NewLazySystemDLL("shell32.dll")
	procShellExecuteW = modshell32.NewProc("ShellExecuteW")
)

// elevatedSwap authors a small batch script performing the same two-phase
// rename as renameSwap, then runs it with the "runas" verb via
// ShellExecuteW so Windows prompts the user for administrator consent —
// the in-process UAC elevation the reference implementation's
// windows/process.rs performs with ShellExecuteExW, for when the in-use
// directory is locked by a process running as a different user (e.g. a
// per-machine install being updated by a non-administrator). ShellExecuteW
// itself only launches the elevated process; completion is observed by
// polling for a marker file the script writes when it's done, the same
// poll-with-deadline idiom waitForPID already uses for process exit.
func elevatedSwap(currentDir, tempNew string) error {
	tempOld := currentDir + ".old"
	donePath := filepath.Join(os.TempDir(), "velopack_elevate_"+uuid.NewString()+".done")
	scriptPath := filepath.Join(os.TempDir(), "velopack_elevate_"+uuid.NewString()+".bat")
	defer os.Remove(donePath)
	defer os.Remove(scriptPath)

	script := fmt.Sprintf(
		"@echo off\r\nmove /Y \"%s\" \"%s\"\r\nmove /Y \"%s\" \"%s\"\r\necho done > \"%s\"\r\n",
		currentDir, tempOld, tempNew, currentDir, donePath,
	)
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		return fmt.Errorf("write elevation script: %w", err)
	}

	if err := shellExecuteRunas("cmd.exe", `/C "`+scriptPath+`"`); err != nil {
		return fmt.Errorf("request elevation: %w", err)
	}

	deadline := time.Now().Add(elevationTimeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(donePath); err == nil {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("elevated swap did not complete within %s (the UAC prompt may have been dismissed)", elevationTimeout)
}

// shellExecuteRunas invokes ShellExecuteW directly via a lazily-bound
// shell32 proc, since golang.org/x/sys/windows doesn't wrap the shell API.
func shellExecuteRunas(file, args string) error {
	verbPtr, err := syscall.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	filePtr, err := syscall.UTF16PtrFromString(file)
	if err != nil {
		return err
	}
	argsPtr, err := syscall.UTF16PtrFromString(args)
	if err != nil {
		return err
	}

	ret, _, _ := procShellExecuteW.Call(
		0,
		uintptr(unsafe.Pointer(verbPtr)),
		uintptr(unsafe.Pointer(filePtr)),
		uintptr(unsafe.Pointer(argsPtr)),
		0,
		0, // SW_HIDE
	)
	if ret <= 32 {
		return fmt.Errorf("ShellExecuteW failed with code %d", ret)
	}
	return nil
}

// forceStopPackage force-kills (taskkill /F) every process whose image name
// matches the main executable's file name; best effort, errors are swallowed since a
// failure here just means the rename below will fail and trigger the
// elevation fallback anyway.
func forceStopPackage(cfg *locator.Config) {
	exePath, err := cfg.GetMainExePath()
	if err != nil {
		return
	}
	cmd := exec.Command("taskkill", "/F", "/IM", filepath.Base(exePath))
	_ = cmd.Run()
}

// writeUninstallEntry writes (or refreshes) the per-user "Add/Remove
// Programs" entry for target under
// HKCU\Software\Microsoft\Windows\CurrentVersion\Uninstall\<id>.
func writeUninstallEntry(cfg *locator.Config, target *nuspec.Manifest) error {
	keyPath := `Software\Microsoft\Windows\CurrentVersion\Uninstall\` + target.ID
	key, _, err := registry.CreateKey(registry.CURRENT_USER, keyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open uninstall registry key: %w", err)
	}
	defer key.Close()

	uninstallExe := cfg.UpdateExePath
	if err := key.SetStringValue("DisplayName", target.Title); err != nil {
		return err
	}
	if err := key.SetStringValue("DisplayVersion", target.Version.String()); err != nil {
		return err
	}
	if err := key.SetStringValue("Publisher", target.Authors); err != nil {
		return err
	}
	if err := key.SetStringValue("UninstallString", uninstallExe+" uninstall"); err != nil {
		return err
	}
	return key.SetDWordValue("NoModify", 1)
}
