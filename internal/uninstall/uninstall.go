// Package uninstall removes an installed application: it stops the running
// app, fires the uninstall lifecycle hook, removes shortcuts, deletes the
// install directory, and leaves a ".dead" sentinel behind so a stray
// relaunch of the old binary reports ErrNotInstalled instead of limping on
// in a half-removed tree.
package uninstall

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// hookTimeout matches the reference implementation's longer uninstall-hook
// budget — an app doing final cleanup (closing a database, flushing logs)
// gets more time than the 15s update hooks.
const hookTimeout = 60 * time.Second

// Options controls a single uninstall run.
type Options struct {
	// DeleteSelf schedules the Update.exe/UpdateNix binary itself for
	// deletion a few seconds after this call returns, once it's no longer
	// in use performing the uninstall.
	DeleteSelf bool
	// RunHook controls whether --veloapp-uninstall is invoked.
	RunHook bool
}

// Result reports whether every step completed cleanly.
type Result struct {
	FinishedWithErrors bool
	// AlreadyUninstalled is set when cfg's root was already dead — Uninstall
	// did nothing because there was nothing left to remove.
	AlreadyUninstalled bool
}

// Uninstall removes the contents of cfg's install directory, keeping only
// the .dead sentinel it writes. It does not fail on best-effort steps
// (shortcuts, install directory contents, registry entry) — those are
// logged and folded into Result.FinishedWithErrors; the uninstall hook's
// outcome is only logged. It returns an error only if the installed
// manifest cannot be read.
func Uninstall(cfg *locator.Config, opts Options) (*Result, error) {
	// A second uninstall against an already-dead root is a no-op: the
	// manifest and shortcuts are long gone, so there is nothing left to do
	// beyond reporting success.
	if cfg.Dead {
		log.Printf("[uninstall] %s is already uninstalled, nothing to do", cfg.RootAppDir)
		return &Result{AlreadyUninstalled: true}, nil
	}

	manifest, err := cfg.GetCurrentVersion()
	if err != nil {
		return nil, fmt.Errorf("read manifest before uninstall: %w", err)
	}

	log.Printf("[uninstall] uninstalling %s %s from %s", manifest.ID, manifest.Version, cfg.RootAppDir)

	result := &Result{}

	forceStopApp(cfg)

	if opts.RunHook {
		runUninstallHook(cfg)
	}

	if err := removeShortcuts(cfg, manifest); err != nil {
		log.Printf("[uninstall] unable to remove shortcuts: %v", err)
		result.FinishedWithErrors = true
	}

	log.Printf("[uninstall] removing directory %s", cfg.RootAppDir)
	if err := velerrors.RetryIOVoid(func() error {
		return removeDirButNotSelf(cfg.RootAppDir)
	}); err != nil {
		log.Printf("[uninstall] unable to fully remove install directory: %v", err)
		result.FinishedWithErrors = true
	}

	if err := removeUninstallEntry(manifest); err != nil {
		log.Printf("[uninstall] unable to remove uninstall registry entry: %v", err)
		result.FinishedWithErrors = true
	}

	deadPath := filepath.Join(cfg.RootAppDir, ".dead")
	if f, err := os.Create(deadPath); err == nil {
		f.Close()
	} else {
		log.Printf("[uninstall] unable to write .dead sentinel: %v", err)
	}

	if opts.DeleteSelf {
		if err := scheduleSelfDelete(cfg, 3*time.Second); err != nil {
			log.Printf("[uninstall] unable to schedule self-delete: %v", err)
		}
	}

	return result, nil
}

func runUninstallHook(cfg *locator.Config) {
	exePath, err := cfg.GetMainExePath()
	if err != nil {
		log.Printf("[uninstall] skipping uninstall hook: %v", err)
		return
	}
	cmd := exec.Command(exePath, "--veloapp-uninstall")
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		log.Printf("[uninstall] uninstall hook failed to start: %v", err)
		return
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("[uninstall] uninstall hook exited with error: %v", err)
		}
	case <-time.After(hookTimeout):
		log.Printf("[uninstall] uninstall hook timed out after %s, killing", hookTimeout)
		cmd.Process.Kill()
	}
}

// removeDirButNotSelf removes every entry inside root except a .dead
// sentinel; root itself is left in place.
// Named to mirror the reference implementation's remove_dir_but_not_self,
// which tolerates the special case of root being the current working
// directory on platforms where rmdir-of-cwd behaves oddly; Go's os.RemoveAll
// already handles that uniformly, so it is a thin wrapper.
func removeDirButNotSelf(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, e := range entries {
		if e.Name() == ".dead" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func scheduleSelfDelete(cfg *locator.Config, delay time.Duration) error {
	return registerIntentToDeleteSelf(cfg.UpdateExePath, delay)
}

// nuspecTitleOrID falls back to the package id if a manifest has no title
// set, used by platform shortcut-removal code that wants a human label.
func nuspecTitleOrID(m *nuspec.Manifest) string {
	if m.Title != "" {
		return m.Title
	}
	return m.ID
}
