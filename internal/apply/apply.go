// Package apply drives the in-place upgrade of an installed application: it
// locates the package to apply, extracts it, swaps it into the current
// install directory (platform-specific), runs lifecycle hooks, and restarts
// the app on request. It is the most involved stage of the update lifecycle
// — most of its failure handling exists to recover a half-finished swap
// rather than to perform the happy path.
package apply

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/velopack/velopack/internal/bundle"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// State tracks progress through a single apply run, mirroring the stages a
// caller displaying a progress UI needs to distinguish.
type State string

const (
	StateIdle         State = "idle"
	StateWaiting      State = "waiting"
	StateExtracting   State = "extracting"
	StateSwapping     State = "swapping"
	StateHooksRunning State = "hooks_running"
	StateDone         State = "done"
	StateSwapFailed   State = "swap_failed"
)

// ProgressFunc reports state transitions as an apply run progresses.
type ProgressFunc func(state State)

// Options configures a single apply run.
type Options struct {
	// PackagePath is the .nupkg to apply. If empty, the newest package in
	// the locator's packages directory is auto-selected.
	PackagePath string
	// WaitPID, if non-zero, blocks until that process exits (giving up
	// after 60s) before the swap begins — the caller is normally the process being updated.
	WaitPID int
	// Restart launches the newly-applied main executable (with
	// VELOPACK_RESTART=true in its environment) once the swap succeeds.
	Restart bool
	// RestartArgs are passed through to the relaunched executable.
	RestartArgs []string
	// RunHooks controls whether --veloapp-obsolete / --veloapp-updated
	// are invoked around the swap. Tests and non-interactive callers
	// commonly disable this.
	RunHooks bool
}

// Result describes a completed apply run.
type Result struct {
	AppliedManifest *nuspec.Manifest
	Restarted       bool
}

// Apply locates, extracts, and swaps in a package, following cfg's install
// layout. On swap failure it still attempts the restart of the previous
// version when opts.Restart is set, matching the reference implementation's
// "the show must go on" behavior: a failed update should not also prevent
// the user from launching the app they already had.
func Apply(ctx context.Context, cfg *locator.Config, opts Options, progress ProgressFunc) (*Result, error) {
	report(progress, StateWaiting)
	if opts.WaitPID != 0 {
		waitForPID(opts.WaitPID)
	}

	pkgPath := opts.PackagePath
	if pkgPath == "" {
		var err error
		pkgPath, err = cfg.LatestLocalPackage()
		if err != nil {
			return nil, restartOldOnFailure(ctx, cfg, opts, fmt.Errorf("locate package to apply: %w", err))
		}
	}

	currentManifest, err := cfg.GetCurrentVersion()
	if err != nil {
		return nil, restartOldOnFailure(ctx, cfg, opts, fmt.Errorf("read current manifest: %w", err))
	}

	bun, err := bundle.Open(pkgPath)
	if err != nil {
		return nil, restartOldOnFailure(ctx, cfg, opts, fmt.Errorf("open package %s: %w", pkgPath, err))
	}
	defer bun.Close()

	targetManifest, err := bun.ReadManifest()
	if err != nil {
		return nil, restartOldOnFailure(ctx, cfg, opts, fmt.Errorf("read package manifest: %w", err))
	}

	log.Printf("[apply] applying %s %s -> %s", currentManifest.ID, currentManifest.Version, targetManifest.Version)

	lock, err := AcquireLock(cfg)
	if err != nil {
		return nil, restartOldOnFailure(ctx, cfg, opts, err)
	}
	defer lock.Release()

	if opts.RunHooks {
		runHook(cfg, "--veloapp-obsolete")
	}

	report(progress, StateExtracting)
	report(progress, StateSwapping)
	if err := swapPackage(cfg, bun, targetManifest); err != nil {
		report(progress, StateSwapFailed)
		return nil, restartOldOnFailure(ctx, cfg, opts, fmt.Errorf("swap package: %w", err))
	}

	if opts.RunHooks {
		report(progress, StateHooksRunning)
		runHook(cfg, "--veloapp-updated")
	}

	report(progress, StateDone)

	result := &Result{AppliedManifest: targetManifest}
	if opts.Restart {
		if err := restartApp(ctx, cfg, opts.RestartArgs, targetManifest); err != nil {
			log.Printf("[apply] restart after successful apply failed: %v", err)
		} else {
			result.Restarted = true
		}
	}
	return result, nil
}

// restartOldOnFailure relaunches the previously-installed version when the
// caller asked for a restart, even though the apply itself failed — the
// user should not lose their working install because an update attempt
// didn't land. The original apply error is always what gets returned.
func restartOldOnFailure(ctx context.Context, cfg *locator.Config, opts Options, applyErr error) error {
	log.Printf("[apply] %v", applyErr)
	if opts.Restart {
		if m, mErr := cfg.GetCurrentVersion(); mErr == nil {
			if err := restartApp(ctx, cfg, opts.RestartArgs, m); err != nil {
				log.Printf("[apply] restart of previous version also failed: %v", err)
			}
		}
	}
	return applyErr
}

func report(progress ProgressFunc, s State) {
	if progress == nil {
		return
	}
	defer func() { recover() }()
	progress(s)
}

func restartApp(ctx context.Context, cfg *locator.Config, args []string, m *nuspec.Manifest) error {
	exePath, err := cfg.GetMainExePath()
	if err != nil {
		return err
	}
	return relaunch(ctx, exePath, args)
}

// WaitForPID blocks until pid exits or 60s pass, whichever comes first. It
// is exported so the `start` CLI subcommand can wait for a handed-off PID
// before launching the main executable, the same wait apply itself uses
// before swapping.
func WaitForPID(pid int) {
	waitForPID(pid)
}

// waitForPID polls for up to 60s, matching the reference implementation's
// fixed wait_for_pid_to_exit timeout.
func waitForPID(pid int) {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if !processIsAlive(pid) {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	log.Printf("[apply] gave up waiting for pid %d to exit after 60s", pid)
}

// LocatePackage resolves the package path Apply will use, without applying
// it — exposed so callers can confirm what would happen (e.g. CLI --dry-run
// style tooling, or a progress UI that wants to show the target version
// before committing to the swap).
func LocatePackage(cfg *locator.Config, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("package %s: %w", explicit, err)
		}
		return explicit, nil
	}
	path, err := cfg.LatestLocalPackage()
	if err != nil {
		return "", fmt.Errorf("auto-locate package: %w (provide one explicitly)", velerrors.ErrNotInstalled)
	}
	return path, nil
}
