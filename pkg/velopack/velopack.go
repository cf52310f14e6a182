// Package velopack is the public API surface an embedding application
// imports: UpdateManager wraps the locator, source, feed resolver,
// downloader, and apply engine behind the handful of calls an app actually
// needs (check, download, apply) without exposing any internal package.
package velopack

import (
	"context"
	"fmt"
	"os"

	"github.com/velopack/velopack/internal/apply"
	"github.com/velopack/velopack/internal/download"
	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/lifecycle"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/source"
	"github.com/velopack/velopack/internal/uninstall"
)

// Options configures an UpdateManager beyond its feed location.
type Options struct {
	// ExplicitChannel overrides the installed manifest's channel.
	ExplicitChannel string
	// AllowVersionDowngrade permits resolving to an older release.
	AllowVersionDowngrade bool
	// MaximumDeltasBeforeFallback bounds the delta chain length before
	// falling back to a full download; zero uses the resolver's default.
	MaximumDeltasBeforeFallback int
}

// UpdateManager is a thin facade over the locator, source, feed resolver,
// downloader, and apply engine — the one entry point an embedding app
// needs. It owns a clonable Source and the last resolved UpdateInfo, the
// same ownership split the reference implementation documents.
type UpdateManager struct {
	cfg  *locator.Config
	src  source.Source
	opts Options
	info *feed.UpdateInfo
}

// New locates the current installation from os.Executable and builds an
// UpdateManager that resolves updates from urlOrPath (http(s):// URL, or a
// local directory path).
func New(urlOrPath string, opts Options) (*UpdateManager, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("velopack: resolve current executable: %w", err)
	}
	cfg, err := locator.Locate(exePath)
	if err != nil {
		return nil, err
	}
	return NewWithSource(cfg, source.NewAutoSource(urlOrPath), opts), nil
}

// NewWithSource builds an UpdateManager from an already-resolved Config and
// Source, bypassing auto-locate/auto-dispatch — the shape tests and
// multi-instance hosts want.
func NewWithSource(cfg *locator.Config, src source.Source, opts Options) *UpdateManager {
	return &UpdateManager{cfg: cfg, src: src.Clone(), opts: opts}
}

// CurrentVersion returns the manifest of the installed application.
func (m *UpdateManager) CurrentVersion() (*nuspec.Manifest, error) {
	return m.cfg.GetCurrentVersion()
}

// CheckForUpdates resolves the release feed against the installed manifest.
// A nil UpdateInfo with a nil error means the installation is current.
func (m *UpdateManager) CheckForUpdates(ctx context.Context) (*feed.UpdateInfo, error) {
	app, err := m.cfg.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	assetFeed, err := m.src.GetReleaseFeed(ctx, feed.EffectiveChannel(m.resolveOptions(), app), app)
	if err != nil {
		return nil, err
	}

	info, err := feed.Resolve(assetFeed, app, m.resolveOptions())
	if err != nil {
		return nil, err
	}
	m.info = info
	return info, nil
}

func (m *UpdateManager) resolveOptions() feed.ResolveOptions {
	return feed.ResolveOptions{
		ExplicitChannel:             m.opts.ExplicitChannel,
		AllowVersionDowngrade:       m.opts.AllowVersionDowngrade,
		MaximumDeltasBeforeFallback: m.opts.MaximumDeltasBeforeFallback,
	}
}

// DownloadUpdates fetches info (as resolved by CheckForUpdates, or an
// explicit one the caller constructed), reconstructing it from a delta
// chain when one was selected, and returns the path to the ready-to-apply
// package.
func (m *UpdateManager) DownloadUpdates(ctx context.Context, info *feed.UpdateInfo, progress func(percent int)) (string, error) {
	if info == nil {
		return "", fmt.Errorf("velopack: no update to download")
	}
	packagesDir, err := m.cfg.GetPackagesDir()
	if err != nil {
		return "", err
	}
	return download.Fetch(ctx, m.src, info, packagesDir, progress)
}

// ApplyUpdatesAndRestart applies packagePath (as produced by
// DownloadUpdates) and restarts the application with restartArgs. It
// returns once the swap has completed; the restart itself runs in a
// detached child process.
func (m *UpdateManager) ApplyUpdatesAndRestart(ctx context.Context, packagePath string, restartArgs []string) error {
	_, err := apply.Apply(ctx, m.cfg, apply.Options{
		PackagePath: packagePath,
		Restart:     true,
		RestartArgs: restartArgs,
		RunHooks:    true,
	}, nil)
	return err
}

// WaitExitThenApplyUpdates waits for waitPID to exit (normally the caller's
// own process, handed off to a detached updater invocation) before running
// the same apply-and-optionally-restart sequence as ApplyUpdatesAndRestart.
func (m *UpdateManager) WaitExitThenApplyUpdates(ctx context.Context, waitPID int, packagePath string, restart bool, restartArgs []string) error {
	_, err := apply.Apply(ctx, m.cfg, apply.Options{
		PackagePath: packagePath,
		WaitPID:     waitPID,
		Restart:     restart,
		RestartArgs: restartArgs,
		RunHooks:    true,
	}, nil)
	return err
}

// Uninstall removes the installation: stops the running app, runs the
// uninstall hook, clears shortcuts and registry/.desktop integration,
// wipes the install directory (leaving the .dead sentinel), and schedules
// removal of the updater binary itself.
func (m *UpdateManager) Uninstall(ctx context.Context) error {
	_, err := uninstall.Uninstall(m.cfg, uninstall.Options{DeleteSelf: true, RunHook: true})
	return err
}

// Run dispatches os.Args to the appropriate lifecycle hook handler and
// exits the process if one matched. Every embedding application's main
// function must call this before any GUI/window initialization.
func Run(version string, handlers lifecycle.HookHandlers) {
	lifecycle.Run(version, handlers)
}
