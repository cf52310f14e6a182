// Package progress exposes the update lifecycle (check, download, apply) as
// a small state machine with an HTTP+websocket surface, so a desktop app's
// own UI thread never has to drive feed resolution, delta reconstruction,
// or the platform-specific swap directly.
package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/velopack/velopack/internal/apply"
	"github.com/velopack/velopack/internal/download"
	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/source"
)

// State names a stage in the check/download/apply lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateReady       State = "ready"
	StateApplying    State = "applying"
	StateApplied     State = "applied"
	StateError       State = "error"
)

// Status is the JSON shape broadcast to clients and returned from the
// status endpoint.
type Status struct {
	State          State  `json:"state"`
	CurrentVersion string `json:"currentVersion,omitempty"`
	TargetVersion  string `json:"targetVersion,omitempty"`
	Progress       int    `json:"progress"`
	ReleaseNotes   string `json:"releaseNotes,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Engine serializes check/download/apply against a single installation and
// fans status transitions out to any subscribed websocket clients. One
// Engine corresponds to one running app instance.
type Engine struct {
	cfg     *locator.Config
	src     source.Source
	channel string

	mu     sync.Mutex
	status Status
	info   *feed.UpdateInfo
	pkg    string // path of the reconstructed/downloaded package once ready

	hub *hub
}

// NewEngine builds an Engine rooted at cfg, resolving against src on the
// given channel (empty means the app's own channel, then the platform
// default; see feed.EffectiveChannel).
func NewEngine(cfg *locator.Config, src source.Source, channel string) *Engine {
	return &Engine{
		cfg:     cfg,
		src:     src,
		channel: channel,
		status:  Status{State: StateIdle},
		hub:     newHub(),
	}
}

// Status returns a snapshot of the current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(mutate func(*Status)) Status {
	e.mu.Lock()
	mutate(&e.status)
	s := e.status
	e.mu.Unlock()
	e.hub.broadcast(s)
	return s
}

// CheckForUpdates resolves the configured channel's release feed against
// the installed manifest. A nil UpdateInfo with a nil error means the
// installation is already current.
func (e *Engine) CheckForUpdates(ctx context.Context) (*feed.UpdateInfo, error) {
	e.mu.Lock()
	busy := e.status.State == StateDownloading || e.status.State == StateApplying
	e.mu.Unlock()
	if busy {
		return nil, fmt.Errorf("progress: cannot check while %s", e.status.State)
	}

	e.setStatus(func(s *Status) { *s = Status{State: StateChecking} })

	app, err := e.cfg.GetCurrentVersion()
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return nil, err
	}

	channel := feed.EffectiveChannel(feed.ResolveOptions{ExplicitChannel: e.channel}, app)
	assetFeed, err := e.src.GetReleaseFeed(ctx, channel, app)
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return nil, err
	}

	info, err := feed.Resolve(assetFeed, app, feed.ResolveOptions{ExplicitChannel: e.channel})
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return nil, err
	}

	e.mu.Lock()
	e.info = info
	e.mu.Unlock()

	if info == nil {
		e.setStatus(func(s *Status) { s.State = StateIdle; s.CurrentVersion = app.Version.String() })
		return nil, nil
	}

	e.setStatus(func(s *Status) {
		s.State = StateAvailable
		s.CurrentVersion = app.Version.String()
		s.TargetVersion = info.TargetFullRelease.Version
		s.ReleaseNotes = info.TargetFullRelease.NotesMarkdown
	})
	return info, nil
}

// StartDownload fetches the update found by the last successful
// CheckForUpdates, reconstructing it from a delta chain when one was
// selected, and runs asynchronously: it returns once the download has been
// kicked off, not once it completes. Progress is observable via Status or
// the websocket feed.
func (e *Engine) StartDownload(ctx context.Context) error {
	e.mu.Lock()
	info := e.info
	state := e.status.State
	e.mu.Unlock()

	if info == nil {
		return fmt.Errorf("progress: no update resolved, call CheckForUpdates first")
	}
	if state == StateDownloading || state == StateApplying {
		return fmt.Errorf("progress: download already in progress")
	}

	go e.runDownload(ctx, info)
	return nil
}

func (e *Engine) runDownload(ctx context.Context, info *feed.UpdateInfo) {
	e.setStatus(func(s *Status) { s.State = StateDownloading; s.Progress = 0; s.Error = "" })

	packagesDir, err := e.cfg.GetPackagesDir()
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return
	}

	progressFn := func(percent int) {
		e.setStatus(func(s *Status) { s.Progress = percent })
	}

	pkgPath, err := download.Fetch(ctx, e.src, info, packagesDir, progressFn)
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return
	}

	e.mu.Lock()
	e.pkg = pkgPath
	e.mu.Unlock()

	e.setStatus(func(s *Status) { s.State = StateReady; s.Progress = 100 })
}

// Apply swaps in the package fetched by StartDownload. opts.PackagePath is
// overridden with the engine's own downloaded path unless already set.
func (e *Engine) Apply(ctx context.Context, opts apply.Options) (*apply.Result, error) {
	e.mu.Lock()
	if opts.PackagePath == "" {
		opts.PackagePath = e.pkg
	}
	e.mu.Unlock()

	e.setStatus(func(s *Status) { s.State = StateApplying; s.Error = "" })

	result, err := apply.Apply(ctx, e.cfg, opts, func(st apply.State) {
		e.setStatus(func(s *Status) {
			if st == apply.StateSwapFailed {
				s.Error = "swap failed"
			}
		})
	})
	if err != nil {
		e.setStatus(func(s *Status) { s.State = StateError; s.Error = err.Error() })
		return nil, err
	}

	e.setStatus(func(s *Status) { s.State = StateApplied; s.Progress = 100 })
	return result, nil
}

// Subscribe registers a websocket-facing channel; see hub.go.
func (e *Engine) subscribe() *subscriber {
	return e.hub.subscribe(e.Status())
}

func (e *Engine) unsubscribe(sub *subscriber) {
	e.hub.unsubscribe(sub)
}
