// Package source abstracts "give me the release feed for channel X" and
// "download this asset to path P" behind a single small capability,
// implemented by a local directory, an HTTP(S) endpoint, an auto-dispatcher
// between the two, and a disabled no-op.
package source

import (
	"context"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
)

// ProgressFunc receives a monotonically non-decreasing percentage in
// [0, 100]. Implementations may send 0 at the start and 100 at the end;
// they never send past completion. The caller may be absent (nil sink is
// always safe to pass).
type ProgressFunc func(percent int)

// Source is the uniform capability every asset provider implements. It is
// a value-semantics capability: Clone is cheap and the result is safe to
// share and use concurrently from multiple goroutines.
type Source interface {
	// GetReleaseFeed fetches and parses releases.<channel>.json for the
	// given channel, in the context of appManifest (used for the
	// localVersion/id query parameters on HTTP sources).
	GetReleaseFeed(ctx context.Context, channel string, appManifest *nuspec.Manifest) (*feed.AssetFeed, error)

	// DownloadReleaseEntry downloads asset to localPath, reporting
	// progress via progress if non-nil.
	DownloadReleaseEntry(ctx context.Context, asset *feed.Asset, localPath string, progress ProgressFunc) error

	// Clone returns an independent value-semantics copy of this source.
	Clone() Source
}

func reportProgress(progress ProgressFunc, percent int) {
	if progress == nil {
		return
	}
	// Failure to deliver is the caller's problem, not ours: a progress sink
	// is fire-and-forget by contract.
	defer func() { _ = recover() }()
	progress(percent)
}
