package source

import (
	"context"
	"strings"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
)

// AutoSource dispatches to HttpSource or FileSource based on the scheme of
// the configured path. It is a dispatcher, not a subclass — its only state
// is the delegate it resolves to once, at construction.
type AutoSource struct {
	delegate Source
}

// NewAutoSource inspects path and returns a Source backed by HttpSource (for
// http/https schemes) or FileSource (anything else, treated as a directory).
func NewAutoSource(path string) *AutoSource {
	var delegate Source
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		delegate = NewHttpSource(path)
	} else {
		delegate = NewFileSource(path)
	}
	return &AutoSource{delegate: delegate}
}

func (s *AutoSource) Clone() Source {
	return &AutoSource{delegate: s.delegate.Clone()}
}

func (s *AutoSource) GetReleaseFeed(ctx context.Context, channel string, app *nuspec.Manifest) (*feed.AssetFeed, error) {
	return s.delegate.GetReleaseFeed(ctx, channel, app)
}

func (s *AutoSource) DownloadReleaseEntry(ctx context.Context, asset *feed.Asset, localPath string, progress ProgressFunc) error {
	return s.delegate.DownloadReleaseEntry(ctx, asset, localPath, progress)
}
