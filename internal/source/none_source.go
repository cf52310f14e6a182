package source

import (
	"context"
	"fmt"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
)

// NoneSource always errors. It exists so an embedding app can disable
// remote update checks without special-casing a nil Source everywhere.
type NoneSource struct{}

func (NoneSource) Clone() Source { return NoneSource{} }

func (NoneSource) GetReleaseFeed(context.Context, string, *nuspec.Manifest) (*feed.AssetFeed, error) {
	return nil, fmt.Errorf("source: remote update checks are disabled")
}

func (NoneSource) DownloadReleaseEntry(context.Context, *feed.Asset, string, ProgressFunc) error {
	return fmt.Errorf("source: remote update checks are disabled")
}
