// Package download drives a Source to fetch a target asset into the
// packages directory and, optionally, sweeps older packages afterward.
package download

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/source"
	"github.com/velopack/velopack/internal/velerrors"
)

// Options controls a single download operation.
type Options struct {
	// PackagesDir is the destination directory; the asset lands at
	// <PackagesDir>/<asset.FileName>.
	PackagesDir string
	// Clean, if true, removes every *.nupkg present in PackagesDir before
	// this download started, once the new download succeeds. Packages
	// created during the download (e.g. by a racing process) are left
	// alone since they weren't in the pre-download snapshot.
	Clean bool
}

// Download fetches asset via src into opts.PackagesDir, reporting progress
// via progress. On success, if opts.Clean is set, every *.nupkg that
// existed in the directory before the download started is removed.
func Download(ctx context.Context, src source.Source, asset *feed.Asset, opts Options, progress source.ProgressFunc) (string, error) {
	if !strings.HasSuffix(asset.FileName, ".nupkg") {
		return "", velerrors.ErrInvalidAssetName
	}

	var before map[string]struct{}
	if opts.Clean {
		before = snapshotPackages(opts.PackagesDir)
	}

	dest := filepath.Join(opts.PackagesDir, asset.FileName)
	if err := src.DownloadReleaseEntry(ctx, asset, dest, progress); err != nil {
		// A failed download aborts before cleanup so prior packages remain
		// available for delta reconstruction or rollback.
		return "", fmt.Errorf("download %s: %w", asset.FileName, err)
	}

	if opts.Clean {
		cleanOldPackages(opts.PackagesDir, before, asset.FileName)
	}

	return dest, nil
}

func snapshotPackages(dir string) map[string]struct{} {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.nupkg"))
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		set[m] = struct{}{}
	}
	return set
}

func cleanOldPackages(dir string, before map[string]struct{}, keepFileName string) {
	keepPath := filepath.Join(dir, keepFileName)
	for path := range before {
		if path == keepPath {
			continue
		}
		_ = velerrors.RetryIOVoid(func() error {
			return removeIfExists(path)
		})
	}
}
