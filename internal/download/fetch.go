package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/velopack/velopack/internal/delta"
	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/source"
	"github.com/velopack/velopack/internal/velerrors"
)

// Fetch obtains a ready-to-apply .nupkg for info.TargetFullRelease: either a
// direct download of the full package, or a download of the base release
// plus its delta chain followed by reconstruction, whichever the resolver
// selected. On the full-download path (including the fallback after a failed
// delta verification) progress comes from the source, as in a plain
// Download; on the delta path it is reported after each delta download,
// rising to 80, and as 100 once the chain is reconstructed.
func Fetch(ctx context.Context, src source.Source, info *feed.UpdateInfo, packagesDir string, progress source.ProgressFunc) (string, error) {
	if len(info.DeltasToTarget) == 0 || info.BaseRelease == nil {
		return Download(ctx, src, &info.TargetFullRelease, Options{PackagesDir: packagesDir, Clean: true}, progress)
	}

	log.Printf("[download] reconstructing %s from base %s + %d delta(s)",
		info.TargetFullRelease.Version, info.BaseRelease.Version, len(info.DeltasToTarget))

	basePath, err := Download(ctx, src, info.BaseRelease, Options{PackagesDir: packagesDir}, nil)
	if err != nil {
		return "", fmt.Errorf("download base release: %w", err)
	}

	patchPaths := make([]string, 0, len(info.DeltasToTarget))
	for i, d := range info.DeltasToTarget {
		asset := d
		patchPath, err := Download(ctx, src, &asset, Options{PackagesDir: packagesDir}, nil)
		if err != nil {
			return "", fmt.Errorf("download delta %s: %w", asset.FileName, err)
		}
		patchPaths = append(patchPaths, patchPath)
		reportProgress(progress, 10+int(float64(i+1)/float64(len(info.DeltasToTarget))*70))
	}

	outputPath := filepath.Join(packagesDir, info.TargetFullRelease.FileName)
	if err := delta.ApplyChain(basePath, patchPaths, info.TargetFullRelease.SHA256, outputPath); err != nil {
		if errors.Is(err, velerrors.ErrDeltaVerificationFailed) {
			log.Printf("[download] delta chain for %s failed verification, falling back to full download: %v",
				info.TargetFullRelease.FileName, err)
			return Download(ctx, src, &info.TargetFullRelease, Options{PackagesDir: packagesDir, Clean: true}, progress)
		}
		return "", fmt.Errorf("reconstruct %s from delta chain: %w", info.TargetFullRelease.FileName, err)
	}
	reportProgress(progress, 100)
	return outputPath, nil
}

func reportProgress(progress source.ProgressFunc, percent int) {
	if progress != nil {
		progress(percent)
	}
}
