package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// FileSource reads a release feed and its assets from a local directory.
// Progress is a two-step 50/100 signal since a local copy has no
// meaningful incremental granularity.
type FileSource struct {
	BaseDir string
}

// NewFileSource constructs a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{BaseDir: dir}
}

func (s *FileSource) Clone() Source {
	return &FileSource{BaseDir: s.BaseDir}
}

func (s *FileSource) GetReleaseFeed(_ context.Context, channel string, _ *nuspec.Manifest) (*feed.AssetFeed, error) {
	path := filepath.Join(s.BaseDir, fmt.Sprintf("releases.%s.json", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read release feed %s: %w", path, err)
	}

	var f feed.AssetFeed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse release feed %s: %w", path, err)
	}
	return &f, nil
}

func (s *FileSource) DownloadReleaseEntry(_ context.Context, asset *feed.Asset, localPath string, progress ProgressFunc) error {
	if !strings.HasSuffix(asset.FileName, ".nupkg") {
		return velerrors.ErrInvalidAssetName
	}

	reportProgress(progress, 50)

	src := filepath.Join(s.BaseDir, asset.FileName)
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open release asset %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy release asset: %w", err)
	}

	reportProgress(progress, 100)
	return nil
}
