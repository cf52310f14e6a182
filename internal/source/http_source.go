package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// readChunkSize is the read buffer used while streaming an asset download.
// Progress is floored to 5% increments and reported only when it rises, so
// a download reports at most the 21 values 0, 5, ..., 100 (plus the closing
// 100); a read that spans several increments skips the ones in between.
const readChunkSize = 2 * 1024 * 1024

// HttpSource fetches release feeds and assets over HTTP(S).
type HttpSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHttpSource constructs an HttpSource against baseURL with a client
// carrying a generous download timeout — asset downloads can be large and
// the network read has no explicit per-chunk timeout of its own.
func NewHttpSource(baseURL string) *HttpSource {
	return &HttpSource{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

func (s *HttpSource) Clone() Source {
	return &HttpSource{BaseURL: s.BaseURL, Client: s.Client}
}

func (s *HttpSource) GetReleaseFeed(ctx context.Context, channel string, app *nuspec.Manifest) (*feed.AssetFeed, error) {
	feedURL := fmt.Sprintf("%s/releases.%s.json", s.BaseURL, channel)

	q := url.Values{}
	if app != nil {
		q.Set("localVersion", app.Version.String())
		q.Set("id", app.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build release feed request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed returned HTTP %d", resp.StatusCode)
	}

	var f feed.AssetFeed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode release feed: %w", err)
	}
	return &f, nil
}

func (s *HttpSource) DownloadReleaseEntry(ctx context.Context, asset *feed.Asset, localPath string, progress ProgressFunc) error {
	if !strings.HasSuffix(asset.FileName, ".nupkg") {
		return velerrors.ErrInvalidAssetName
	}

	assetURL := fmt.Sprintf("%s/%s", s.BaseURL, asset.FileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return fmt.Errorf("build asset download request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asset download returned HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	tmp := localPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		out.Close()
		os.Remove(tmp)
	}()

	total := resp.ContentLength
	hasher := sha256.New()
	multi := io.MultiWriter(out, hasher)

	var downloaded int64
	lastReported := -1
	buf := make([]byte, readChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := multi.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write asset: %w", werr)
			}
			downloaded += int64(n)
			if total > 0 {
				pct := int(downloaded * 100 / total)
				pct -= pct % 5
				if pct > lastReported {
					lastReported = pct
					reportProgress(progress, pct)
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("read asset body: %w", readErr)
		}
	}

	if total > 0 && downloaded < total {
		return fmt.Errorf("asset download incomplete: got %d of %d bytes", downloaded, total)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if asset.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, asset.SHA256) {
			return fmt.Errorf("asset checksum mismatch: expected %s, got %s", asset.SHA256, got)
		}
	}

	if err := os.Rename(tmp, localPath); err != nil {
		return fmt.Errorf("rename downloaded asset into place: %w", err)
	}

	reportProgress(progress, 100)
	return nil
}
