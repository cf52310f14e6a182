package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/source"
)

// memorySource serves fixed byte payloads keyed by asset filename, standing
// in for an HTTP or file source without touching either.
type memorySource struct {
	payloads map[string][]byte
}

func (m *memorySource) Clone() source.Source { return m }

func (m *memorySource) GetReleaseFeed(context.Context, string, *nuspec.Manifest) (*feed.AssetFeed, error) {
	return nil, nil
}

func (m *memorySource) DownloadReleaseEntry(_ context.Context, asset *feed.Asset, localPath string, progress source.ProgressFunc) error {
	data, ok := m.payloads[asset.FileName]
	if !ok {
		return os.ErrNotExist
	}
	if progress != nil {
		progress(100)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFetchDownloadsFullReleaseWhenNoDeltaChain(t *testing.T) {
	dir := t.TempDir()
	full := []byte("full-package-bytes")
	src := &memorySource{payloads: map[string][]byte{"App-2.0.0-win-Full.nupkg": full}}

	info := &feed.UpdateInfo{
		TargetFullRelease: feed.Asset{FileName: "App-2.0.0-win-Full.nupkg", Version: "2.0.0"},
	}

	path, err := Fetch(context.Background(), src, info, dir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, full) {
		t.Fatal("fetched content mismatch")
	}
}

func TestFetchReconstructsTargetFromDeltaChain(t *testing.T) {
	dir := t.TempDir()

	base := bytes.Repeat([]byte("base-bytes-"), 100)
	target := bytes.Repeat([]byte("target-bytes-"), 110)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(base))
	if err != nil {
		t.Fatal(err)
	}
	patch := enc.EncodeAll(target, nil)
	enc.Close()

	src := &memorySource{payloads: map[string][]byte{
		"App-1.0.0-win-Full.nupkg":  base,
		"App-2.0.0-win-Delta.nupkg": patch,
	}}

	info := &feed.UpdateInfo{
		TargetFullRelease: feed.Asset{FileName: "App-2.0.0-win-Full.nupkg", Version: "2.0.0", SHA256: sha256Hex(target)},
		BaseRelease:       &feed.Asset{FileName: "App-1.0.0-win-Full.nupkg", Version: "1.0.0"},
		DeltasToTarget:    []feed.Asset{{FileName: "App-2.0.0-win-Delta.nupkg", Version: "2.0.0"}},
	}

	var progressed []int
	path, err := Fetch(context.Background(), src, info, dir, func(p int) { progressed = append(progressed, p) })
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Base(path) != "App-2.0.0-win-Full.nupkg" {
		t.Fatalf("unexpected output path %s", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, target) {
		t.Fatal("reconstructed content mismatch")
	}
	if len(progressed) == 0 || progressed[len(progressed)-1] != 100 {
		t.Fatalf("expected progress to finish at 100, got %v", progressed)
	}
}

func TestFetchFallsBackToFullDownloadOnChecksumMismatch(t *testing.T) {
	dir := t.TempDir()

	base := []byte("base")
	target := []byte("target")
	full := []byte("full-package-bytes-served-as-fallback")

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(base))
	if err != nil {
		t.Fatal(err)
	}
	patch := enc.EncodeAll(target, nil)
	enc.Close()

	src := &memorySource{payloads: map[string][]byte{
		"App-1.0.0-win-Full.nupkg":  base,
		"App-2.0.0-win-Delta.nupkg": patch,
		"App-2.0.0-win-Full.nupkg":  full,
	}}

	info := &feed.UpdateInfo{
		TargetFullRelease: feed.Asset{FileName: "App-2.0.0-win-Full.nupkg", Version: "2.0.0", SHA256: "not-the-right-hash"},
		BaseRelease:       &feed.Asset{FileName: "App-1.0.0-win-Full.nupkg", Version: "1.0.0"},
		DeltasToTarget:    []feed.Asset{{FileName: "App-2.0.0-win-Delta.nupkg", Version: "2.0.0"}},
	}

	path, err := Fetch(context.Background(), src, info, dir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, full) {
		t.Fatal("expected the fallback full download's content, not the reconstructed (and unverifiable) delta result")
	}
}

func TestFetchFailsWhenFallbackFullDownloadAlsoUnavailable(t *testing.T) {
	dir := t.TempDir()

	base := []byte("base")
	target := []byte("target")

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(base))
	if err != nil {
		t.Fatal(err)
	}
	patch := enc.EncodeAll(target, nil)
	enc.Close()

	src := &memorySource{payloads: map[string][]byte{
		"App-1.0.0-win-Full.nupkg":  base,
		"App-2.0.0-win-Delta.nupkg": patch,
	}}

	info := &feed.UpdateInfo{
		TargetFullRelease: feed.Asset{FileName: "App-2.0.0-win-Full.nupkg", Version: "2.0.0", SHA256: "not-the-right-hash"},
		BaseRelease:       &feed.Asset{FileName: "App-1.0.0-win-Full.nupkg", Version: "1.0.0"},
		DeltasToTarget:    []feed.Asset{{FileName: "App-2.0.0-win-Delta.nupkg", Version: "2.0.0"}},
	}

	if _, err := Fetch(context.Background(), src, info, dir, nil); err == nil {
		t.Fatal("expected an error once both the delta chain and the fallback full download fail")
	}
}
