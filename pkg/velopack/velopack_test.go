package velopack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/velopack/velopack/internal/feed"
	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/source"
)

const testManifest = `<?xml version="1.0"?>
<package><metadata>
<id>MyApp</id>
<version>1.0.0</version>
<mainExe>MyApp.exe</mainExe>
</metadata></package>`

func newTestConfig(t *testing.T) *locator.Config {
	t.Helper()
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "MyApp.nuspec")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return &locator.Config{
		RootAppDir:       dir,
		PackagesDir:      filepath.Join(dir, "packages"),
		ManifestPath:     manifestPath,
		CurrentBinaryDir: dir,
	}
}

type stubSource struct {
	assetFeed *feed.AssetFeed
}

func (s *stubSource) Clone() source.Source { return s }

func (s *stubSource) GetReleaseFeed(context.Context, string, *nuspec.Manifest) (*feed.AssetFeed, error) {
	return s.assetFeed, nil
}

func (s *stubSource) DownloadReleaseEntry(_ context.Context, _ *feed.Asset, localPath string, _ source.ProgressFunc) error {
	return os.WriteFile(localPath, []byte("package-bytes"), 0o644)
}

func TestCheckForUpdatesSelectsHighestFullRelease(t *testing.T) {
	cfg := newTestConfig(t)
	src := &stubSource{assetFeed: &feed.AssetFeed{Assets: []feed.Asset{
		{PackageID: "MyApp", Version: "1.0.0", Type: "Full", FileName: "MyApp-1.0.0-full.nupkg"},
		{PackageID: "MyApp", Version: "1.5.0", Type: "Full", FileName: "MyApp-1.5.0-full.nupkg"},
	}}}

	m := NewWithSource(cfg, src, Options{})
	info, err := m.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates: %v", err)
	}
	if info == nil || info.TargetFullRelease.Version != "1.5.0" {
		t.Fatalf("got %+v, want target 1.5.0", info)
	}
}

func TestDownloadUpdatesFetchesTargetIntoPackagesDir(t *testing.T) {
	cfg := newTestConfig(t)
	src := &stubSource{}
	m := NewWithSource(cfg, src, Options{})

	info := &feed.UpdateInfo{TargetFullRelease: feed.Asset{FileName: "MyApp-1.5.0-full.nupkg", Version: "1.5.0"}}
	path, err := m.DownloadUpdates(context.Background(), info, nil)
	if err != nil {
		t.Fatalf("DownloadUpdates: %v", err)
	}
	if filepath.Dir(path) != cfg.PackagesDir {
		t.Fatalf("downloaded to %s, want under %s", path, cfg.PackagesDir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected downloaded file to exist: %v", err)
	}
}

func TestDownloadUpdatesRejectsNilInfo(t *testing.T) {
	cfg := newTestConfig(t)
	m := NewWithSource(cfg, &stubSource{}, Options{})
	if _, err := m.DownloadUpdates(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil update info")
	}
}
