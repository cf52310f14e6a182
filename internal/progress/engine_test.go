package progress

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

const testNuspec = `<?xml version="1.0"?>
<package><metadata>
<id>MyApp</id>
<version>1.0.0</version>
<title>My App</title>
<mainExe>MyApp.exe</mainExe>
</metadata></package>`

func newTestConfig(t *testing.T) *locator.Config {
	t.Helper()
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "MyApp.nuspec")
	if err := os.WriteFile(manifestPath, []byte(testNuspec), 0o644); err != nil {
		t.Fatal(err)
	}
	return &locator.Config{
		RootAppDir:       dir,
		PackagesDir:      filepath.Join(dir, "packages"),
		ManifestPath:     manifestPath,
		CurrentBinaryDir: dir,
	}
}

func TestCheckForUpdatesReportsNoneWhenCurrent(t *testing.T) {
	cfg := newTestConfig(t)
	src := &stubSource{assetFeed: &feed.AssetFeed{Assets: []feed.Asset{
		{PackageID: "MyApp", Version: "1.0.0", Type: "Full", FileName: "MyApp-1.0.0-full.nupkg"},
	}}}

	e := NewEngine(cfg, src, "")
	info, err := e.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no update, got %+v", info)
	}
	if got := e.Status().State; got != StateIdle {
		t.Fatalf("status = %s, want idle", got)
	}
}

func TestCheckForUpdatesReportsAvailableUpdate(t *testing.T) {
	cfg := newTestConfig(t)
	src := &stubSource{assetFeed: &feed.AssetFeed{Assets: []feed.Asset{
		{PackageID: "MyApp", Version: "1.0.0", Type: "Full", FileName: "MyApp-1.0.0-full.nupkg"},
		{PackageID: "MyApp", Version: "2.0.0", Type: "Full", FileName: "MyApp-2.0.0-full.nupkg", NotesMarkdown: "fixes"},
	}}}

	e := NewEngine(cfg, src, "")
	info, err := e.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates: %v", err)
	}
	if info == nil {
		t.Fatal("expected an available update")
	}
	if info.TargetFullRelease.Version != "2.0.0" {
		t.Fatalf("target version = %s, want 2.0.0", info.TargetFullRelease.Version)
	}

	st := e.Status()
	if st.State != StateAvailable || st.TargetVersion != "2.0.0" || st.ReleaseNotes != "fixes" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHubBroadcastDeliversLatestStatusOnly(t *testing.T) {
	h := newHub()
	sub := h.subscribe(Status{State: StateIdle})

	h.broadcast(Status{State: StateChecking})
	h.broadcast(Status{State: StateAvailable})

	got := <-sub.ch
	if got.State != StateAvailable {
		t.Fatalf("got %s, want the most recent broadcast (available)", got.State)
	}
}

func TestHubUnsubscribeStopsFurtherDelivery(t *testing.T) {
	h := newHub()
	sub := h.subscribe(Status{State: StateIdle})
	<-sub.ch // drain initial

	h.unsubscribe(sub)
	h.broadcast(Status{State: StateChecking})

	select {
	case <-sub.ch:
		t.Fatal("unsubscribed subscriber should not receive further broadcasts")
	default:
	}
}

// stubSource implements source.Source against an in-memory feed only; any
// download just materializes an empty placeholder file at localPath.
type stubSource struct {
	assetFeed *feed.AssetFeed
}

func (s *stubSource) Clone() source.Source { return s }

func (s *stubSource) GetReleaseFeed(_ context.Context, _ string, _ *nuspec.Manifest) (*feed.AssetFeed, error) {
	return s.assetFeed, nil
}

func (s *stubSource) DownloadReleaseEntry(_ context.Context, _ *feed.Asset, localPath string, _ source.ProgressFunc) error {
	return os.WriteFile(localPath, []byte("x"), 0o644)
}
