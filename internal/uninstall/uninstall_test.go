package uninstall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/nuspec"
)

func TestRemoveDirButNotSelfClearsContentsKeepsDeadSentinel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".dead"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := removeDirButNotSelf(dir); err != nil {
		t.Fatalf("removeDirButNotSelf: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != ".dead" {
		t.Fatalf("expected only .dead to remain, got %v", entries)
	}
}

func TestRemoveDirButNotSelfToleratesMissingDir(t *testing.T) {
	if err := removeDirButNotSelf(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("expected nil error for missing dir, got %v", err)
	}
}

func TestUninstallThenUninstallIsIdempotent(t *testing.T) {
	root := t.TempDir()
	current := filepath.Join(root, "current")
	if err := os.MkdirAll(current, 0o755); err != nil {
		t.Fatal(err)
	}
	nuspecXML := `<?xml version="1.0"?><package><metadata>
		<id>MyApp</id><version>1.2.3</version><mainExe>MyApp.exe</mainExe>
	</metadata></package>`
	manifestPath := filepath.Join(current, "MyApp.nuspec")
	if err := os.WriteFile(manifestPath, []byte(nuspecXML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &locator.Config{
		RootAppDir:       root,
		UpdateExePath:    filepath.Join(root, "UpdateNix"),
		PackagesDir:      filepath.Join(root, "packages"),
		ManifestPath:     manifestPath,
		CurrentBinaryDir: current,
	}

	result, err := Uninstall(cfg, Options{})
	if err != nil {
		t.Fatalf("first Uninstall: %v", err)
	}
	if result.AlreadyUninstalled {
		t.Fatal("first Uninstall should not report AlreadyUninstalled")
	}
	if _, err := os.Stat(filepath.Join(root, ".dead")); err != nil {
		t.Fatalf("expected .dead sentinel after first uninstall: %v", err)
	}

	deadCfg := &locator.Config{RootAppDir: root, Dead: true}
	result, err = Uninstall(deadCfg, Options{})
	if err != nil {
		t.Fatalf("second Uninstall: %v", err)
	}
	if !result.AlreadyUninstalled {
		t.Fatal("second Uninstall against a dead root should report AlreadyUninstalled, not repeat work")
	}
}

func TestNuspecTitleOrIDFallsBackToID(t *testing.T) {
	got := nuspecTitleOrID(&nuspec.Manifest{ID: "MyApp"})
	if got != "MyApp" {
		t.Fatalf("got %q, want MyApp", got)
	}

	got = nuspecTitleOrID(&nuspec.Manifest{ID: "MyApp", Title: "My App"})
	if got != "My App" {
		t.Fatalf("got %q, want My App", got)
	}
}
