// Package locator discovers the on-disk installation layout (§3 of the
// update lifecycle spec) from the path of the currently running executable.
// It never mutates the disk, except that GetPackagesDir creates the packages
// directory when it is missing.
package locator

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/velopack/velopack/internal/bundle"
	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// Config is the immutable, once-derived description of an installation's
// on-disk layout.
type Config struct {
	RootAppDir       string
	UpdateExePath    string
	PackagesDir      string
	ManifestPath     string
	CurrentBinaryDir string
	IsPortable       bool
	// Dead is set when root carries the post-uninstall ".dead" sentinel.
	// Locate still succeeds in this case (unlike a root that was never
	// installed at all) so a second uninstall call can recognize "already
	// uninstalled" and no-op instead of failing with ErrNotInstalled.
	Dead bool
}

// portableMarker is the file whose presence alongside the running binary
// distinguishes a portable install (no system-wide root) from one laid out
// under the standard <root>/current + <root>/packages shape.
const portableMarker = ".portable"

// Locate derives a Config from the path of the currently running
// executable. exePath is normally os.Executable(); it is accepted as a
// parameter so tests (and the uninstaller, which runs from Update.exe, not
// from inside current/) can supply it directly.
func Locate(exePath string) (*Config, error) {
	resolved, err := filepath.EvalSymlinks(exePath)
	if err != nil {
		resolved = exePath
	}
	exeDir := filepath.Dir(resolved)

	if _, err := os.Stat(filepath.Join(exeDir, portableMarker)); err == nil {
		return locatePortable(exeDir)
	}

	root, currentDir, ok := findRoot(exeDir)
	if !ok {
		return nil, velerrors.ErrNotInstalled
	}

	if rootMissingOrEmpty(root) {
		return nil, velerrors.ErrNotInstalled
	}

	cfg := &Config{
		RootAppDir:       root,
		UpdateExePath:    updateExePath(root),
		PackagesDir:      filepath.Join(root, "packages"),
		CurrentBinaryDir: currentDir,
		IsPortable:       false,
		Dead:             rootIsDead(root),
	}
	cfg.ManifestPath = findManifestPath(currentDir)

	return cfg, nil
}

// locatePortable treats exeDir itself as both the root and the current
// binary directory — there is no separate packages/current split, matching
// a self-contained portable distribution.
func locatePortable(exeDir string) (*Config, error) {
	cfg := &Config{
		RootAppDir:       exeDir,
		UpdateExePath:    updateExePath(exeDir),
		PackagesDir:      filepath.Join(exeDir, "packages"),
		CurrentBinaryDir: exeDir,
		IsPortable:       true,
		Dead:             rootIsDead(exeDir),
	}
	cfg.ManifestPath = findManifestPath(exeDir)
	return cfg, nil
}

// findRoot derives root and current directory from the running binary's
// directory: on Windows that directory must be named current and its parent
// is root; on macOS it walks up to the enclosing .app bundle, whose parent is
// root; on Linux the binary's directory is both root and current.
func findRoot(exeDir string) (root, currentDir string, ok bool) {
	switch runtime.GOOS {
	case "windows":
		if filepath.Base(exeDir) == "current" {
			return filepath.Dir(exeDir), exeDir, true
		}
	case "darwin":
		if appDir := findAppBundle(exeDir); appDir != "" {
			return filepath.Dir(appDir), appDir, true
		}
	case "linux":
		// The "installation" is a single AppImage file; its directory is
		// both root and current since there is no extracted current/.
		return exeDir, exeDir, true
	}
	return "", "", false
}

func findAppBundle(dir string) string {
	for {
		if filepath.Ext(dir) == ".app" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func updateExePath(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Update.exe")
	}
	return filepath.Join(root, "UpdateNix")
}

func findManifestPath(currentDir string) string {
	entries, err := os.ReadDir(currentDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".nuspec" {
			return filepath.Join(currentDir, e.Name())
		}
	}
	return "" // no manifest present; GetCurrentVersion will fail with ErrNotInstalled
}

// rootMissingOrEmpty reports whether root does not exist or has no entries
// at all — a root in this state was never installed, as distinct from one
// that was installed and then uninstalled (see rootIsDead).
func rootMissingOrEmpty(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return true
	}
	return len(entries) == 0
}

// rootIsDead reports whether root carries the post-uninstall ".dead"
// sentinel. Unlike rootMissingOrEmpty this is not a locate failure: the
// caller gets back a Config with Dead set so operations like uninstall can
// recognize "already done" instead of erroring.
func rootIsDead(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".dead"))
	return err == nil
}

// GetCurrentVersion reads and parses the manifest in CurrentBinaryDir.
func (c *Config) GetCurrentVersion() (*nuspec.Manifest, error) {
	f, err := os.Open(c.ManifestPath)
	if err != nil {
		return nil, velerrors.ErrNotInstalled
	}
	defer f.Close()
	return nuspec.Parse(f)
}

// GetManifestID is a convenience wrapper returning just the installed
// package id.
func (c *Config) GetManifestID() (string, error) {
	m, err := c.GetCurrentVersion()
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// GetManifestTitle is a convenience wrapper returning just the installed
// package title.
func (c *Config) GetManifestTitle() (string, error) {
	m, err := c.GetCurrentVersion()
	if err != nil {
		return "", err
	}
	return m.Title, nil
}

// GetPackagesDir returns the directory packages are downloaded to and read
// from, creating it if it does not yet exist.
func (c *Config) GetPackagesDir() (string, error) {
	if err := os.MkdirAll(c.PackagesDir, 0o755); err != nil {
		return "", err
	}
	return c.PackagesDir, nil
}

// GetMainExePath resolves the currently installed manifest's mainExe
// relative to CurrentBinaryDir.
func (c *Config) GetMainExePath() (string, error) {
	m, err := c.GetCurrentVersion()
	if err != nil {
		return "", err
	}
	if m.MainExe == "" {
		return "", velerrors.NewMissingNuspecProperty("mainExe")
	}
	return filepath.Join(c.CurrentBinaryDir, m.MainExe), nil
}

// LatestLocalPackage globs PackagesDir for *.nupkg and returns the path to
// the one with the highest manifest version, mirroring the reference
// implementation's auto_locate_package used when apply is invoked without
// an explicit --package.
func (c *Config) LatestLocalPackage() (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.PackagesDir, "*.nupkg"))
	if err != nil || len(matches) == 0 {
		return "", velerrors.ErrNotInstalled
	}

	var best string
	var bestManifest *nuspec.Manifest
	for _, path := range matches {
		b, err := bundle.Open(path)
		if err != nil {
			continue
		}
		m, err := b.ReadManifest()
		b.Close()
		if err != nil {
			continue
		}
		if bestManifest == nil || m.Version.GreaterThan(bestManifest.Version) {
			bestManifest = m
			best = path
		}
	}

	if best == "" {
		return "", velerrors.ErrNotInstalled
	}
	return best, nil
}
