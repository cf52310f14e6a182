// Package bundle provides a read-only view over a Velopack .nupkg — a
// standard zip archive carrying exactly one .nuspec manifest plus the
// application payload under a lib/ prefix.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/velopack/velopack/internal/nuspec"
	"github.com/velopack/velopack/internal/velerrors"
)

// copyBufferSize matches the 64 KB buffer the reference extractor uses —
// a good balance between syscall count and memory for both large and
// small payload files.
const copyBufferSize = 64 * 1024

// ProgressFunc is called after each zip entry is extracted, with the
// number of entries done so far and the total entry count.
type ProgressFunc func(done, total int)

// Bundle is a handle to a zip file, opened from disk. Dropping it (Close)
// closes the underlying file; repeated lookups by predicate are cheap
// since the central directory is parsed once at Open.
type Bundle struct {
	path string
	file *os.File
	zr   *zip.Reader
}

// Open loads a bundle from a path on disk, retrying transient I/O errors.
func Open(path string) (*Bundle, error) {
	f, err := velerrors.RetryIO(func() (*os.File, error) {
		return os.Open(path)
	})
	if err != nil {
		return nil, fmt.Errorf("open bundle %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat bundle %s: %w", path, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open bundle %s as zip: %w", path, err)
	}

	return &Bundle{path: path, file: f, zr: zr}, nil
}

// OpenBytes loads a bundle from an in-memory buffer (e.g. a slice of the
// currently running executable's own appended data, or a downloaded
// response body buffered fully before use).
func OpenBytes(b []byte) (*Bundle, error) {
	zr, err := zip.NewReader(strings.NewReader(string(b)), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open bundle from memory: %w", err)
	}
	return &Bundle{zr: zr}, nil
}

// Close releases the underlying file handle, if any.
func (b *Bundle) Close() error {
	if b.file != nil {
		return b.file.Close()
	}
	return nil
}

// Path returns the path this bundle was opened from, or "" for in-memory
// bundles.
func (b *Bundle) Path() string {
	return b.path
}

// FindZipFile returns the first zip entry whose name matches pred.
func (b *Bundle) FindZipFile(pred func(name string) bool) (*zip.File, bool) {
	for _, f := range b.zr.File {
		if pred(f.Name) {
			return f, true
		}
	}
	return nil, false
}

// ReadManifest locates the first file ending in .nuspec and parses it.
func (b *Bundle) ReadManifest() (*nuspec.Manifest, error) {
	f, ok := b.FindZipFile(func(name string) bool {
		return strings.HasSuffix(name, ".nuspec")
	})
	if !ok {
		return nil, velerrors.ErrMissingNuspec
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open nuspec entry: %w", err)
	}
	defer rc.Close()

	m, err := nuspec.Parse(rc)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SplashBytes returns the contents of the bundle's splash image, if present.
// Absence is not an error: callers get (nil, false) and decide whether that
// matters.
func (b *Bundle) SplashBytes() ([]byte, bool) {
	f, ok := b.FindZipFile(func(name string) bool {
		return strings.Contains(strings.ToLower(name), "splashimage")
	})
	if !ok {
		return nil, false
	}

	rc, err := f.Open()
	if err != nil {
		return nil, false
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// errZipPredicateNotFound is the "(zip bundle predicate)" miss the reference
// implementation reports when no entry matches a caller-supplied predicate.
var errZipPredicateNotFound = fmt.Errorf("file not found: (zip bundle predicate)")

// ExtractZipPredicateToPath streams the first entry matching pred to dest,
// creating parent directories as needed and retrying transient I/O when
// creating dest.
func (b *Bundle) ExtractZipPredicateToPath(pred func(name string) bool, dest string) error {
	f, ok := b.FindZipFile(pred)
	if !ok {
		return errZipPredicateNotFound
	}
	return b.extractEntry(f, dest)
}

func (b *Bundle) extractEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dest, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := velerrors.RetryIO(func() (*os.File, error) {
		return os.Create(dest)
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(out, rc, buf); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// ExtractLibContentsToPath extracts every entry except the manifest and
// other top-level support files (anything not under lib/) to destDir,
// preserving the relative path under lib/. progress, if non-nil, is called
// after every entry.
func (b *Bundle) ExtractLibContentsToPath(destDir string, progress ProgressFunc) error {
	var entries []*zip.File
	for _, f := range b.zr.File {
		if !isLibPayload(f.Name) {
			continue
		}
		entries = append(entries, f)
	}

	for i, f := range entries {
		rel := strings.TrimPrefix(f.Name, "lib/")
		dest := filepath.Join(destDir, filepath.FromSlash(rel))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", dest, err)
			}
		} else if err := b.extractEntry(f, dest); err != nil {
			return err
		}

		if progress != nil {
			progress(i+1, len(entries))
		}
	}
	return nil
}

func isLibPayload(name string) bool {
	if !strings.HasPrefix(name, "lib/") {
		return false
	}
	base := strings.ToLower(filepath.Base(name))
	return !strings.HasSuffix(base, ".nuspec") && !strings.Contains(base, "splashimage")
}

// CalculateSize sums the compressed and uncompressed sizes of every entry.
func (b *Bundle) CalculateSize() (compressed, uncompressed uint64) {
	for _, f := range b.zr.File {
		compressed += f.CompressedSize64
		uncompressed += f.UncompressedSize64
	}
	return compressed, uncompressed
}

// FileNames lists every entry name in the archive, in zip order.
func (b *Bundle) FileNames() []string {
	names := make([]string, len(b.zr.File))
	for i, f := range b.zr.File {
		names[i] = f.Name
	}
	return names
}
