// Package delta reconstructs a full package from an older full package plus
// a chain of zstd dictionary-patch deltas. Each patch is a raw zstd stream
// compressed using the previous file's entire contents as the dictionary.
package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/velopack/velopack/internal/velerrors"
)

// minWindowLog is the floor the reference implementation clamps the
// decoder's window-log to regardless of dictionary size, so that small
// dictionaries still get a sane minimum window.
const minWindowLog = 27

// maxWindowBytes converts a dictionary size in bytes into the decoder
// window budget: one bit larger than ceil(log2(dictSize)), clamped up to
// minWindowLog bits so small dictionaries still get a sane minimum window.
func maxWindowBytes(dictSize int) uint64 {
	bits := 0
	for sz := 1; sz < dictSize; sz <<= 1 {
		bits++
	}
	bits++ // one bit larger than the dictionary's own log2 size
	if bits < minWindowLog {
		bits = minWindowLog
	}
	return 1 << uint(bits)
}

// ApplyOne decompresses a single zstd-dictionary patch: dictFile's contents
// become the dictionary, patchFile is the compressed stream, and outputFile
// is created (or truncated if it already exists) with the reconstructed
// bytes.
func ApplyOne(dictFile, patchFile, outputFile string) error {
	dict, err := os.ReadFile(dictFile)
	if err != nil {
		return fmt.Errorf("read dictionary %s: %w", dictFile, err)
	}

	patch, err := os.Open(patchFile)
	if err != nil {
		return fmt.Errorf("open patch %s: %w", patchFile, err)
	}
	defer patch.Close()

	decoder, err := zstd.NewReader(patch,
		zstd.WithDecoderDicts(dict),
		zstd.WithDecoderMaxWindow(maxWindowBytes(len(dict))),
	)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	// O_TRUNC is required even though O_CREATE is also set: a short patch
	// output must not leave stale trailing bytes from a previous run at
	// this same path.
	out, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create output %s: %w", outputFile, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, decoder); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	return nil
}

// ApplyChain reconstructs a full package by applying patchFiles in order,
// starting from baseFile, each step's output feeding the next step's
// dictionary. Intermediate files live in a temp directory removed before
// ApplyChain returns. The final reconstructed file is verified against
// expectedSHA256 and copied to outputFile; a mismatch returns
// velerrors.ErrDeltaVerificationFailed and outputFile is not written.
func ApplyChain(baseFile string, patchFiles []string, expectedSHA256 string, outputFile string) error {
	if len(patchFiles) == 0 {
		return fmt.Errorf("delta: no patches supplied")
	}

	tempDir, err := os.MkdirTemp("", "velopack_delta_"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	current := baseFile
	for i, patch := range patchFiles {
		next := filepath.Join(tempDir, fmt.Sprintf("step_%d", i))
		if err := ApplyOne(current, patch, next); err != nil {
			return fmt.Errorf("apply patch %d/%d (%s): %w", i+1, len(patchFiles), filepath.Base(patch), err)
		}
		current = next
	}

	if expectedSHA256 != "" {
		sum, err := sha256File(current)
		if err != nil {
			return fmt.Errorf("hash reconstructed package: %w", err)
		}
		if !strings.EqualFold(sum, expectedSHA256) {
			return velerrors.ErrDeltaVerificationFailed
		}
	}

	if err := copyFile(current, outputFile); err != nil {
		return fmt.Errorf("copy reconstructed package to %s: %w", outputFile, err)
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
