package apply

import (
	"fmt"
	"path/filepath"

	"github.com/velopack/velopack/internal/locator"
	"github.com/velopack/velopack/internal/velerrors"
)

// lockFileName sits at the installation root so any process operating on
// this install — the running app, the updater, the uninstaller — contends
// on the same handle.
const lockFileName = ".velopack.lock"

// Lock is held for the duration of a swap so a concurrent apply or
// uninstall cannot race the same install directory.
type Lock struct {
	handle lockHandle
}

// AcquireLock takes an exclusive, non-blocking lock on cfg's root directory.
// A held lock from another process surfaces as
// velerrors.ErrAnotherInstanceRunning.
func AcquireLock(cfg *locator.Config) (*Lock, error) {
	path := filepath.Join(cfg.RootAppDir, lockFileName)
	h, err := acquireLockFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", velerrors.ErrAnotherInstanceRunning, err)
	}
	return &Lock{handle: h}, nil
}

// Release drops the lock. Safe to call once; a second call is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.handle == nil {
		return nil
	}
	err := l.handle.release()
	l.handle = nil
	return err
}

type lockHandle interface {
	release() error
}
