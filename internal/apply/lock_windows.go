//go:build windows

package apply

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

type windowsLock struct {
	f *os.File
}

func (w *windowsLock) release() error {
	windows.UnlockFileEx(windows.Handle(w.f.Fd()), 0, 1, 0, &windows.Overlapped{})
	return w.f.Close()
}

// acquireLockFile uses LockFileEx with LOCKFILE_EXCLUSIVE_LOCK |
// LOCKFILE_FAIL_IMMEDIATELY, the Windows analogue of flock(LOCK_EX|LOCK_NB).
func acquireLockFile(path string) (lockHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ol := &windows.Overlapped{}
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock held by another process: %w", err)
	}
	return &windowsLock{f: f}, nil
}
