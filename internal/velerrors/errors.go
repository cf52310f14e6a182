// Package velerrors defines the error-kind taxonomy shared by every stage of
// the update lifecycle engine, plus the small I/O retry helper the apply and
// uninstall engines lean on for transient filesystem failures.
package velerrors

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Sentinel error kinds. Callers branch on these with errors.Is; wrapped
// messages still carry the underlying cause via %w.
var (
	ErrNotInstalled              = errors.New("velopack: not installed")
	ErrMissingNuspec             = errors.New("velopack: bundle has no .nuspec entry")
	ErrInvalidAssetName          = errors.New("velopack: asset filename does not end with .nupkg")
	ErrPermissionDenied          = errors.New("velopack: permission denied")
	ErrUserCancelled             = errors.New("velopack: user cancelled")
	ErrPrerequisitesNotInstalled = errors.New("velopack: prerequisites not installed")
	ErrDeltaVerificationFailed   = errors.New("velopack: delta verification failed")
	ErrAnotherInstanceRunning    = errors.New("velopack: another instance is running")
	ErrFatalSwap                 = errors.New("velopack: fatal swap, manual recovery required")
)

// MissingNuspecProperty reports which required nuspec field was absent.
type MissingNuspecProperty struct {
	Name string
}

func (e *MissingNuspecProperty) Error() string {
	return fmt.Sprintf("velopack: nuspec is missing required property %q", e.Name)
}

// NewMissingNuspecProperty wraps the named property in the error type.
func NewMissingNuspecProperty(name string) error {
	return &MissingNuspecProperty{Name: name}
}

// RetryIO runs op, and on failure retries up to four more times with the
// fixed 333/666/1000/1000 ms backoff spec'd for Windows directory-removal
// contention. The last attempt's error is returned untouched.
func RetryIO[T any](op func() (T, error)) (T, error) {
	backoffs := []time.Duration{333 * time.Millisecond, 666 * time.Millisecond, 1000 * time.Millisecond, 1000 * time.Millisecond}

	res, err := op()
	if err == nil {
		return res, nil
	}

	for _, wait := range backoffs {
		log.Printf("[velerrors] retrying operation in %s (error was: %v)", wait, err)
		time.Sleep(wait)
		res, err = op()
		if err == nil {
			return res, nil
		}
	}

	return res, err
}

// RetryIOVoid is RetryIO for operations with no useful return value.
func RetryIOVoid(op func() error) error {
	_, err := RetryIO(func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
