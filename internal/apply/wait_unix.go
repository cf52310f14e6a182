//go:build linux || darwin

package apply

import (
	"os"
	"syscall"
)

// processIsAlive sends the null signal, the portable unix idiom for
// checking whether a pid is still alive without actually signaling it.
func processIsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
