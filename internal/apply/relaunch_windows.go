//go:build windows

package apply

import (
	"os/exec"

	"golang.org/x/sys/windows"
)

// platformDetach calls AllowSetForegroundWindow so the relaunched process
// can bring its own window to the front even though it was spawned by a
// background updater process rather than by direct user interaction.
func platformDetach(cmd *exec.Cmd) {
	windows.AllowSetForegroundWindow(windows.ASFW_ANY)
}
