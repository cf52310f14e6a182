package apply

import (
	"context"
	"os"
	"os/exec"
)

// relaunch starts exePath detached from the current process, with
// VELOPACK_RESTART=true set so the relaunched app can distinguish an
// update-triggered restart from a normal cold start.
func relaunch(ctx context.Context, exePath string, args []string) error {
	cmd := exec.Command(exePath, args...)
	cmd.Env = append(os.Environ(), "VELOPACK_RESTART=true")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	platformDetach(cmd)
	return cmd.Start()
}
