//go:build linux || darwin

package apply

import "os/exec"

func platformDetach(cmd *exec.Cmd) {}
