package apply

import (
	"context"
	"log"
	"os/exec"
	"time"

	"github.com/velopack/velopack/internal/locator"
)

// hookTimeout bounds how long a lifecycle hook may run before it's killed —
// matching the reference implementation's fixed 15 second budget for
// --veloapp-obsolete / --veloapp-updated.
const hookTimeout = 15 * time.Second

// runHook invokes the current main executable with the given lifecycle
// flag and waits up to hookTimeout. Failures are logged, never returned:
// a broken hook must not block the swap it's reacting to.
func runHook(cfg *locator.Config, flag string) {
	exePath, err := cfg.GetMainExePath()
	if err != nil {
		log.Printf("[apply] skipping hook %s: %v", flag, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exePath, flag)
	if err := cmd.Run(); err != nil {
		log.Printf("[apply] hook %s exited with error: %v", flag, err)
	}
}
