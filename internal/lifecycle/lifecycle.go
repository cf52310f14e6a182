// Package lifecycle provides the VelopackApp startup facade: the few lines
// every app embedding this library must run first, before any GUI
// initialization, so that the updater's hook invocations (--veloapp-install,
// --veloapp-updated, --veloapp-obsolete, --veloapp-uninstall,
// --veloapp-firstrun, --veloapp-restarted) complete and exit immediately
// instead of launching the full application.
package lifecycle

import (
	"log"
	"os"
)

// Hook identifies which lifecycle event the updater invoked the app for.
type Hook string

const (
	HookInstall   Hook = "--veloapp-install"
	HookUpdated   Hook = "--veloapp-updated"
	HookObsolete  Hook = "--veloapp-obsolete"
	HookUninstall Hook = "--veloapp-uninstall"
	HookFirstRun  Hook = "--veloapp-firstrun"
	HookRestarted Hook = "--veloapp-restarted"
)

var allHooks = []Hook{HookInstall, HookUpdated, HookObsolete, HookUninstall, HookFirstRun, HookRestarted}

// HookHandlers lets a caller react to a lifecycle event (e.g. write a
// registry key on first install, migrate settings on update) before the
// process exits. A nil handler is simply skipped.
type HookHandlers struct {
	OnInstall   func(version string)
	OnUpdated   func(version string)
	OnObsolete  func(version string)
	OnUninstall func(version string)
	OnFirstRun  func()
	OnRestarted func()
}

// Run inspects os.Args for a recognized hook flag. If one is found, the
// matching handler (if any) runs, then the process exits with code 0 — it
// never returns. If no hook flag is present, Run returns immediately so the
// caller can proceed with normal startup (GUI init, etc).
//
// version is whatever version string the app wants to pass through to the
// handler; most callers pass the value baked in by their build, not
// anything read from a manifest, since an app running under a hook flag may
// not be able to locate its own install layout yet.
func Run(version string, handlers HookHandlers) {
	RunArgs(os.Args[1:], version, handlers)
}

// RunArgs is Run with an explicit argument list, for testing.
func RunArgs(args []string, version string, handlers HookHandlers) {
	hook, ok := findHook(args)
	if !ok {
		return
	}

	log.Printf("[lifecycle] running as hook %s", hook)
	switch hook {
	case HookInstall:
		call1(handlers.OnInstall, version)
	case HookUpdated:
		call1(handlers.OnUpdated, version)
	case HookObsolete:
		call1(handlers.OnObsolete, version)
	case HookUninstall:
		call1(handlers.OnUninstall, version)
	case HookFirstRun:
		call0(handlers.OnFirstRun)
	case HookRestarted:
		call0(handlers.OnRestarted)
	}

	os.Exit(0)
}

func findHook(args []string) (Hook, bool) {
	for _, arg := range args {
		for _, h := range allHooks {
			if arg == string(h) {
				return h, true
			}
		}
	}
	return "", false
}

func call1(f func(string), version string) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[lifecycle] hook handler panicked: %v", r)
		}
	}()
	f(version)
}

func call0(f func()) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[lifecycle] hook handler panicked: %v", r)
		}
	}()
	f()
}
