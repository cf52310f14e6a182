//go:build windows

package apply

import "golang.org/x/sys/windows"

// processIsAlive opens the process with PROCESS_QUERY_LIMITED_INFORMATION
// rights and checks its
// exit code; os.FindProcess always succeeds on Windows so it cannot be used
// to detect exit the way the unix signal(pid, 0) trick can.
func processIsAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == 259 // STILL_ACTIVE
}
