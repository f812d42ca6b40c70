//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
)

func setSysProcAttr(_ *exec.Cmd) {
	// No process-group setup on Windows; taskkill /T handles the tree.
}

// terminate asks the process tree to exit. Windows has no SIGTERM
// equivalent, so this is already forceful for console children.
func terminate(pid int) {
	_ = exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func kill(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal probing is not supported on Windows; FindProcess succeeding with
	// an open handle is the best available check.
	return p != nil
}
