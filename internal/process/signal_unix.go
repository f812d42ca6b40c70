//go:build !windows

package process

import (
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
)

// setSysProcAttr places the child in its own process group so signals reach
// the whole tree the run command may spawn.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends a graceful termination request to the child's process group.
func terminate(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

// kill forcefully terminates the child's process group.
func kill(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// pidAlive probes the pid with signal 0. On Linux a quickly-exiting child
// can linger as a zombie until reaped; that counts as dead.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// isZombieLinux reports whether /proc/<pid>/status shows state Z.
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
