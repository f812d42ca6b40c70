package process

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Handle exclusively owns one live supervised child process, from a
// successful start until its confirmed exit. It is deliberately more than a
// stored pid: pids can be recycled by the OS after death, so liveness and
// termination always go through the handle.
type Handle struct {
	mu        sync.Mutex
	name      string
	cmd       *exec.Cmd
	out       io.WriteCloser
	pid       int
	startedAt time.Time
	exitErr   error
	waitDone  chan struct{} // closed by the monitor goroutine after reaping
}

// Start launches command with dir as working directory and combined
// stdout+stderr redirected to out. On success a monitor goroutine owns
// cmd.Wait; it records the exit error, closes out, and closes the wait
// channel. On failure no child process exists and out is closed here.
func Start(name, command, dir string, out io.WriteCloser) (*Handle, error) {
	cmd, err := BuildCommand(command)
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, err
	}
	cmd.Dir = dir
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	setSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	h := &Handle{
		name:      name,
		cmd:       cmd,
		out:       out,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		waitDone:  make(chan struct{}),
	}
	go h.monitor()
	return h, nil
}

// monitor is the single waiter for the child. Stop and Alive coordinate with
// it through waitDone instead of calling cmd.Wait themselves.
func (h *Handle) monitor() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	out := h.out
	h.out = nil
	h.mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
	close(h.waitDone)
}

// PID returns the child's OS process id.
func (h *Handle) PID() int { return h.pid }

// Name returns the owning project name.
func (h *Handle) Name() string { return h.name }

// StartedAt returns when the child was launched.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// ExitErr returns the child's exit error once it has been reaped.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Alive probes whether the child is still executing. A reaped child is dead;
// an unreaped one is probed at the OS level so a zombie between death and
// reap is not reported alive.
func (h *Handle) Alive() bool {
	select {
	case <-h.waitDone:
		return false
	default:
	}
	return pidAlive(h.pid)
}

// Wait blocks until the child has exited and been reaped.
func (h *Handle) Wait() error {
	<-h.waitDone
	return h.ExitErr()
}

// Stop terminates the child: a graceful termination request first, then a
// forced kill when the child has not exited within grace. Stop does not
// return until the monitor has reaped the process, so a successful Stop
// means the child is gone.
func (h *Handle) Stop(grace time.Duration) error {
	select {
	case <-h.waitDone:
		return h.ExitErr()
	default:
	}
	terminate(h.pid)
	select {
	case <-h.waitDone:
	case <-time.After(grace):
		kill(h.pid)
		<-h.waitDone
	}
	return h.ExitErr()
}

// Kill forces immediate termination and waits for the reap.
func (h *Handle) Kill() error {
	kill(h.pid)
	<-h.waitDone
	return h.ExitErr()
}
