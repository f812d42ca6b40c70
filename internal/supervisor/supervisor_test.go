//go:build !windows

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/hostr/internal/history"
	"github.com/loykin/hostr/internal/logsink"
	"github.com/loykin/hostr/internal/project"
)

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	store, err := project.Open(filepath.Join(t.TempDir(), "projects"))
	require.NoError(t, err)
	sink := logsink.New(filepath.Join(t.TempDir(), "logs"))
	cfg := Config{
		StopGrace:         2 * time.Second,
		RestartPause:      10 * time.Millisecond,
		DefaultRunCommand: "sleep 60",
	}
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s := New(store, sink, cfg, opts...)
	t.Cleanup(func() { s.Shutdown(2 * time.Second) })
	return s
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLifecycle(t *testing.T) {
	s := newTestSupervisor(t)

	m, err := s.Create("alpha")
	require.NoError(t, err)
	require.Equal(t, "sleep 60", m.RunCommand)

	_, err = s.Create("alpha")
	require.ErrorIs(t, err, ErrAlreadyExists)

	st, err := s.Status("alpha")
	require.NoError(t, err)
	require.False(t, st.Running)

	pid, err := s.Start("alpha")
	require.NoError(t, err)
	require.Greater(t, pid, 0)

	_, err = s.Start("alpha")
	require.ErrorIs(t, err, ErrAlreadyRunning)

	st, err = s.Status("alpha")
	require.NoError(t, err)
	require.True(t, st.Running)
	require.Equal(t, pid, st.PID)

	// The stored record tracks the live state.
	meta, err := s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, project.StatusRunning, meta.Status)
	require.Equal(t, pid, meta.PID)

	require.NoError(t, s.Stop("alpha"))
	require.ErrorIs(t, s.Stop("alpha"), ErrNotRunning)

	st, err = s.Status("alpha")
	require.NoError(t, err)
	require.False(t, st.Running)

	meta, err = s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, project.StatusStopped, meta.Status)
	require.Zero(t, meta.PID)
}

func TestUnknownProject(t *testing.T) {
	s := newTestSupervisor(t)

	_, err := s.Start("ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Stop("ghost"), ErrNotFound)
	_, err = s.Status("ghost")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Logs("ghost", 10)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Usage("ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete("ghost"), ErrNotFound)
	require.ErrorIs(t, s.SetRunCommand("ghost", "sleep 1"), ErrNotFound)
	_, err = s.Install(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRestartYieldsNewProcess(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	pid1, err := s.Start("alpha")
	require.NoError(t, err)

	pid2, err := s.Restart("alpha")
	require.NoError(t, err)
	require.NotEqual(t, pid1, pid2)

	st, err := s.Status("alpha")
	require.NoError(t, err)
	require.True(t, st.Running)
	require.Equal(t, pid2, st.PID)
}

func TestRestartStoppedProject(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	// Restart on a stopped project is just a start.
	pid, err := s.Restart("alpha")
	require.NoError(t, err)
	require.Greater(t, pid, 0)
}

func TestStartFailures(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	require.NoError(t, s.SetRunCommand("alpha", "   "))
	_, err = s.Start("alpha")
	require.ErrorIs(t, err, ErrInvalidCommand)

	require.NoError(t, s.SetRunCommand("alpha", "no-such-binary-hostr-test"))
	_, err = s.Start("alpha")
	require.ErrorIs(t, err, ErrLaunchFailed)

	// A failed start leaves the project stopped and restartable.
	st, err := s.Status("alpha")
	require.NoError(t, err)
	require.False(t, st.Running)
}

func TestExternalExitReconciled(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)
	require.NoError(t, s.SetRunCommand("alpha", "sh -c 'exit 0'"))

	_, err = s.Start("alpha")
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool {
		st, err := s.Status("alpha")
		return err == nil && !st.Running
	})

	// Status reconciled the stored record on observing the death.
	meta, err := s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, project.StatusStopped, meta.Status)
	require.Zero(t, meta.PID)

	// The slot is free again.
	_, err = s.Start("alpha")
	require.NoError(t, err)
}

func TestLogsCaptureOutput(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	_, err = s.Logs("alpha", 10)
	require.ErrorIs(t, err, logsink.ErrNoLogs)

	require.NoError(t, s.SetRunCommand("alpha", "sh -c 'echo hello from alpha; sleep 60'"))
	_, err = s.Start("alpha")
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool {
		res, err := s.Logs("alpha", 10)
		return err == nil && strings.Contains(res.Text, "hello from alpha")
	})

	require.NoError(t, s.Stop("alpha"))

	// Output survives the stop and a second run appends to it.
	_, err = s.Start("alpha")
	require.NoError(t, err)
	waitFor(t, 5*time.Second, func() bool {
		res, err := s.Logs("alpha", 10)
		return err == nil && strings.Count(res.Text, "hello from alpha") == 2
	})
}

func TestUsage(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	_, err = s.Usage("alpha")
	require.ErrorIs(t, err, ErrNotRunning)

	pid, err := s.Start("alpha")
	require.NoError(t, err)

	u, err := s.Usage("alpha")
	require.NoError(t, err)
	require.Equal(t, pid, u.PID)
	require.Greater(t, u.MemoryRSS, uint64(0))
	require.False(t, u.StartedAt.IsZero())
}

func TestSetRunCommandValidation(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)

	require.ErrorIs(t, s.SetRunCommand("alpha", ""), ErrInvalidCommand)
	require.ErrorIs(t, s.SetRunCommand("alpha", strings.Repeat("x", 10001)), ErrInvalidCommand)

	require.NoError(t, s.SetRunCommand("alpha", "sh -c 'sleep 5'"))
	meta, err := s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "sh -c 'sleep 5'", meta.RunCommand)
}

func TestDeleteRemovesEverything(t *testing.T) {
	s := newTestSupervisor(t)
	m, err := s.Create("alpha")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.Path, "main.py"), []byte("print('hi')\n"), 0o600))

	_, err = s.Start("alpha")
	require.NoError(t, err)
	logDir := s.sink.Dir("alpha")

	require.NoError(t, s.Delete("alpha"))

	_, err = os.Stat(m.Path)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(logDir)
	require.True(t, os.IsNotExist(err))
	_, err = s.Get("alpha")
	require.ErrorIs(t, err, ErrNotFound)

	// Same name is creatable again right away.
	_, err = s.Create("alpha")
	require.NoError(t, err)
}

func TestDeletePartialFailure(t *testing.T) {
	s := newTestSupervisor(t)
	m, err := s.Create("alpha")
	require.NoError(t, err)

	// Log-directory removal failing after the project directory is gone must
	// not leave an undeletable metadata entry behind.
	s.removeLogs = func(string) error { return errors.New("device busy") }
	err = s.Delete("alpha")
	require.ErrorIs(t, err, ErrPartialDelete)

	_, err = os.Stat(m.Path)
	require.True(t, os.IsNotExist(err))
	_, err = s.Get("alpha")
	require.ErrorIs(t, err, ErrNotFound)

	// The name is free for re-creation despite the leftover log directory.
	s.removeLogs = func(string) error { return nil }
	_, err = s.Create("alpha")
	require.NoError(t, err)
}

func TestCreatePersistenceFailure(t *testing.T) {
	s := newTestSupervisor(t)

	// Block the store's temp-file write so the persistence path fails.
	tmp := filepath.Join(s.store.Root(), "projects.json.tmp")
	require.NoError(t, os.Mkdir(tmp, 0o750))

	_, err := s.Create("alpha")
	require.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestReconcileAllAfterRestart(t *testing.T) {
	root := filepath.Join(t.TempDir(), "projects")
	store, err := project.Open(root)
	require.NoError(t, err)
	_, err = store.Create("alpha", "sleep 60")
	require.NoError(t, err)
	// A crashed previous host left a stale running record.
	require.NoError(t, store.Update("alpha", func(m *project.Metadata) {
		m.Status = project.StatusRunning
		m.PID = 999999
	}))

	store2, err := project.Open(root)
	require.NoError(t, err)
	sink := logsink.New(filepath.Join(t.TempDir(), "logs"))
	s := New(store2, sink, Config{StopGrace: time.Second},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.ReconcileAll()

	meta, err := s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, project.StatusStopped, meta.Status)
	require.Zero(t, meta.PID)
}

func TestInstallNoManifest(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.Create("alpha")
	require.NoError(t, err)
	_, err = s.Install(context.Background(), "alpha")
	require.ErrorIs(t, err, ErrNoManifest)
}

// memorySink records history events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []history.Event
	closed bool
}

func (m *memorySink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) snapshot() []history.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Event(nil), m.events...)
}

func TestHistoryRecordsLifecycle(t *testing.T) {
	mem := &memorySink{}
	s := newTestSupervisor(t, WithHistorySinks(mem))
	_, err := s.Create("alpha")
	require.NoError(t, err)

	pid, err := s.Start("alpha")
	require.NoError(t, err)
	require.NoError(t, s.Stop("alpha"))

	events := mem.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, history.EventStart, events[0].Type)
	require.Equal(t, "alpha", events[0].Project)
	require.Equal(t, pid, events[0].PID)
	require.Equal(t, history.EventStop, events[1].Type)
	require.Equal(t, pid, events[1].PID)
}

func TestShutdownStopsAll(t *testing.T) {
	s := newTestSupervisor(t)
	for _, name := range []string{"a1", "a2", "a3"} {
		_, err := s.Create(name)
		require.NoError(t, err)
		_, err = s.Start(name)
		require.NoError(t, err)
	}

	s.Shutdown(2 * time.Second)

	for _, name := range []string{"a1", "a2", "a3"} {
		st, err := s.Status(name)
		require.NoError(t, err)
		require.False(t, st.Running)
		meta, err := s.Get(name)
		require.NoError(t, err)
		require.Equal(t, project.StatusStopped, meta.Status)
	}
}
