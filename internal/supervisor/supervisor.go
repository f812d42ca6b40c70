package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/loykin/hostr/internal/history"
	"github.com/loykin/hostr/internal/installer"
	"github.com/loykin/hostr/internal/logsink"
	"github.com/loykin/hostr/internal/metrics"
	"github.com/loykin/hostr/internal/process"
	"github.com/loykin/hostr/internal/project"
	"github.com/loykin/hostr/internal/sampler"
)

// Defaults for lifecycle timing. StopGrace bounds worst-case stop latency
// while giving well-behaved children a chance to clean up; RestartPause lets
// OS resources such as bound ports release between stop and start.
const (
	DefaultStopGrace    = 10 * time.Second
	DefaultRestartPause = 2 * time.Second
)

// Config carries the tunables for a Supervisor.
type Config struct {
	StopGrace         time.Duration
	RestartPause      time.Duration
	DefaultRunCommand string
	InstallTimeout    time.Duration
}

func (c *Config) fillDefaults() {
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	if c.RestartPause <= 0 {
		c.RestartPause = DefaultRestartPause
	}
	if c.DefaultRunCommand == "" {
		c.DefaultRunCommand = project.DefaultRunCommand
	}
	if c.InstallTimeout <= 0 {
		c.InstallTimeout = installer.DefaultTimeout
	}
}

// Supervisor composes the project store, the in-memory process table, the
// log sink, the resource sampler, and the dependency installer into the
// lifecycle operations. It is the only writer of both the table and the
// store.
//
// Concurrency discipline: every operation on a project acquires that
// project's lock (created on first use, never removed) around precondition
// checks and the state transition, so operations on the same name serialize
// while different projects proceed independently. mu guards only the two
// maps, never any blocking work.
type Supervisor struct {
	cfg   Config
	store *project.Store
	sink  *logsink.Sink
	inst  *installer.Installer
	hist  []history.Sink
	log   *slog.Logger

	// removeLogs defaults to sink.Remove; a hook so tests can exercise the
	// partial-delete path, which cannot be triggered through the filesystem
	// when running as root.
	removeLogs func(name string) error

	mu    sync.Mutex
	table map[string]*process.Handle
	locks map[string]*sync.Mutex
}

// Option configures optional collaborators.
type Option func(*Supervisor)

// WithHistorySinks attaches lifecycle-event audit sinks.
func WithHistorySinks(sinks ...history.Sink) Option {
	return func(s *Supervisor) { s.hist = append(s.hist, sinks...) }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

func New(store *project.Store, sink *logsink.Sink, cfg Config, opts ...Option) *Supervisor {
	cfg.fillDefaults()
	s := &Supervisor{
		cfg:        cfg,
		store:      store,
		sink:       sink,
		inst:       installer.New(cfg.InstallTimeout),
		log:        slog.Default(),
		removeLogs: sink.Remove,
		table:      make(map[string]*process.Handle),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lockFor returns the exclusive lock for a project name.
func (s *Supervisor) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[name]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[name] = lk
	}
	return lk
}

func (s *Supervisor) handle(name string) *process.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table[name]
}

func (s *Supervisor) setHandle(name string, h *process.Handle) {
	s.mu.Lock()
	s.table[name] = h
	s.mu.Unlock()
}

func (s *Supervisor) evict(name string) {
	s.mu.Lock()
	delete(s.table, name)
	s.mu.Unlock()
}

func (s *Supervisor) runningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.table {
		if h.Alive() {
			n++
		}
	}
	return n
}

// Create registers a new project with the default run command and creates
// its directory.
func (s *Supervisor) Create(name string) (project.Metadata, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()
	m, err := s.store.Create(name, s.cfg.DefaultRunCommand)
	if err != nil {
		if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrAlreadyExists) {
			return m, err
		}
		return m, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	s.log.Info("project created", "project", name, "path", m.Path)
	return m, nil
}

// List returns all project names in sorted order.
func (s *Supervisor) List() []string { return s.store.List() }

// Get returns the stored metadata for a project.
func (s *Supervisor) Get(name string) (project.Metadata, error) { return s.store.Get(name) }

// Start launches a project's run command. It fails with ErrAlreadyRunning
// when a live child exists; a stale table entry (child died externally) is
// evicted and reconciled, not an error.
func (s *Supervisor) Start(name string) (int, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()
	return s.startLocked(name)
}

func (s *Supervisor) startLocked(name string) (int, error) {
	meta, err := s.store.Get(name)
	if err != nil {
		return 0, err
	}
	if h := s.handle(name); h != nil {
		if h.Alive() {
			return 0, fmt.Errorf("%w: %q (pid %d)", ErrAlreadyRunning, name, h.PID())
		}
		s.reapLocked(name, h)
	}

	out, err := s.sink.Open(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	h, err := process.Start(name, meta.RunCommand, meta.Path, out)
	if err != nil {
		if errors.Is(err, process.ErrEmptyCommand) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	s.setHandle(name, h)

	pid := h.PID()
	metrics.IncStart(name)
	metrics.SetRunningProjects(s.runningCount())
	s.recordEvent(history.EventStart, name, pid, "")
	s.log.Info("project started", "project", name, "pid", pid)

	if err := s.store.Update(name, func(m *project.Metadata) {
		m.Status = project.StatusRunning
		m.PID = pid
	}); err != nil {
		s.log.Error("persist after start failed", "project", name, "error", err)
		return pid, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return pid, nil
}

// Stop terminates a project's child: graceful request, bounded wait, then
// forced kill. It returns only after the process is confirmed exited.
func (s *Supervisor) Stop(name string) error {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()
	return s.stopLocked(name)
}

func (s *Supervisor) stopLocked(name string) error {
	if !s.store.Exists(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	h := s.handle(name)
	if h == nil {
		return fmt.Errorf("%w: %q", ErrNotRunning, name)
	}
	if !h.Alive() {
		// Died externally; reconcile rather than fail the invariant.
		s.reapLocked(name, h)
		return fmt.Errorf("%w: %q", ErrNotRunning, name)
	}

	exitErr := h.Stop(s.cfg.StopGrace)
	s.evict(name)

	detail := ""
	if exitErr != nil {
		detail = exitErr.Error()
	}
	metrics.IncStop(name)
	metrics.SetRunningProjects(s.runningCount())
	s.recordEvent(history.EventStop, name, h.PID(), detail)
	s.log.Info("project stopped", "project", name, "pid", h.PID())

	if err := s.store.Update(name, func(m *project.Metadata) {
		m.Status = project.StatusStopped
		m.PID = 0
	}); err != nil {
		s.log.Error("persist after stop failed", "project", name, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	// A non-zero exit after SIGTERM/SIGKILL is expected; stop succeeded once
	// the process is confirmed gone.
	return nil
}

// Restart stops the project (tolerating one that is not running), pauses
// briefly so OS resources release, and starts it again. A stop failure other
// than "not running" aborts the restart.
func (s *Supervisor) Restart(name string) (int, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()
	if err := s.stopLocked(name); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}
	time.Sleep(s.cfg.RestartPause)
	return s.startLocked(name)
}

// Status is one project's observed state. Running reflects a live probe, not
// the stored field.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Status probes the project's liveness. A table entry whose process is dead
// is evicted and the metadata reconciled to stopped as a side effect, so the
// answer is never stale by more than one probe.
func (s *Supervisor) Status(name string) (Status, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()

	if !s.store.Exists(name) {
		return Status{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if h := s.handle(name); h != nil {
		if h.Alive() {
			return Status{Name: name, Running: true, PID: h.PID(), StartedAt: h.StartedAt()}, nil
		}
		s.reapLocked(name, h)
	} else {
		// No handle: a previous host instance may have left status=running.
		s.reconcileStoppedLocked(name)
	}
	return Status{Name: name, Running: false}, nil
}

// reapLocked removes a dead table entry and reconciles metadata. Detected
// death is a normal event, logged informationally only.
func (s *Supervisor) reapLocked(name string, h *process.Handle) {
	s.evict(name)
	s.recordEvent(history.EventStop, name, h.PID(), exitDetail(h.ExitErr()))
	metrics.SetRunningProjects(s.runningCount())
	s.log.Info("project exited", "project", name, "pid", h.PID(), "exit_error", h.ExitErr())
	s.reconcileStoppedLocked(name)
}

func (s *Supervisor) reconcileStoppedLocked(name string) {
	meta, err := s.store.Get(name)
	if err != nil || (meta.Status == project.StatusStopped && meta.PID == 0) {
		return
	}
	if err := s.store.Update(name, func(m *project.Metadata) {
		m.Status = project.StatusStopped
		m.PID = 0
	}); err != nil {
		s.log.Error("reconcile persist failed", "project", name, "error", err)
	}
}

func exitDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Logs returns the last n lines of the project's combined output.
func (s *Supervisor) Logs(name string, n int) (logsink.TailResult, error) {
	if !s.store.Exists(name) {
		return logsink.TailResult{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.sink.Tail(name, n)
}

// Usage samples CPU, resident memory, and uptime for a live child. A child
// that exits between the liveness check and the sample yields ErrProbeFailed.
func (s *Supervisor) Usage(name string) (sampler.Usage, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()

	if !s.store.Exists(name) {
		return sampler.Usage{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	h := s.handle(name)
	if h == nil || !h.Alive() {
		return sampler.Usage{}, fmt.Errorf("%w: %q", ErrNotRunning, name)
	}
	u, err := sampler.Sample(h.PID())
	if err != nil {
		return sampler.Usage{}, err
	}
	if u.StartedAt.IsZero() {
		u.StartedAt = h.StartedAt()
		u.Uptime = time.Since(h.StartedAt())
	}
	metrics.ObserveUsage(name, u.CPUPercent, u.MemoryRSS)
	return u, nil
}

// Install runs the dependency installer inside the project directory. The
// subprocess is bounded by the install timeout and is not supervised.
func (s *Supervisor) Install(ctx context.Context, name string) (string, error) {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()

	meta, err := s.store.Get(name)
	if err != nil {
		return "", err
	}
	out, err := s.inst.Install(ctx, meta.Path)
	if err != nil {
		return "", err
	}
	s.log.Info("dependencies installed", "project", name)
	return out, nil
}

// SetRunCommand replaces the project's launch command.
func (s *Supervisor) SetRunCommand(name, command string) error {
	if len(command) == 0 || len(command) > 10000 {
		return fmt.Errorf("%w: command must be 1..10000 characters", ErrInvalidCommand)
	}
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()

	if err := s.store.Update(name, func(m *project.Metadata) { m.RunCommand = command }); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	s.log.Info("run command updated", "project", name, "command", command)
	return nil
}

// Delete stops the project if running, removes its files and logs, then
// drops the metadata entry. Removal is best-effort across the two
// directories: a project-directory failure aborts the delete with metadata
// intact, while a log-directory failure after the project directory is gone
// still removes the entry and reports ErrPartialDelete, so no undeletable
// zombie entry can remain.
func (s *Supervisor) Delete(name string) error {
	lk := s.lockFor(name)
	lk.Lock()
	defer lk.Unlock()

	meta, err := s.store.Get(name)
	if err != nil {
		return err
	}
	if err := s.stopLocked(name); err != nil && !errors.Is(err, ErrNotRunning) {
		return fmt.Errorf("stop before delete: %w", err)
	}

	if err := os.RemoveAll(meta.Path); err != nil {
		return fmt.Errorf("remove project directory: %w", err)
	}
	var partial error
	if err := s.removeLogs(name); err != nil {
		partial = fmt.Errorf("%w: log directory not removed: %v", ErrPartialDelete, err)
	}

	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	metrics.ForgetProject(name)
	s.log.Info("project deleted", "project", name)
	return partial
}

// ReconcileAll walks the store once and lazily downgrades any project
// recorded as running that has no live table entry. Called at daemon start,
// where a crash of the previous host instance can leave stale fields.
func (s *Supervisor) ReconcileAll() {
	for _, name := range s.store.List() {
		if _, err := s.Status(name); err != nil {
			s.log.Warn("reconcile status failed", "project", name, "error", err)
		}
	}
}

// Shutdown stops every live child with a bounded per-project wait. Used on
// daemon exit so no orphans outlive the host intentionally.
func (s *Supervisor) Shutdown(grace time.Duration) {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.table))
	for name := range s.table {
		names = append(names, name)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			lk := s.lockFor(name)
			lk.Lock()
			defer lk.Unlock()
			h := s.handle(name)
			if h == nil || !h.Alive() {
				return
			}
			_ = h.Stop(grace)
			s.evict(name)
			if err := s.store.Update(name, func(m *project.Metadata) {
				m.Status = project.StatusStopped
				m.PID = 0
			}); err != nil {
				s.log.Error("persist during shutdown failed", "project", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
	s.closeHistory()
}

func (s *Supervisor) recordEvent(t history.EventType, name string, pid int, detail string) {
	if len(s.hist) == 0 {
		return
	}
	evt := history.Event{Type: t, OccurredAt: time.Now().UTC(), Project: name, PID: pid, Detail: detail}
	for _, sink := range s.hist {
		if err := sink.Send(context.Background(), evt); err != nil {
			s.log.Warn("history sink send failed", "project", name, "error", err)
		}
	}
}

func (s *Supervisor) closeHistory() {
	for _, sink := range s.hist {
		if err := sink.Close(); err != nil {
			s.log.Warn("history sink close failed", "error", err)
		}
	}
}
