// Package hostr embeds the project host: a single-machine supervisor for
// named, independently runnable projects.
package hostr

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/hostr/internal/config"
	"github.com/loykin/hostr/internal/history"
	"github.com/loykin/hostr/internal/history/factory"
	"github.com/loykin/hostr/internal/logger"
	"github.com/loykin/hostr/internal/logsink"
	"github.com/loykin/hostr/internal/metrics"
	"github.com/loykin/hostr/internal/project"
	"github.com/loykin/hostr/internal/sampler"
	iapi "github.com/loykin/hostr/internal/server"
	"github.com/loykin/hostr/internal/supervisor"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Metadata = project.Metadata

type Status = supervisor.Status

type Usage = sampler.Usage

type Tail = logsink.TailResult

type Config = cfg.Config

type HistorySink = history.Sink

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return cfg.Default() }

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// Host is a thin facade over the internal supervisor. It provides a stable
// public API for embedding.
type Host struct {
	sup  *supervisor.Supervisor
	conf Config
}

// New builds a Host from config: opens the project store, prepares the log
// sink, connects the optional history sink, and registers metrics.
func New(conf Config) (*Host, error) {
	logger.Setup(conf.Log)

	store, err := project.Open(conf.ProjectsDir)
	if err != nil {
		return nil, fmt.Errorf("open project store: %w", err)
	}
	sink := logsink.New(conf.LogsDir, logsink.WithRotation(
		conf.ProjectLog.MaxSizeMB, conf.ProjectLog.MaxBackups, conf.ProjectLog.MaxAgeDays))

	var opts []supervisor.Option
	if conf.HistoryDSN != "" {
		hs, err := factory.NewSinkFromDSN(conf.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("open history sink: %w", err)
		}
		opts = append(opts, supervisor.WithHistorySinks(hs))
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	sup := supervisor.New(store, sink, supervisor.Config{
		StopGrace:         conf.StopGrace,
		RestartPause:      conf.RestartPause,
		DefaultRunCommand: conf.DefaultRunCommand,
		InstallTimeout:    conf.InstallTimeout,
	}, opts...)
	sup.ReconcileAll()
	return &Host{sup: sup, conf: conf}, nil
}

func (h *Host) Create(name string) (Metadata, error) { return h.sup.Create(name) }
func (h *Host) List() []string                       { return h.sup.List() }
func (h *Host) Get(name string) (Metadata, error)    { return h.sup.Get(name) }
func (h *Host) Start(name string) (int, error)       { return h.sup.Start(name) }
func (h *Host) Stop(name string) error               { return h.sup.Stop(name) }
func (h *Host) Restart(name string) (int, error)     { return h.sup.Restart(name) }
func (h *Host) Status(name string) (Status, error)   { return h.sup.Status(name) }
func (h *Host) Logs(name string, lines int) (Tail, error) {
	return h.sup.Logs(name, lines)
}
func (h *Host) Usage(name string) (Usage, error) { return h.sup.Usage(name) }
func (h *Host) Install(ctx context.Context, name string) (string, error) {
	return h.sup.Install(ctx, name)
}
func (h *Host) SetRunCommand(name, command string) error {
	return h.sup.SetRunCommand(name, command)
}
func (h *Host) Delete(name string) error { return h.sup.Delete(name) }

// Handler returns the HTTP API handler for mounting in an external server.
func (h *Host) Handler() http.Handler {
	return iapi.NewRouter(h.sup, h.conf.BasePath).Handler()
}

// Serve starts the HTTP API on the configured listen address.
func (h *Host) Serve() *http.Server {
	return iapi.NewServer(h.conf.Listen, h.conf.BasePath, h.sup)
}

// Shutdown stops all supervised children with a bounded wait and closes
// attached sinks.
func (h *Host) Shutdown(grace time.Duration) {
	if grace <= 0 {
		grace = h.conf.ShutdownGrace
	}
	h.sup.Shutdown(grace)
}
