package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register and
// the helpers below no-op until that happens.
var (
	regOK atomic.Bool

	projectStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "project",
			Name:      "starts_total",
			Help:      "Number of successful project starts.",
		}, []string{"project"},
	)
	projectStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "project",
			Name:      "stops_total",
			Help:      "Number of project stops (graceful or kill).",
		}, []string{"project"},
	)
	projectCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostr",
			Subsystem: "project",
			Name:      "cpu_percent",
			Help:      "Last sampled CPU percentage per project.",
		}, []string{"project"},
	)
	projectMemoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostr",
			Subsystem: "project",
			Name:      "memory_rss_bytes",
			Help:      "Last sampled resident memory per project.",
		}, []string{"project"},
	)
	runningProjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostr",
			Subsystem: "project",
			Name:      "running",
			Help:      "Number of projects with a live child process.",
		},
	)
)

// Register registers all collectors with the provided registerer. Safe to
// call more than once.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{projectStarts, projectStops, projectCPUPercent, projectMemoryBytes, runningProjects}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(project string) {
	if regOK.Load() {
		projectStarts.WithLabelValues(project).Inc()
	}
}

func IncStop(project string) {
	if regOK.Load() {
		projectStops.WithLabelValues(project).Inc()
	}
}

func ObserveUsage(project string, cpuPercent float64, rssBytes uint64) {
	if regOK.Load() {
		projectCPUPercent.WithLabelValues(project).Set(cpuPercent)
		projectMemoryBytes.WithLabelValues(project).Set(float64(rssBytes))
	}
}

func SetRunningProjects(n int) {
	if regOK.Load() {
		runningProjects.Set(float64(n))
	}
}

// ForgetProject drops per-project series after a delete so stale labels do
// not linger in scrapes.
func ForgetProject(project string) {
	if regOK.Load() {
		projectStarts.DeleteLabelValues(project)
		projectStops.DeleteLabelValues(project)
		projectCPUPercent.DeleteLabelValues(project)
		projectMemoryBytes.DeleteLabelValues(project)
	}
}
