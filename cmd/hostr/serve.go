package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/hostr"
)

// runServe starts the daemon: project host plus HTTP API, then blocks until
// SIGINT/SIGTERM and shuts down supervised children gracefully.
func runServe(f ServeFlags) error {
	conf, err := hostr.LoadConfig(f.ConfigPath)
	if err != nil {
		return err
	}
	if f.Listen != "" {
		conf.Listen = f.Listen
	}

	host, err := hostr.New(conf)
	if err != nil {
		return fmt.Errorf("initialize host: %w", err)
	}
	server := host.Serve()
	slog.Info("hostr daemon started", "listen", conf.Listen, "projects_dir", conf.ProjectsDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
	host.Shutdown(0)
	return nil
}
