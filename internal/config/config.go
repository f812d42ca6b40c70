package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/hostr/internal/logger"
	"github.com/loykin/hostr/internal/project"
)

// Config is the top-level TOML structure for hostr.
//
// Example:
//
//	listen = "127.0.0.1:8080"
//	projects_dir = "projects"
//	logs_dir = "logs"
//	stop_grace = "10s"
//	history_dsn = "sqlite://hostr-history.db"
//
//	[log]
//	level = "info"
//	file = "hostr.log"
type Config struct {
	Listen            string        `toml:"listen" mapstructure:"listen"`
	BasePath          string        `toml:"base_path" mapstructure:"base_path"`
	ProjectsDir       string        `toml:"projects_dir" mapstructure:"projects_dir"`
	LogsDir           string        `toml:"logs_dir" mapstructure:"logs_dir"`
	DefaultRunCommand string        `toml:"default_run_command" mapstructure:"default_run_command"`
	StopGrace         time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	RestartPause      time.Duration `toml:"restart_pause" mapstructure:"restart_pause"`
	InstallTimeout    time.Duration `toml:"install_timeout" mapstructure:"install_timeout"`
	ShutdownGrace     time.Duration `toml:"shutdown_grace" mapstructure:"shutdown_grace"`
	HistoryDSN        string        `toml:"history_dsn" mapstructure:"history_dsn"`
	Log               logger.Config `toml:"log" mapstructure:"log"`
	ProjectLog        SinkConfig    `toml:"project_log" mapstructure:"project_log"`
}

// SinkConfig tunes rotation of per-project output logs.
type SinkConfig struct {
	MaxSizeMB  int `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int `toml:"max_age_days" mapstructure:"max_age_days"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:            "127.0.0.1:8080",
		BasePath:          "/api",
		ProjectsDir:       "projects",
		LogsDir:           "logs",
		DefaultRunCommand: project.DefaultRunCommand,
		StopGrace:         10 * time.Second,
		RestartPause:      2 * time.Second,
		InstallTimeout:    5 * time.Minute,
		ShutdownGrace:     5 * time.Second,
		Log:               logger.Config{Level: "info", File: "hostr.log", Console: true, Color: true},
	}
}

// Load reads a TOML config file, filling unset keys from Default. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
