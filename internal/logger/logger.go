package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the host log file.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the host's own logging. This is for hostr itself;
// supervised project output goes through the log sink, never through slog.
type Config struct {
	Level      string `toml:"level" mapstructure:"level"`           // debug, info, warn, error
	File       string `toml:"file" mapstructure:"file"`             // optional file destination (rotated)
	Console    bool   `toml:"console" mapstructure:"console"`       // also log to stderr
	Color      bool   `toml:"color" mapstructure:"color"`           // colorize console output
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger from the config. When File is set the file handler
// writes through lumberjack so the host log is rotated instead of growing
// without bound.
func New(c Config) *slog.Logger {
	level := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if c.File != "" {
		fw := &lj.Logger{
			Filename:   c.File,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		}
		handlers = append(handlers, slog.NewTextHandler(fw, opts))
	}
	if c.Console || c.File == "" {
		if c.Color {
			handlers = append(handlers, NewColorTextHandler(os.Stderr, opts, true))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(multiHandler(handlers))
}

// Setup installs the configured logger as the process default.
func Setup(c Config) *slog.Logger {
	l := New(c)
	slog.SetDefault(l)
	return l
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Writer returns an io.Writer that appends to the given file path with
// rotation. Used for destinations that are plain byte streams.
func Writer(path string, maxSizeMB, maxBackups, maxAgeDays int) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(maxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(maxBackups, DefaultMaxBackups),
		MaxAge:     valOr(maxAgeDays, DefaultMaxAgeDays),
	}
}
