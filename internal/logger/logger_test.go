package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"  Info  ", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostr.log")
	l := New(Config{Level: "debug", File: path})
	l.Info("host starting", "listen", "127.0.0.1:8080")
	l.Debug("debug detail")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "host starting")
	require.Contains(t, string(b), "listen=127.0.0.1:8080")
	require.Contains(t, string(b), "debug detail")
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostr.log")
	l := New(Config{Level: "warn", File: path})
	l.Info("ignored")
	l.Warn("kept")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(b), "ignored")
	require.Contains(t, string(b), "kept")
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")
	w := Writer(path, 0, 0, 0)
	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w = Writer(path, 0, 0, 0)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(b))
}
