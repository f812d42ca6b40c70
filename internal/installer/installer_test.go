//go:build !windows

package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePython writes an executable script standing in for the interpreter, so
// tests do not depend on a real python toolchain being installed.
func fakePython(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python3")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func projectWithManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("requests\n"), 0o600))
	return dir
}

func TestInstallMissingManifest(t *testing.T) {
	i := New(time.Minute)
	_, err := i.Install(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNoManifest)
}

func TestInstallSuccess(t *testing.T) {
	i := New(time.Minute)
	i.python = fakePython(t, `echo "Successfully installed requests"`)

	out, err := i.Install(context.Background(), projectWithManifest(t))
	require.NoError(t, err)
	require.Contains(t, out, "Successfully installed")
}

func TestInstallFailureCarriesStderr(t *testing.T) {
	i := New(time.Minute)
	i.python = fakePython(t, `echo "no matching distribution" 1>&2; exit 1`)

	_, err := i.Install(context.Background(), projectWithManifest(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no matching distribution")
}

func TestInstallTimeout(t *testing.T) {
	i := New(200 * time.Millisecond)
	i.python = fakePython(t, "sleep 30")

	start := time.Now()
	_, err := i.Install(context.Background(), projectWithManifest(t))
	require.ErrorIs(t, err, ErrTimedOut)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestNewDefaultTimeout(t *testing.T) {
	require.Equal(t, DefaultTimeout, New(0).timeout)
	require.Equal(t, time.Second, New(time.Second).timeout)
}
