package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoManifest means the project directory has no dependency manifest.
	ErrNoManifest = errors.New("requirements.txt not found")
	// ErrTimedOut means the install subprocess exceeded its ceiling and was killed.
	ErrTimedOut = errors.New("dependency installation timed out")
)

// ManifestFile is the dependency manifest expected inside a project directory.
const ManifestFile = "requirements.txt"

// DefaultTimeout bounds a single install run.
const DefaultTimeout = 5 * time.Minute

// Installer runs the package installer against a project's manifest as a
// one-shot bounded subprocess. It is delegated, not supervised: the install
// process is never entered in the process table.
type Installer struct {
	timeout time.Duration
	python  string
}

func New(timeout time.Duration) *Installer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Installer{timeout: timeout, python: "python3"}
}

// Install runs `python3 -m pip install -r requirements.txt` in dir. On
// success it returns the installer's stdout; on failure the error carries
// the captured stderr.
func (i *Installer) Install(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoManifest
		}
		return "", fmt.Errorf("stat manifest: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	// #nosec G204
	cmd := exec.CommandContext(ctx, i.python, "-m", "pip", "install", "-r", ManifestFile)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s", ErrTimedOut, i.timeout)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("install dependencies: %s", detail)
	}
	return stdout.String(), nil
}
