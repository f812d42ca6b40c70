package supervisor

import (
	"errors"

	"github.com/loykin/hostr/internal/installer"
	"github.com/loykin/hostr/internal/project"
	"github.com/loykin/hostr/internal/sampler"
)

// Error kinds surfaced by supervisor operations. Filesystem and subprocess
// failures are converted to one of these at the supervisor boundary; callers
// match with errors.Is and render the wrapped detail.
var (
	ErrNotFound       = project.ErrNotFound
	ErrAlreadyExists  = project.ErrAlreadyExists
	ErrInvalidName    = project.ErrInvalidName
	ErrAlreadyRunning = errors.New("project is already running")
	ErrNotRunning     = errors.New("project is not running")
	ErrInvalidCommand = errors.New("invalid run command")
	ErrLaunchFailed   = errors.New("failed to launch project")
	ErrNoManifest     = installer.ErrNoManifest
	ErrTimedOut       = installer.ErrTimedOut
	ErrProbeFailed    = sampler.ErrProbeFailed

	// ErrPersistenceFailed means the durable store write failed after the
	// in-memory transition was applied; on-disk state may be inconsistent
	// with the live process table. Never swallowed.
	ErrPersistenceFailed = errors.New("failed to persist project store")

	// ErrPartialDelete means the project directory was removed but the log
	// directory was not; the metadata entry is gone either way.
	ErrPartialDelete = errors.New("project partially deleted")
)
