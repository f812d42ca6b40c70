package project

import (
	"strings"
	"time"
)

// Status is the last persisted coarse state of a project. It is advisory:
// liveness is always re-checked against the process table before it is
// reported, and the field is reconciled on every status read.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Metadata is the durable record for one project. Name doubles as the
// directory name and is immutable after creation. PID is present only while
// Status is running.
type Metadata struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	RunCommand string    `json:"run_command"`
	CreatedAt  time.Time `json:"created_at"`
	Status     Status    `json:"status"`
	PID        int       `json:"pid,omitempty"`
}

// DefaultRunCommand launches the conventional entry point when a project is
// created without an explicit command.
const DefaultRunCommand = "python3 main.py"

// ValidName reports whether s is acceptable as a project name. Names become
// directory names and URL segments, so only [A-Za-z0-9._-] is allowed and
// ".." is rejected outright.
func ValidName(s string) bool {
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
