package process

import (
	"errors"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned when a run command is blank.
var ErrEmptyCommand = errors.New("empty run command")

// BuildCommand constructs an *exec.Cmd for a run command string. It avoids
// invoking a shell when not necessary, and it respects an explicit shell
// invocation already present in the command ("sh -c '...'") without
// double-wrapping it in another shell.
func BuildCommand(command string) (*exec.Cmd, error) {
	cmdStr := strings.TrimSpace(command)
	if cmdStr == "" {
		return nil, ErrEmptyCommand
	}
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		// Absolute shell path so the command does not depend on PATH.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC), nil
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr), nil
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...), nil
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes. It returns the
// shell path and the argument after -c when matched, preserving the argument
// verbatim so quoting is not broken.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		// Strip one pair of wrapping quotes so the actual script reaches the
		// shell; outer quotes would otherwise inhibit parsing inside it.
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return strings.Fields(p)[0], after, true
	}
	return "", "", false
}
