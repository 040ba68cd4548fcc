// Package command runs external host tools (mkcert, systemctl, sudo).
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes name with args, feeding stdin when non-nil, and returns the
// combined output.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// Exec is the default Runner backed by os/exec.
func Exec(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("%s exited with status %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(string(output)))
		}
		return output, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return output, nil
}

// Sudo prefixes name with sudo when enabled.
func Sudo(enabled bool, name string, args ...string) (string, []string) {
	if !enabled {
		return name, args
	}
	return "sudo", append([]string{name}, args...)
}
