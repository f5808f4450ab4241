// Package hostexec runs host utilities on behalf of the provisioning stages.
//
// Every package that shells out (account management, engine install, device
// probes) depends on the Runner interface so tests can substitute a recorder
// instead of touching the real host.
package hostexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner abstracts command execution.
type Runner interface {
	// Run executes name with args and returns stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunInput executes name with args, feeding stdin, and returns stdout.
	RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
	// LookPath reports the resolved path of an executable.
	LookPath(name string) (string, error)
}

// CommandError reports a failed command together with its stderr.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

type commandRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return commandRunner{}
}

func (r commandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.RunInput(ctx, nil, name, args...)
}

func (commandRunner) RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &CommandError{
			Command: strings.TrimSpace(name + " " + strings.Join(args, " ")),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}

func (commandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
