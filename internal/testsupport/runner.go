package testsupport

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// Call records a single command issued through FakeRunner.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

// Line renders the call as a space-joined command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

type response struct {
	output string
	err    error
}

// FakeRunner implements hostexec.Runner without touching the host. Responses
// are matched on the full command line first, then on the binary name alone;
// unmatched commands succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]response
	paths     map[string]string
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string]response),
		paths:     make(map[string]string),
	}
}

// On registers output and error for a command line or binary name.
func (f *FakeRunner) On(command, output string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = response{output: output, err: err}
	return f
}

// Installed marks a binary as present for LookPath.
func (f *FakeRunner) Installed(name, path string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[name] = path
	return f
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.RunInput(ctx, nil, name, args...)
}

func (f *FakeRunner) RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		call.Stdin = string(data)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if resp, ok := f.responses[call.Line()]; ok {
		return []byte(resp.output), resp.err
	}
	if resp, ok := f.responses[name]; ok {
		return []byte(resp.output), resp.err
	}
	return nil, nil
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path, ok := f.paths[name]; ok {
		return path, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

// Calls returns a copy of the recorded calls.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns the recorded calls as command lines.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, call := range calls {
		out = append(out, call.Line())
	}
	return out
}

// Ran reports whether a command line starting with prefix was issued.
func (f *FakeRunner) Ran(prefix string) bool {
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
