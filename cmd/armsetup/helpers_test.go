package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"armsetup/internal/account"
	"armsetup/internal/bootstrap"
	"armsetup/internal/config"
	"armsetup/internal/engine"
	"armsetup/internal/hostfacts"
	"armsetup/internal/optical"
	"armsetup/internal/testsupport"
)

func testIDs() (int, int) {
	if os.Getuid() == 0 {
		return 1000, 1000
	}
	return os.Getuid(), os.Getgid()
}

type fakeAccounts struct {
	mu        sync.Mutex
	lookupErr error
	ensured   int
}

func (f *fakeAccounts) EnsureServiceAccount(_ context.Context, spec account.Spec) (account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	uid, gid := testIDs()
	return account.Account{User: spec.User, Group: spec.Group, UID: uid, GID: gid, Home: "/nonexistent", Created: true}, nil
}

func (f *fakeAccounts) Lookup(user string) (account.Account, error) {
	if f.lookupErr != nil {
		return account.Account{}, f.lookupErr
	}
	uid, gid := testIDs()
	return account.Account{User: user, Group: user, UID: uid, GID: gid, Home: "/nonexistent"}, nil
}

type fakeRuntime struct{}

func (fakeRuntime) EnsureContainerRuntime(context.Context, string) (engine.RuntimeStatus, error) {
	return engine.RuntimeStatus{Binary: "/usr/bin/docker", Restarted: true}, nil
}

type fakePuller struct {
	mu    sync.Mutex
	pulls []string
}

func (f *fakePuller) Pull(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, ref)
	return nil
}

type fakeFacts struct{}

func (fakeFacts) Detect(_ context.Context, acct account.Account) hostfacts.Facts {
	return hostfacts.Facts{
		UID:      acct.UID,
		GID:      acct.GID,
		Home:     acct.Home,
		Timezone: "Europe/Berlin",
		CPUCount: 4,
		CPUSet:   []int{0, 1, 2},
	}
}

type fakeDevices struct {
	devices []string
}

func (f fakeDevices) Detect(context.Context) optical.Result {
	return optical.Result{
		Devices: f.devices,
		Probes:  []optical.ProbeReport{{Name: "lsscsi", Devices: f.devices}},
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeHost struct {
	accounts *fakeAccounts
	puller   *fakePuller
	runner   *testsupport.FakeRunner
}

// installFakeHost swaps the host collaborators for fakes for the duration of
// the test.
func installFakeHost(t *testing.T, devices ...string) *fakeHost {
	t.Helper()
	host := &fakeHost{
		accounts: &fakeAccounts{},
		puller:   &fakePuller{},
		runner:   testsupport.NewFakeRunner(),
	}
	previous := newHostServices
	newHostServices = func(_ *config.Config, _ *slog.Logger, in io.Reader, out io.Writer) (*hostServices, error) {
		return &hostServices{
			deps: bootstrap.Deps{
				Privilege: func() error { return nil },
				Accounts:  host.accounts,
				Runtime:   fakeRuntime{},
				Puller:    host.puller,
				Facts:     fakeFacts{},
				Devices:   fakeDevices{devices: devices},
				Prompter:  terminalPrompter{in: in, out: out},
			},
			runner: host.runner,
			pinger: fakePinger{},
			close:  func() {},
		}, nil
	}
	t.Cleanup(func() { newHostServices = previous })
	return host
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#!/bin/sh\n")
	}))
	t.Cleanup(server.Close)
	cfg.Engine.InstallScriptURL = server.URL

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))

	fullArgs := args
	if configPath != "" {
		fullArgs = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(fullArgs)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

var errNoAccount = errors.New("user: unknown user arm")
