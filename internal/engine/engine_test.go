package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"armsetup/internal/config"
	"armsetup/internal/logging"
	"armsetup/internal/testsupport"
)

func TestNormalizeReference(t *testing.T) {
	cases := []struct {
		fork, name, tag string
		want            string
		wantErr         bool
	}{
		{"automaticrippingmachine", "automatic-ripping-machine", "latest", "automaticrippingmachine/automatic-ripping-machine:latest", false},
		{"myfork", "automatic-ripping-machine", "2.6.70", "myfork/automatic-ripping-machine:2.6.70", false},
		{"/myfork/", "automatic-ripping-machine", ":dev", "myfork/automatic-ripping-machine:dev", false},
		{"ghcr.io/someone", "arm", "v1", "ghcr.io/someone/arm:v1", false},
		{"UpperCase", "arm", "latest", "", true},
		{"MyFork", "automatic-ripping-machine", "latest", "", true},
		{"localhost:5000/arm", "automatic-ripping-machine", "dev", "localhost:5000/arm/automatic-ripping-machine:dev", false},
		{"localhost/arm", "automatic-ripping-machine", "dev", "localhost/arm/automatic-ripping-machine:dev", false},
		{"fork", "arm", "bad tag", "", true},
		{"", "arm", "latest", "", true},
		{"fork", "arm", "", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeReference(tc.fork, tc.name, tc.tag)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeReference(%q, %q, %q) expected error, got %q", tc.fork, tc.name, tc.tag, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeReference(%q, %q, %q): %v", tc.fork, tc.name, tc.tag, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeReference(%q, %q, %q) = %q, want %q", tc.fork, tc.name, tc.tag, got, tc.want)
		}
	}
}

type recordingGroups struct {
	calls []string
	err   error
}

func (g *recordingGroups) AddToGroup(_ context.Context, user, group string) error {
	g.calls = append(g.calls, user+":"+group)
	return g.err
}

// installRunner marks docker as installed once the install script runs.
type installRunner struct {
	*testsupport.FakeRunner
}

func (r installRunner) RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	out, err := r.FakeRunner.RunInput(ctx, stdin, name, args...)
	if name == "sh" && err == nil {
		r.Installed("docker", "/usr/bin/docker")
	}
	return out, err
}

func engineConfig(url string) config.Engine {
	cfg := config.Default().Engine
	cfg.InstallScriptURL = url
	return cfg
}

func TestEnsureContainerRuntimeAlreadyInstalled(t *testing.T) {
	runner := testsupport.NewFakeRunner().
		Installed("docker", "/usr/bin/docker").
		Installed("systemctl", "/usr/bin/systemctl")
	groups := &recordingGroups{}
	installer := NewRuntimeInstaller(runner, groups, engineConfig("http://127.0.0.1:1/unused"), logging.NewNop())

	status, err := installer.EnsureContainerRuntime(context.Background(), "arm")
	if err != nil {
		t.Fatalf("EnsureContainerRuntime: %v", err)
	}
	if status.Installed {
		t.Fatal("present engine should not be reinstalled")
	}
	if !status.Restarted || !runner.Ran("systemctl restart docker") {
		t.Fatalf("expected engine restart, lines=%v", runner.Lines())
	}
	if len(groups.calls) != 1 || groups.calls[0] != "arm:docker" {
		t.Fatalf("unexpected group grants %v", groups.calls)
	}
	if runner.Ran("sh") {
		t.Fatal("install script must not run when engine is present")
	}
}

func TestEnsureContainerRuntimeInstalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "#!/bin/sh\necho installing\n")
	}))
	defer srv.Close()

	fake := testsupport.NewFakeRunner().Installed("systemctl", "/usr/bin/systemctl")
	runner := installRunner{fake}
	installer := NewRuntimeInstaller(runner, &recordingGroups{}, engineConfig(srv.URL), logging.NewNop())

	status, err := installer.EnsureContainerRuntime(context.Background(), "arm")
	if err != nil {
		t.Fatalf("EnsureContainerRuntime: %v", err)
	}
	if !status.Installed || status.Binary != "/usr/bin/docker" {
		t.Fatalf("unexpected status %+v", status)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one download, got %d", hits.Load())
	}
	var script string
	for _, call := range fake.Calls() {
		if call.Name == "sh" {
			script = call.Stdin
		}
	}
	if !strings.Contains(script, "echo installing") {
		t.Fatalf("install script not piped to sh, got %q", script)
	}
}

func TestEnsureContainerRuntimeInstallFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "exit 1\n")
	}))
	defer srv.Close()

	runner := testsupport.NewFakeRunner().On("sh", "", errors.New("exit status 1"))
	groups := &recordingGroups{}
	installer := NewRuntimeInstaller(runner, groups, engineConfig(srv.URL), logging.NewNop())

	if _, err := installer.EnsureContainerRuntime(context.Background(), "arm"); err == nil {
		t.Fatal("expected install failure")
	}
	if len(groups.calls) != 0 {
		t.Fatal("groups must not be granted after a failed install")
	}
}

func TestEnsureContainerRuntimeDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	runner := testsupport.NewFakeRunner()
	installer := NewRuntimeInstaller(runner, &recordingGroups{}, engineConfig(srv.URL), logging.NewNop())
	if _, err := installer.EnsureContainerRuntime(context.Background(), "arm"); err == nil {
		t.Fatal("expected download failure")
	}
	if runner.Ran("sh") {
		t.Fatal("sh must not run without a script")
	}
}

func TestEnsureContainerRuntimeStillMissingAfterInstall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "true\n")
	}))
	defer srv.Close()

	installer := NewRuntimeInstaller(testsupport.NewFakeRunner(), &recordingGroups{}, engineConfig(srv.URL), logging.NewNop())
	if _, err := installer.EnsureContainerRuntime(context.Background(), "arm"); err == nil {
		t.Fatal("expected error when docker is still missing")
	}
}

func TestEnsureContainerRuntimeWithoutSystemctl(t *testing.T) {
	runner := testsupport.NewFakeRunner().Installed("docker", "/usr/bin/docker")
	installer := NewRuntimeInstaller(runner, &recordingGroups{}, engineConfig(""), logging.NewNop())
	status, err := installer.EnsureContainerRuntime(context.Background(), "arm")
	if err != nil {
		t.Fatalf("EnsureContainerRuntime: %v", err)
	}
	if status.Restarted {
		t.Fatal("restart should be skipped without systemctl")
	}
}

func TestEnsureContainerRuntimeRestartFailure(t *testing.T) {
	runner := testsupport.NewFakeRunner().
		Installed("docker", "/usr/bin/docker").
		Installed("systemctl", "/usr/bin/systemctl").
		On("systemctl restart docker", "", errors.New("unit not found"))
	installer := NewRuntimeInstaller(runner, &recordingGroups{}, engineConfig(""), logging.NewNop())
	if _, err := installer.EnsureContainerRuntime(context.Background(), "arm"); err == nil {
		t.Fatal("expected restart error")
	}
}

type fakeSource struct {
	body string
	err  error
	refs []string
}

func (s *fakeSource) PullStream(_ context.Context, ref string) (io.ReadCloser, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestImagePullerDrainsStream(t *testing.T) {
	source := &fakeSource{body: strings.Join([]string{
		`{"status":"Pulling from automaticrippingmachine/automatic-ripping-machine","id":"latest"}`,
		`{"status":"Downloading","id":"abc","progressDetail":{"current":1,"total":2}}`,
		`{"status":"Status: Downloaded newer image for automaticrippingmachine/automatic-ripping-machine:latest"}`,
	}, "\n")}
	puller := NewImagePuller(source, 0, logging.NewNop())
	if err := puller.Pull(context.Background(), "automaticrippingmachine/automatic-ripping-machine:latest"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(source.refs) != 1 || source.refs[0] != "automaticrippingmachine/automatic-ripping-machine:latest" {
		t.Fatalf("unexpected refs %v", source.refs)
	}
}

func TestImagePullerReportsInStreamError(t *testing.T) {
	source := &fakeSource{body: `{"status":"Pulling"}` + "\n" +
		`{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n"}
	puller := NewImagePuller(source, 0, logging.NewNop())
	err := puller.Pull(context.Background(), "fork/arm:missing")
	if err == nil || !strings.Contains(err.Error(), "manifest unknown") {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestImagePullerTransportError(t *testing.T) {
	puller := NewImagePuller(&fakeSource{err: errors.New("connection refused")}, 0, logging.NewNop())
	if err := puller.Pull(context.Background(), "fork/arm:latest"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestDrainPullStreamMalformed(t *testing.T) {
	if _, err := drainPullStream(strings.NewReader("{not json"), nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDrainPullStreamProgressAndLegacyError(t *testing.T) {
	stream := `{"status":"Downloading","id":"abc","progressDetail":{"current":50,"total":100}}` + "\n" +
		`{"status":"Pull complete","id":"abc"}` + "\n"
	var seen []pullMessage
	last, err := drainPullStream(strings.NewReader(stream), func(msg pullMessage) { seen = append(seen, msg) })
	if err != nil {
		t.Fatalf("drainPullStream: %v", err)
	}
	if last != "Pull complete" {
		t.Fatalf("last status = %q", last)
	}
	if len(seen) != 2 || seen[0].Progress == nil || seen[0].Progress.Current != 50 || seen[0].Progress.Total != 100 {
		t.Fatalf("unexpected messages %+v", seen)
	}

	_, err = drainPullStream(strings.NewReader(`{"error":"toomanyrequests"}`+"\n"), nil)
	if err == nil || err.Error() != "toomanyrequests" {
		t.Fatalf("expected legacy error field to fail the pull, got %v", err)
	}
}
