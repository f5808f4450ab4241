package launch

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"armsetup/internal/hostfacts"
)

func sampleConfig(home string) Config {
	return Config{
		Image:         "automaticrippingmachine/automatic-ripping-machine:latest",
		HostPort:      8080,
		UID:           1001,
		GID:           1002,
		Timezone:      "UTC",
		Mounts:        Mounts(home),
		ContainerName: "arm-rippers",
		CPUSet:        []int{1, 2, 3},
	}
}

func render(t *testing.T, cfg Config) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, cfg); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			n++
		}
	}
	return n
}

func TestRenderGolden(t *testing.T) {
	cfg := sampleConfig("/home/arm")
	cfg.Devices = []string{"/dev/sr0", "/dev/sr1"}
	cfg.GPU = true

	want := `#!/bin/bash
# Automatic Ripping Machine launch script.
# Generated by armsetup; re-run "armsetup install" to regenerate it.

docker run -d \
    -p 8080:8080 \
    -e ARM_UID=1001 \
    -e ARM_GID=1002 \
    -e TZ=UTC \
    -v /home/arm/music:/home/arm/music \
    -v /home/arm/logs:/home/arm/logs \
    -v /home/arm/media:/home/arm/media \
    -v /home/arm/config:/etc/arm/config \
    --device=/dev/sr0:/dev/sr0 \
    --device=/dev/sr1:/dev/sr1 \
    --gpus all \
    -e NVIDIA_DRIVER_CAPABILITIES=all \
    --privileged \
    --restart always \
    --name arm-rippers \
    --cpuset-cpus=1,2,3 \
    automaticrippingmachine/automatic-ripping-machine:latest
`
	if got := render(t, cfg); got != want {
		t.Fatalf("rendered script mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderFourMountsRegardlessOfDevices(t *testing.T) {
	for _, devices := range [][]string{nil, {"/dev/sr0"}, {"/dev/sr0", "/dev/sr1", "/dev/sr2"}} {
		cfg := sampleConfig("/srv/arm")
		cfg.Devices = devices
		lines := strings.Split(render(t, cfg), "\n")
		if got := countPrefix(lines, "-v "); got != 4 {
			t.Fatalf("devices=%v: expected 4 mounts, got %d", devices, got)
		}
		if got := countPrefix(lines, "--device="); got != len(devices) {
			t.Fatalf("devices=%v: expected %d device flags, got %d", devices, len(devices), got)
		}
	}
}

func TestRenderDeviceOrderMatchesInput(t *testing.T) {
	cfg := sampleConfig("/home/arm")
	cfg.Devices = []string{"/dev/sr1", "/dev/sr0"}
	out := render(t, cfg)
	first := strings.Index(out, "--device=/dev/sr1:/dev/sr1")
	second := strings.Index(out, "--device=/dev/sr0:/dev/sr0")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("device order not preserved:\n%s", out)
	}
}

func TestRenderGPUFlagsOnlyWhenEnabled(t *testing.T) {
	cfg := sampleConfig("/home/arm")
	if out := render(t, cfg); strings.Contains(out, "--gpus") || strings.Contains(out, "NVIDIA_DRIVER_CAPABILITIES") {
		t.Fatalf("GPU flags rendered while disabled:\n%s", out)
	}
	cfg.GPU = true
	out := render(t, cfg)
	if !strings.Contains(out, "--gpus all") || !strings.Contains(out, "NVIDIA_DRIVER_CAPABILITIES=all") {
		t.Fatalf("GPU flags missing while enabled:\n%s", out)
	}
}

func TestRenderImageIsLastArgument(t *testing.T) {
	out := strings.TrimRight(render(t, sampleConfig("/home/arm")), "\n")
	lines := strings.Split(out, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last != "automaticrippingmachine/automatic-ripping-machine:latest" {
		t.Fatalf("unexpected last line %q", last)
	}
	for _, line := range lines[4 : len(lines)-1] {
		if !strings.HasSuffix(line, `\`) {
			t.Fatalf("continuation missing on %q", line)
		}
	}
}

func TestRenderOmitsEmptyCPUSet(t *testing.T) {
	cfg := sampleConfig("/home/arm")
	cfg.CPUSet = nil
	if out := render(t, cfg); strings.Contains(out, "--cpuset-cpus") {
		t.Fatalf("cpuset rendered for empty set:\n%s", out)
	}
	cfg.CPUSet = []int{0}
	if out := render(t, cfg); !strings.Contains(out, "--cpuset-cpus=0 \\") {
		t.Fatalf("single-core cpuset missing:\n%s", out)
	}
}

func TestRenderCPUSetMatchesStageReport(t *testing.T) {
	cfg := sampleConfig("/home/arm")
	cfg.CPUSet = hostfacts.PinningSet(8)
	want := "--cpuset-cpus=" + hostfacts.FormatCPUSet(cfg.CPUSet) + " \\"
	if out := render(t, cfg); !strings.Contains(out, want) {
		t.Fatalf("expected %q in script:\n%s", want, out)
	}
}

func TestRenderQuotesUnsafeValues(t *testing.T) {
	cfg := sampleConfig("/home/my arm")
	out := render(t, cfg)
	if !strings.Contains(out, "-v '/home/my arm/music:/home/arm/music' \\") {
		t.Fatalf("path with space not quoted:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	base := sampleConfig("/home/arm")
	cases := map[string]func(*Config){
		"empty image":     func(c *Config) { c.Image = " " },
		"port zero":       func(c *Config) { c.HostPort = 0 },
		"root uid":        func(c *Config) { c.UID = 0 },
		"empty timezone":  func(c *Config) { c.Timezone = "" },
		"missing mount":   func(c *Config) { c.Mounts = c.Mounts[:3] },
		"duplicate mount": func(c *Config) { c.Mounts[3] = c.Mounts[0] },
		"duplicate dev":   func(c *Config) { c.Devices = []string{"/dev/sr0", "/dev/sr0"} },
		"relative dev":    func(c *Config) { c.Devices = []string{"sr0"} },
		"negative cpu":    func(c *Config) { c.CPUSet = []int{-1} },
		"no name":         func(c *Config) { c.ContainerName = "" },
	}
	for name, mutate := range cases {
		cfg := base
		cfg.Mounts = append([]Mount(nil), base.Mounts...)
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
}

func TestPrepareMountsIdempotent(t *testing.T) {
	home := t.TempDir()
	uid, gid := os.Getuid(), os.Getgid()

	first, err := PrepareMounts(home, uid, gid)
	if err != nil {
		t.Fatalf("PrepareMounts: %v", err)
	}
	second, err := PrepareMounts(home, uid, gid)
	if err != nil {
		t.Fatalf("second PrepareMounts: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("mount lists differ: %v vs %v", first, second)
	}
	entries, err := os.ReadDir(home)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 directories, got %d", len(entries))
	}
	for _, m := range first {
		info, err := os.Stat(m.HostPath)
		if err != nil {
			t.Fatal(err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0o755 {
			t.Fatalf("%s: unexpected mode %v", m.HostPath, info.Mode())
		}
	}
}

func TestPrepareMountsRejectsRelativeHome(t *testing.T) {
	if _, err := PrepareMounts("relative/home", -1, -1); err == nil {
		t.Fatal("expected error for relative home")
	}
}

func TestWriteScriptBacksUpPreviousScript(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "start_arm_container.sh")
	owner := Owner{UID: os.Getuid(), GID: os.Getgid()}

	cfg := sampleConfig(home)
	backup, err := WriteScript(path, cfg, owner)
	if err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	if backup != "" {
		t.Fatalf("first write should not create a backup, got %q", backup)
	}
	firstContent, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg.GPU = true
	backup, err = WriteScript(path, cfg, owner)
	if err != nil {
		t.Fatalf("second WriteScript: %v", err)
	}
	if backup != path+".bak" {
		t.Fatalf("unexpected backup path %q", backup)
	}
	preserved, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(preserved, firstContent) {
		t.Fatal("backup does not hold the previous script")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("script mode = %o", info.Mode().Perm())
	}
}

func TestWriteScriptRenderFailureWritesNothing(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "start_arm_container.sh")
	if err := os.WriteFile(path, []byte("previous"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := sampleConfig(home)
	cfg.Image = ""
	if _, err := WriteScript(path, cfg, Owner{UID: -1, GID: -1}); err == nil {
		t.Fatal("expected render error")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "previous" {
		t.Fatalf("existing script modified: %q", got)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Fatal("no backup should exist after a failed render")
	}
}
