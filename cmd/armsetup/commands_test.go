package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"armsetup/internal/optical"
	"armsetup/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "automaticrippingmachine/automatic-ripping-machine:latest")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitHonorsConfigFlag(t *testing.T) {
	target := filepath.Join(t.TempDir(), "armsetup.toml")
	out, _, err := runCLI(t, []string{"config", "init"}, target, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	out, _, err = runCLI(t, []string{"config", "validate"}, target, "")
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	testsupport.WriteFile(t, path, "[launch]\nhost_port = 70000\n", 0o644)

	if _, _, err := runCLI(t, []string{"config", "validate"}, path, ""); err == nil {
		t.Fatal("expected out-of-range port to fail validation")
	}
}

func TestRenderPrintsScriptWithoutProvisioning(t *testing.T) {
	env := setupCLITestEnv(t)
	host := installFakeHost(t, "/dev/sr0", "/dev/sr1")

	out, _, err := runCLI(t, []string{"render", "--fork", "myfork", "--tag", "2.6.0", "--port", "9090"}, env.configPath, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	uid, gid := testIDs()
	home := env.cfg.Service.Home
	requireContains(t, out, "#!/bin/bash\n")
	requireContains(t, out, "-p 9090:8080 \\")
	requireContains(t, out, "-e ARM_UID="+strconv.Itoa(uid)+" \\")
	requireContains(t, out, "-e ARM_GID="+strconv.Itoa(gid)+" \\")
	requireContains(t, out, "-e TZ=Europe/Berlin \\")
	requireContains(t, out, "-v "+home+"/config:/etc/arm/config \\")
	requireContains(t, out, "--device=/dev/sr0:/dev/sr0 \\")
	requireContains(t, out, "--device=/dev/sr1:/dev/sr1 \\")
	requireContains(t, out, "--cpuset-cpus=0,1,2 \\")
	requireContains(t, out, "myfork/automatic-ripping-machine:2.6.0\n")
	if strings.Contains(out, "--gpus") {
		t.Fatalf("render without --gpu should not enable GPU passthrough\n%s", out)
	}

	if host.accounts.ensured != 0 {
		t.Fatalf("render provisioned the account %d times", host.accounts.ensured)
	}
	if len(host.puller.pulls) != 0 {
		t.Fatalf("render pulled images: %v", host.puller.pulls)
	}
	if _, err := os.Stat(env.cfg.ScriptPath(home)); !os.IsNotExist(err) {
		t.Fatalf("render wrote the launch script: %v", err)
	}
}

func TestRenderWithoutAccountNeedsIDs(t *testing.T) {
	env := setupCLITestEnv(t)
	host := installFakeHost(t, "/dev/sr0")
	host.accounts.lookupErr = errNoAccount

	_, _, err := runCLI(t, []string{"render"}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "--uid") {
		t.Fatalf("expected hint about --uid/--gid, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"render", "--uid", "1500"}, env.configPath, ""); err == nil {
		t.Fatal("expected --uid without --gid to fail")
	}

	out, _, err := runCLI(t, []string{"render", "--uid", "1500", "--gid", "1600", "--gpu", "yes"}, env.configPath, "")
	if err != nil {
		t.Fatalf("render with ids: %v", err)
	}
	requireContains(t, out, "-e ARM_UID=1500 \\")
	requireContains(t, out, "-e ARM_GID=1600 \\")
	requireContains(t, out, "--gpus all \\")
	requireContains(t, out, "-e NVIDIA_DRIVER_CAPABILITIES=all \\")
}

func TestRenderOutputKeepsBackup(t *testing.T) {
	env := setupCLITestEnv(t)
	installFakeHost(t, "/dev/sr0")

	target := filepath.Join(t.TempDir(), "start_arm_container.sh")
	testsupport.WriteFile(t, target, "old script\n", 0o755)

	out, _, err := runCLI(t, []string{"render", "--output", target}, env.configPath, "")
	if err != nil {
		t.Fatalf("render --output: %v", err)
	}
	requireContains(t, out, "Wrote "+target)
	requireContains(t, out, "Previous script saved as "+target+".bak")

	if got := testsupport.ReadFile(t, target+".bak"); got != "old script\n" {
		t.Fatalf("backup content = %q", got)
	}
	requireContains(t, testsupport.ReadFile(t, target), "--device=/dev/sr0:/dev/sr0")
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat script: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("script mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestInstallRunsEveryStage(t *testing.T) {
	env := setupCLITestEnv(t)
	host := installFakeHost(t, "/dev/sr0")

	out, _, err := runCLI(t, []string{"install", "--tag", "2.6.0"}, env.configPath, "y\n")
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	for _, label := range []string{"Privilege:", "Account:", "Runtime:", "Image:", "Mounts:", "Facts:", "Devices:", "GPU:", "Render:"} {
		requireContains(t, out, label)
	}
	requireContains(t, out, "Enable NVIDIA GPU passthrough? [y/N]:")

	script := env.cfg.ScriptPath(env.cfg.Service.Home)
	requireContains(t, out, "Launch script written to "+script)
	content := testsupport.ReadFile(t, script)
	requireContains(t, content, "--gpus all")
	requireContains(t, content, "automaticrippingmachine/automatic-ripping-machine:2.6.0")

	if len(host.puller.pulls) != 1 || host.puller.pulls[0] != "automaticrippingmachine/automatic-ripping-machine:2.6.0" {
		t.Fatalf("pulls = %v", host.puller.pulls)
	}
	for _, dir := range []string{"music", "logs", "media", "config"} {
		if info, err := os.Stat(filepath.Join(env.cfg.Service.Home, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected mount directory %s: %v", dir, err)
		}
	}
}

func TestInstallRejectsUnknownGPUChoice(t *testing.T) {
	env := setupCLITestEnv(t)
	host := installFakeHost(t)

	_, _, err := runCLI(t, []string{"install", "--gpu", "maybe"}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "--gpu") {
		t.Fatalf("expected --gpu error, got %v", err)
	}
	if host.accounts.ensured != 0 {
		t.Fatal("install provisioned despite invalid flags")
	}
}

func TestDetectPrintsEverySection(t *testing.T) {
	env := setupCLITestEnv(t)
	installFakeHost(t, "/dev/sr0")

	out, _, err := runCLI(t, []string{"detect"}, env.configPath, "")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for _, heading := range []string{"== Service Account ==", "== Host Facts ==", "== Optical Drives ==", "== GPU ==", "== Dependencies ==", "== Preflight =="} {
		requireContains(t, out, heading)
	}
	requireContains(t, out, "Europe/Berlin")
	requireContains(t, out, "0,1,2")
	requireContains(t, out, "/dev/sr0")
	requireContains(t, out, "Container engine")
}

func TestUdevRulePrintAndInstall(t *testing.T) {
	env := setupCLITestEnv(t)
	host := installFakeHost(t)

	want, err := optical.RenderUdevRule("/opt/arm/wrapper.sh")
	if err != nil {
		t.Fatalf("RenderUdevRule: %v", err)
	}

	out, _, err := runCLI(t, []string{"udev-rule", "--wrapper", "/opt/arm/wrapper.sh"}, env.configPath, "")
	if err != nil {
		t.Fatalf("udev-rule: %v", err)
	}
	if out != want {
		t.Fatalf("printed rule = %q, want %q", out, want)
	}
	if host.runner.Ran("udevadm") {
		t.Fatal("printing the rule should not touch udev")
	}

	if _, err := os.Stat(filepath.Dir(env.cfg.Paths.UdevRule)); !os.IsNotExist(err) {
		t.Fatalf("rules directory should start absent, stat err=%v", err)
	}
	out, _, err = runCLI(t, []string{"udev-rule", "--wrapper", "/opt/arm/wrapper.sh", "--install"}, env.configPath, "")
	if err != nil {
		t.Fatalf("udev-rule --install: %v", err)
	}
	requireContains(t, out, "Installed "+env.cfg.Paths.UdevRule)
	if got := testsupport.ReadFile(t, env.cfg.Paths.UdevRule); got != want {
		t.Fatalf("installed rule = %q", got)
	}
	if !host.runner.Ran("udevadm control --reload-rules") {
		t.Fatalf("expected udev reload, calls: %v", host.runner.Lines())
	}
}

func TestEntrypointRejectsInvalidIDs(t *testing.T) {
	t.Setenv("ARM_UID", "abc")
	t.Setenv("ARM_GID", "1000")

	if _, _, err := runCLI(t, []string{"entrypoint", "true"}, "", ""); err == nil {
		t.Fatal("expected invalid ARM_UID to fail")
	}
}
