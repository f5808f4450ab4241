package hostfacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"armsetup/internal/hostexec"
)

// nvidiaVendorID is the PCI vendor id NVIDIA devices report in sysfs.
const nvidiaVendorID = "0x10de"

// GPUProbe reports whether GPU passthrough is plausible on this host. It is
// advisory; the operator's answer decides whether GPU flags are emitted.
type GPUProbe interface {
	Available(ctx context.Context) (bool, string)
}

// NvidiaProbe looks for nvidia-smi or an NVIDIA display controller in sysfs.
type NvidiaProbe struct {
	Runner    hostexec.Runner
	SysfsRoot string
}

func (p NvidiaProbe) Available(ctx context.Context) (bool, string) {
	if p.Runner != nil {
		if path, err := p.Runner.LookPath("nvidia-smi"); err == nil {
			return true, "nvidia-smi found at " + path
		}
	}
	root := p.SysfsRoot
	if root == "" {
		root = "/sys"
	}
	matches, _ := filepath.Glob(filepath.Join(root, "bus", "pci", "devices", "*", "vendor"))
	for _, vendorPath := range matches {
		if ctx.Err() != nil {
			break
		}
		vendor, err := os.ReadFile(vendorPath)
		if err != nil || strings.TrimSpace(string(vendor)) != nvidiaVendorID {
			continue
		}
		class, err := os.ReadFile(filepath.Join(filepath.Dir(vendorPath), "class"))
		// 0x03xxxx is the PCI display controller class.
		if err == nil && strings.HasPrefix(strings.TrimSpace(string(class)), "0x03") {
			return true, "NVIDIA display controller at " + filepath.Base(filepath.Dir(vendorPath))
		}
	}
	return false, "no NVIDIA GPU detected"
}
