package launch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ContainerPort is the port the ARM web UI listens on inside the container.
const ContainerPort = 8080

// Mount binds a host directory into the container.
type Mount struct {
	Name          string
	HostPath      string
	ContainerPath string
}

// Config is the launch configuration rendered into the script.
type Config struct {
	Image         string
	HostPort      int
	UID           int
	GID           int
	Timezone      string
	Mounts        []Mount
	Devices       []string
	GPU           bool
	CPUSet        []int
	ContainerName string
}

// Validate checks the invariants the script relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Image) == "" {
		return fmt.Errorf("image reference is empty")
	}
	if c.HostPort < 1 || c.HostPort > 65535 {
		return fmt.Errorf("host port %d out of range", c.HostPort)
	}
	if c.UID <= 0 || c.GID <= 0 {
		return fmt.Errorf("uid and gid must be positive, got %d:%d", c.UID, c.GID)
	}
	if strings.TrimSpace(c.Timezone) == "" {
		return fmt.Errorf("timezone is empty")
	}
	if strings.TrimSpace(c.ContainerName) == "" {
		return fmt.Errorf("container name is empty")
	}
	if err := validateMounts(c.Mounts); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Devices))
	for _, device := range c.Devices {
		if !filepath.IsAbs(device) {
			return fmt.Errorf("device %q is not an absolute path", device)
		}
		if _, dup := seen[device]; dup {
			return fmt.Errorf("device %s listed twice", device)
		}
		seen[device] = struct{}{}
	}
	for _, core := range c.CPUSet {
		if core < 0 {
			return fmt.Errorf("cpu index %d is negative", core)
		}
	}
	return nil
}

func validateMounts(mounts []Mount) error {
	if len(mounts) != len(logicalDirs) {
		return fmt.Errorf("expected %d mounts, got %d", len(logicalDirs), len(mounts))
	}
	seen := make(map[string]struct{}, len(mounts))
	for _, m := range mounts {
		if _, ok := containerPaths[m.Name]; !ok {
			return fmt.Errorf("unknown mount %q", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("mount %q listed twice", m.Name)
		}
		seen[m.Name] = struct{}{}
		if !filepath.IsAbs(m.HostPath) || !filepath.IsAbs(m.ContainerPath) {
			return fmt.Errorf("mount %q needs absolute paths", m.Name)
		}
	}
	return nil
}
