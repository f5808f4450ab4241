package optical

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"armsetup/internal/hostexec"
)

// skippedBlockPrefixes never carry optical media.
var skippedBlockPrefixes = []string{"loop", "ram", "zram", "dm-", "md", "nbd"}

// SysfsProbe enumerates block devices in sysfs and asks udev for their
// properties.
type SysfsProbe struct {
	Runner    hostexec.Runner
	SysfsRoot string
}

func (SysfsProbe) Name() string { return "sysfs+udevadm" }

func (p SysfsProbe) Devices(ctx context.Context) ([]string, error) {
	root := p.SysfsRoot
	if root == "" {
		root = "/sys"
	}
	entries, err := os.ReadDir(filepath.Join(root, "block"))
	if err != nil {
		return nil, fmt.Errorf("list block devices: %w", err)
	}

	var devices []string
	for _, entry := range entries {
		name := entry.Name()
		if hasAnyPrefix(name, skippedBlockPrefixes) {
			continue
		}
		node := "/dev/" + name
		out, err := p.Runner.Run(ctx, "udevadm", "info", "--query=property", "--name="+node)
		if err != nil {
			if ctx.Err() != nil {
				return devices, ctx.Err()
			}
			continue
		}
		if IsOpticalProperties(ParseProperties(string(out))) {
			devices = append(devices, node)
		}
	}
	return devices, nil
}

// ParseProperties parses KEY=VALUE lines as printed by udevadm and lsblk -P.
// Surrounding double quotes are stripped from values.
func ParseProperties(output string) map[string]string {
	result := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"")
	}
	return result
}

// IsOpticalProperties reports whether udev classified the device as optical.
func IsOpticalProperties(props map[string]string) bool {
	return props["ID_CDROM"] == "1" || props["ID_TYPE"] == "cd"
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
