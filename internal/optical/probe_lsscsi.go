package optical

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"armsetup/internal/hostexec"
)

// LsscsiProbe classifies SCSI devices with lsscsi.
type LsscsiProbe struct {
	Runner hostexec.Runner
}

func (LsscsiProbe) Name() string { return "lsscsi" }

func (p LsscsiProbe) Devices(ctx context.Context) ([]string, error) {
	if _, err := p.Runner.LookPath("lsscsi"); err != nil {
		return nil, fmt.Errorf("lsscsi not installed: %w", err)
	}
	out, err := p.Runner.Run(ctx, "lsscsi")
	if err != nil {
		return nil, fmt.Errorf("run lsscsi: %w", err)
	}
	return ParseLsscsi(string(out)), nil
}

// ParseLsscsi returns the device nodes of rows classified as optical.
func ParseLsscsi(output string) []string {
	var devices []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(fields[1]), "cd") {
			continue
		}
		node := fields[len(fields)-1]
		if !strings.HasPrefix(node, "/dev/") {
			continue
		}
		devices = append(devices, node)
	}
	return devices
}
