package optical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"armsetup/internal/hostexec"
)

// ReadLabel returns the disc label lsblk reports for device.
func ReadLabel(ctx context.Context, runner hostexec.Runner, device string, timeout time.Duration) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", fmt.Errorf("no device specified")
	}

	lsblkCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lsblkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := runner.Run(lsblkCtx, "lsblk", "-P", "-n", "-o", "LABEL,FSTYPE", device)
	if err != nil {
		return "", fmt.Errorf("failed to run lsblk: %w", err)
	}

	label, fstype := ParseLSBLKLabelFSType(string(output))
	if strings.TrimSpace(label) != "" && strings.TrimSpace(fstype) != "" {
		return label, nil
	}
	return "", fmt.Errorf("no disc label found")
}

// ParseLSBLKLabelFSType parses lsblk -P output and returns the first LABEL/FSTYPE pair.
func ParseLSBLKLabelFSType(output string) (string, string) {
	for _, line := range strings.Split(output, "\n") {
		data := parseLSBLKKeyValueLine(strings.TrimSpace(line))
		if len(data) == 0 {
			continue
		}
		return data["LABEL"], data["FSTYPE"]
	}
	return "", ""
}

// parseLSBLKKeyValueLine splits KEY="VALUE" pairs, honouring spaces inside
// quoted values.
func parseLSBLKKeyValueLine(line string) map[string]string {
	result := make(map[string]string)
	for line != "" {
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			break
		}
		key = strings.TrimSpace(key)
		var value string
		if strings.HasPrefix(rest, "\"") {
			end := strings.Index(rest[1:], "\"")
			if end < 0 {
				value, line = rest[1:], ""
			} else {
				value, line = rest[1:end+1], strings.TrimSpace(rest[end+2:])
			}
		} else {
			value, line, _ = strings.Cut(rest, " ")
			line = strings.TrimSpace(line)
		}
		result[key] = value
	}
	return result
}
