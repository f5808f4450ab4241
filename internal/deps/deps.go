package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external command the setup tool relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// HostRequirements lists the host commands used by the install pipeline.
// docker is optional here because the runtime stage installs it.
func HostRequirements() []Requirement {
	return []Requirement{
		{Name: "Docker", Command: "docker", Description: "Container engine; installed when missing", Optional: true},
		{Name: "useradd", Command: "useradd", Description: "Creates the service account"},
		{Name: "groupadd", Command: "groupadd", Description: "Creates the service group"},
		{Name: "usermod", Command: "usermod", Description: "Adds the service account to device groups"},
		{Name: "chpasswd", Command: "chpasswd", Description: "Sets the service account password", Optional: true},
		{Name: "systemctl", Command: "systemctl", Description: "Restarts the container engine", Optional: true},
		{Name: "timedatectl", Command: "timedatectl", Description: "Reports the host timezone", Optional: true},
		{Name: "lsscsi", Command: "lsscsi", Description: "Classifies SCSI optical drives", Optional: true},
		{Name: "udevadm", Command: "udevadm", Description: "Looks up block device properties", Optional: true},
		{Name: "lsblk", Command: "lsblk", Description: "Reads disc labels", Optional: true},
	}
}

// ContainerRequirements lists the commands the container entrypoint uses.
func ContainerRequirements() []Requirement {
	return []Requirement{
		{Name: "groupadd", Command: "groupadd", Description: "Creates the arm group"},
		{Name: "groupmod", Command: "groupmod", Description: "Aligns the arm group id"},
		{Name: "useradd", Command: "useradd", Description: "Creates the arm user"},
		{Name: "usermod", Command: "usermod", Description: "Aligns the arm user id"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the unavailable, non-optional statuses.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// Names joins the commands of statuses for error messages.
func Names(statuses []Status) string {
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, status.Command)
	}
	return strings.Join(names, ", ")
}
