package hostfacts

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"armsetup/internal/account"
	"armsetup/internal/hostexec"
	"armsetup/internal/logging"
)

// DefaultTimezone is used when the clock service cannot report one.
const DefaultTimezone = "UTC"

// Facts captures detected host properties.
type Facts struct {
	UID      int
	GID      int
	Home     string
	Timezone string
	CPUCount int
	CPUSet   []int
	Warnings []string
}

// Detector probes the host.
type Detector struct {
	runner   hostexec.Runner
	logger   *slog.Logger
	timeout  time.Duration
	cpuCount func() (int, error)
}

// NewDetector constructs a Detector. timeout bounds each external probe.
func NewDetector(runner hostexec.Runner, logger *slog.Logger, timeout time.Duration) *Detector {
	return &Detector{
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "hostfacts"),
		timeout:  timeout,
		cpuCount: affinityCPUCount,
	}
}

// Detect gathers facts for the provisioned account.
func (d *Detector) Detect(ctx context.Context, acct account.Account) Facts {
	facts := Facts{UID: acct.UID, GID: acct.GID, Home: acct.Home}

	tz, err := d.Timezone(ctx)
	if err != nil {
		facts.Warnings = append(facts.Warnings, fmt.Sprintf("timezone unavailable (%v); using %s", err, DefaultTimezone))
		logging.WarnWithContext(ctx, d.logger, "timezone detection failed", "timezone_default",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set the host timezone with timedatectl set-timezone"),
			logging.String(logging.FieldImpact, "container clock uses "+DefaultTimezone),
		)
		tz = DefaultTimezone
	}
	facts.Timezone = tz

	count, err := d.cpuCount()
	if err != nil || count < 1 {
		if err == nil {
			err = fmt.Errorf("reported %d cpus", count)
		}
		facts.Warnings = append(facts.Warnings, fmt.Sprintf("cpu count unavailable (%v); assuming 1", err))
		logging.WarnWithContext(ctx, d.logger, "cpu detection failed", "cpu_count_default",
			logging.Error(err),
			logging.String(logging.FieldImpact, "container pinned to core 0"),
		)
		count = 1
	}
	facts.CPUCount = count
	facts.CPUSet = PinningSet(count)

	d.logger.InfoContext(ctx, "host facts detected",
		logging.Int("uid", facts.UID),
		logging.Int("gid", facts.GID),
		logging.String("timezone", facts.Timezone),
		logging.Int("cpus", facts.CPUCount),
		logging.String("cpuset", FormatCPUSet(facts.CPUSet)),
	)
	return facts
}

// Timezone asks the clock service for the configured IANA zone.
func (d *Detector) Timezone(ctx context.Context) (string, error) {
	probeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	out, err := d.runner.Run(probeCtx, "timedatectl", "show", "--property=Timezone", "--value")
	if err != nil {
		return "", fmt.Errorf("timedatectl: %w", err)
	}
	tz := strings.TrimSpace(string(out))
	if tz == "" || strings.ContainsAny(tz, " \t\n") {
		return "", fmt.Errorf("timedatectl returned %q", tz)
	}
	return tz, nil
}

// PinningSet reserves core 0 for the host when more than one core exists.
func PinningSet(cpus int) []int {
	if cpus <= 1 {
		return []int{0}
	}
	set := make([]int, 0, cpus-1)
	for i := 1; i < cpus; i++ {
		set = append(set, i)
	}
	return set
}

// FormatCPUSet renders a pinning set in the comma form docker accepts. The
// launch script and the stage report both use it.
func FormatCPUSet(set []int) string {
	parts := make([]string, len(set))
	for i, core := range set {
		parts[i] = strconv.Itoa(core)
	}
	return strings.Join(parts, ",")
}

func affinityCPUCount() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		if n := runtime.NumCPU(); n > 0 {
			return n, nil
		}
		return 0, fmt.Errorf("sched_getaffinity: %w", err)
	}
	return set.Count(), nil
}
