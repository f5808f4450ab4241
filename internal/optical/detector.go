package optical

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"armsetup/internal/logging"
)

// Probe enumerates optical device paths through one strategy.
type Probe interface {
	Name() string
	Devices(ctx context.Context) ([]string, error)
}

// ProbeReport records what a single probe returned.
type ProbeReport struct {
	Name    string
	Devices []string
	Err     error
}

// Result is the union of all probe outputs.
type Result struct {
	// Devices is deduplicated by path and keeps first-seen order.
	Devices []string
	Probes  []ProbeReport
}

// Detector runs every probe and unions the results.
type Detector struct {
	probes  []Probe
	timeout time.Duration
	logger  *slog.Logger
}

// NewDetector constructs a Detector. timeout bounds each probe individually.
func NewDetector(logger *slog.Logger, timeout time.Duration, probes ...Probe) *Detector {
	return &Detector{
		probes:  probes,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "optical"),
	}
}

// Detect runs all probes. Probe failures are logged and otherwise ignored;
// finding no devices is not an error.
func (d *Detector) Detect(ctx context.Context) Result {
	var result Result
	var all []string
	for _, probe := range d.probes {
		devices, err := d.run(ctx, probe)
		result.Probes = append(result.Probes, ProbeReport{Name: probe.Name(), Devices: devices, Err: err})
		if err != nil {
			logging.WarnWithContext(ctx, d.logger, "optical probe failed", "optical_probe_failed",
				logging.String("probe", probe.Name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "devices from this probe are not included"),
			)
			continue
		}
		d.logger.DebugContext(ctx, "optical probe finished",
			logging.String("probe", probe.Name()),
			logging.Int("devices", len(devices)),
		)
		all = append(all, devices...)
	}
	result.Devices = lo.Uniq(all)
	if len(result.Devices) == 0 {
		logging.WarnWithContext(ctx, d.logger, "no optical drives detected", "optical_none",
			logging.String(logging.FieldErrorHint, "connect a drive and re-run, or edit the launch script"),
			logging.String(logging.FieldImpact, "launch script will not pass through any drive"),
		)
	}
	return result
}

func (d *Detector) run(ctx context.Context, probe Probe) ([]string, error) {
	probeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return probe.Devices(probeCtx)
}
