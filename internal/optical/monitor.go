package optical

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"armsetup/internal/hostexec"
	"armsetup/internal/logging"
)

// Handler reacts to a disc insertion on device (for example /dev/sr0).
type Handler func(ctx context.Context, device string) error

// Monitor listens for udev netlink events and calls the handler whenever an
// optical drive reports media. It can stand in for the udev trigger rule.
type Monitor struct {
	logger  *slog.Logger
	handler Handler
	connect func() (*netlink.UEventConn, error)
}

// NewMonitor constructs a Monitor.
func NewMonitor(logger *slog.Logger, handler Handler) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "netlink-monitor"),
		handler: handler,
		connect: connectUdev,
	}
}

func connectUdev() (*netlink.UEventConn, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}
	return conn, nil
}

// Run blocks until ctx is cancelled. Failing to open the netlink socket is
// returned to the caller since the monitor has nothing else to do.
func (m *Monitor) Run(ctx context.Context) error {
	conn, err := m.connect()
	if err != nil {
		return fmt.Errorf("connect netlink socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, insertionMatcher())

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			m.logger.Info("netlink monitor stopped",
				logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
			)
			return nil
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(ctx, m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc insertions may be missed"),
			)
		}
	}
}

// insertionMatcher matches SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1,
// ACTION=change|add.
func insertionMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := extractDeviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("disc media detected via netlink",
		logging.String(logging.FieldEventType, "netlink_disc_detected"),
		logging.String(logging.FieldDevice, device),
		logging.String("action", string(uevent.Action)),
	)
	if m.handler == nil {
		return
	}
	if err := m.handler(ctx, device); err != nil {
		logging.WarnWithContext(ctx, m.logger, "disc insertion handler failed", "netlink_handler_failed",
			logging.Error(err),
			logging.String(logging.FieldDevice, device),
			logging.String(logging.FieldErrorHint, "check the wrapper command and its logs"),
			logging.String(logging.FieldImpact, "disc not ripped automatically"),
		)
	}
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := strings.TrimSpace(uevent.Env["DEVNAME"]); devname != "" {
		return devicePath(devname)
	}
	devpath := strings.TrimSpace(uevent.Env["DEVPATH"])
	if devpath == "" {
		return ""
	}
	name := filepath.Base(devpath)
	if name == "." || name == "/" {
		return ""
	}
	return "/dev/" + name
}

// WrapperHandler logs the disc label and runs wrapper with the kernel device
// name, the same argument udev passes as %k. An empty wrapper only logs.
func WrapperHandler(runner hostexec.Runner, logger *slog.Logger, wrapper string, timeout time.Duration) Handler {
	logger = logging.NewComponentLogger(logger, "disc-trigger")
	wrapper = strings.TrimSpace(wrapper)
	return func(ctx context.Context, device string) error {
		label, err := ReadLabel(ctx, runner, device, timeout)
		if err != nil {
			logger.Debug("disc label unavailable", logging.String(logging.FieldDevice, device), logging.Error(err))
		}
		logger.Info("disc inserted",
			logging.String(logging.FieldEventType, "disc_inserted"),
			logging.String(logging.FieldDevice, device),
			logging.String("label", label),
		)
		if wrapper == "" {
			return nil
		}
		kernel := strings.TrimPrefix(device, "/dev/")
		if _, err := runner.Run(ctx, wrapper, kernel); err != nil {
			return fmt.Errorf("run %s %s: %w", wrapper, kernel, err)
		}
		return nil
	}
}
