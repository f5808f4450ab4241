package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"armsetup/internal/config"
	"armsetup/internal/hostexec"
	"armsetup/internal/logging"
)

const (
	engineBinary        = "docker"
	maxInstallScriptLen = 8 << 20
)

// GroupAdder grants a supplementary group to a user.
type GroupAdder interface {
	AddToGroup(ctx context.Context, user, group string) error
}

// RuntimeStatus describes what EnsureContainerRuntime did.
type RuntimeStatus struct {
	Binary    string
	Installed bool
	Restarted bool
}

// RuntimeInstaller makes sure a container engine is present and usable by
// the service account.
type RuntimeInstaller struct {
	runner     hostexec.Runner
	groups     GroupAdder
	httpClient *http.Client
	logger     *slog.Logger

	scriptURL string
	service   string
	group     string
}

// NewRuntimeInstaller constructs a RuntimeInstaller from engine settings.
func NewRuntimeInstaller(runner hostexec.Runner, groups GroupAdder, cfg config.Engine, logger *slog.Logger) *RuntimeInstaller {
	return &RuntimeInstaller{
		runner:     runner,
		groups:     groups,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "engine"),
		scriptURL:  strings.TrimSpace(cfg.InstallScriptURL),
		service:    strings.TrimSpace(cfg.ServiceName),
		group:      strings.TrimSpace(cfg.AccessGroup),
	}
}

// EnsureContainerRuntime installs the engine when it is missing, grants the
// access group to user, and restarts the engine service. An engine that is
// already installed is not an error.
func (i *RuntimeInstaller) EnsureContainerRuntime(ctx context.Context, user string) (RuntimeStatus, error) {
	var status RuntimeStatus

	binary, err := i.runner.LookPath(engineBinary)
	if err == nil {
		i.logger.InfoContext(ctx, "container engine already installed",
			logging.String(logging.FieldEventType, "engine_present"),
			logging.String("binary", binary),
		)
	} else {
		if err := i.install(ctx); err != nil {
			return status, err
		}
		binary, err = i.runner.LookPath(engineBinary)
		if err != nil {
			return status, fmt.Errorf("engine install finished but %s is not on PATH: %w", engineBinary, err)
		}
		status.Installed = true
		i.logger.InfoContext(ctx, "container engine installed",
			logging.String(logging.FieldEventType, "engine_installed"),
			logging.String("binary", binary),
		)
	}
	status.Binary = binary

	if i.group != "" && strings.TrimSpace(user) != "" {
		if err := i.groups.AddToGroup(ctx, user, i.group); err != nil {
			return status, err
		}
	}

	restarted, err := i.restart(ctx)
	status.Restarted = restarted
	return status, err
}

func (i *RuntimeInstaller) install(ctx context.Context) error {
	if i.scriptURL == "" {
		return fmt.Errorf("%s is not installed and no install script is configured", engineBinary)
	}
	i.logger.InfoContext(ctx, "downloading container engine install script",
		logging.String("url", i.scriptURL),
	)
	script, err := i.download(ctx)
	if err != nil {
		return err
	}
	if _, err := i.runner.RunInput(ctx, bytes.NewReader(script), "sh", "-s"); err != nil {
		return fmt.Errorf("run engine install script: %w", err)
	}
	return nil
}

func (i *RuntimeInstaller) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.scriptURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build install script request: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download install script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download install script: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInstallScriptLen+1))
	if err != nil {
		return nil, fmt.Errorf("read install script: %w", err)
	}
	if len(data) > maxInstallScriptLen {
		return nil, fmt.Errorf("install script exceeds %d bytes", maxInstallScriptLen)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("install script is empty")
	}
	return data, nil
}

func (i *RuntimeInstaller) restart(ctx context.Context) (bool, error) {
	if i.service == "" {
		return false, nil
	}
	if _, err := i.runner.LookPath("systemctl"); err != nil {
		logging.WarnWithContext(ctx, i.logger, "systemctl not found; engine service not restarted", "engine_restart_skipped",
			logging.String(logging.FieldErrorHint, "restart the engine manually so group membership applies"),
			logging.String(logging.FieldImpact, "service account may not reach the engine until restart"),
		)
		return false, nil
	}
	if _, err := i.runner.Run(ctx, "systemctl", "restart", i.service); err != nil {
		return false, fmt.Errorf("restart %s service: %w", i.service, err)
	}
	return true, nil
}
