package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"armsetup/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger reports whether the container engine answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes the checks that apply to cfg. home is the resolved service
// home; an empty value skips the home check. pinger may be nil when the
// engine client could not be created.
func RunAll(ctx context.Context, cfg *config.Config, home string, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if strings.TrimSpace(home) != "" {
		results = append(results, CheckDirectoryAccess("Service home", home))
	}
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("udev rules directory", filepath.Dir(cfg.Paths.UdevRule)))
	results = append(results, CheckEngine(ctx, pinger))
	results = append(results, CheckInstallScript(ctx, cfg.Engine.InstallScriptURL))
	return results
}
