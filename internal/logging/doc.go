// Package logging assembles structured slog loggers and formatting helpers used
// across armsetup.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so pipeline code automatically tags
// log lines with the run identifier and the stage being executed. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
