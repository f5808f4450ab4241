package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"armsetup/internal/bootstrap"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:      [KIND] message" with the label
// padded so messages line up.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	line := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		line = style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(title)))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stageReporter prints one status line per finished pipeline stage.
type stageReporter struct {
	out      io.Writer
	colorize bool
}

func newStageReporter(out io.Writer) *stageReporter {
	return &stageReporter{out: out, colorize: shouldColorize(out)}
}

func (r *stageReporter) StageFinished(report bootstrap.Report) {
	fmt.Fprintln(r.out, renderStatusLine(stageLabel(report.Stage), outcomeKind(report.Outcome), report.Message, r.colorize))
}

func stageLabel(stage bootstrap.Stage) string {
	if stage == bootstrap.StageGPU {
		return "GPU"
	}
	return cases.Title(language.Und).String(string(stage))
}

func outcomeKind(outcome bootstrap.Outcome) statusKind {
	switch outcome {
	case bootstrap.OutcomeOK:
		return statusOK
	case bootstrap.OutcomeWarn:
		return statusWarn
	case bootstrap.OutcomeFailed:
		return statusError
	default:
		return statusInfo
	}
}
