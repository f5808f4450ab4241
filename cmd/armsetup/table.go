package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"armsetup/internal/optical"
)

const (
	labelWidth = 24
	valueWidth = 72
)

// newReportTable returns a two-column writer for the detect and validate
// reports. Headers keep their spelling and long values wrap at word
// boundaries.
func newReportTable(label, value string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{label, value})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: labelWidth},
		{Number: 2, WidthMax: valueWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	return tw
}

// renderFacts renders label/value pairs.
func renderFacts(pairs [][2]string) string {
	tw := newReportTable("Fact", "Value")
	for _, pair := range pairs {
		tw.AppendRow(table.Row{pair[0], pair[1]})
	}
	return tw.Render()
}

// renderProbes lists what each optical probe found, or why it failed.
func renderProbes(reports []optical.ProbeReport) string {
	tw := newReportTable("Probe", "Devices")
	for _, report := range reports {
		found := strings.Join(report.Devices, ", ")
		switch {
		case report.Err != nil:
			found = "error: " + report.Err.Error()
		case found == "":
			found = "none"
		}
		tw.AppendRow(table.Row{report.Name, found})
	}
	return tw.Render()
}
