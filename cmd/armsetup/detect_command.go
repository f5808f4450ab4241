package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"armsetup/internal/account"
	"armsetup/internal/config"
	"armsetup/internal/deps"
	"armsetup/internal/hostfacts"
	"armsetup/internal/preflight"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report host facts, optical drives, and prerequisites without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			logger := ctx.log()
			out := cmd.OutOrStdout()

			services, err := newHostServices(cfg, logger, cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			defer services.close()

			colorize := shouldColorize(out)
			runCtx := cmd.Context()

			acct, lookupErr := services.deps.Accounts.Lookup(cfg.Service.User)
			if cfg.Service.Home != "" {
				acct.Home = cfg.Service.Home
			}
			printSection(out, "Service account", colorize)
			if lookupErr != nil {
				fmt.Fprintln(out, renderStatusLine(cfg.Service.User, statusWarn, "not provisioned yet", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine(acct.User, statusOK, fmt.Sprintf("uid %d, gid %d, home %s", acct.UID, acct.GID, acct.Home), colorize))
			}

			printSection(out, "Host facts", colorize)
			facts := services.deps.Facts.Detect(runCtx, acct)
			fmt.Fprintln(out, renderFacts(factRows(facts)))
			for _, warning := range facts.Warnings {
				fmt.Fprintln(out, renderStatusLine("Facts", statusWarn, warning, colorize))
			}

			printSection(out, "Optical drives", colorize)
			result := services.deps.Devices.Detect(runCtx)
			fmt.Fprintln(out, renderProbes(result.Probes))
			if len(result.Devices) == 0 {
				fmt.Fprintln(out, renderStatusLine("Drives", statusWarn, "no optical drives detected", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Drives", statusOK, strings.Join(result.Devices, ", "), colorize))
			}

			printSection(out, "GPU", colorize)
			printGPU(runCtx, out, services.deps.GPU, colorize)

			printSection(out, "Dependencies", colorize)
			printDependencies(out, deps.CheckBinaries(deps.HostRequirements()), colorize)

			printSection(out, "Preflight", colorize)
			printPreflight(out, preflight.RunAll(runCtx, cfg, homeForPreflight(cfg, acct, lookupErr), services.pinger), colorize)
			return nil
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func factRows(facts hostfacts.Facts) [][2]string {
	return [][2]string{
		{"UID", strconv.Itoa(facts.UID)},
		{"GID", strconv.Itoa(facts.GID)},
		{"Timezone", facts.Timezone},
		{"CPUs", strconv.Itoa(facts.CPUCount)},
		{"CPU set", hostfacts.FormatCPUSet(facts.CPUSet)},
	}
}

func printGPU(ctx context.Context, out io.Writer, probe hostfacts.GPUProbe, colorize bool) {
	if probe == nil {
		fmt.Fprintln(out, renderStatusLine("NVIDIA", statusInfo, "not probed", colorize))
		return
	}
	available, detail := probe.Available(ctx)
	kind := statusInfo
	if available {
		kind = statusOK
	}
	if detail == "" {
		detail = "available: " + yesNo(available)
	}
	fmt.Fprintln(out, renderStatusLine("NVIDIA", kind, detail, colorize))
}

func printDependencies(out io.Writer, statuses []deps.Status, colorize bool) {
	for _, status := range statuses {
		label := status.Name
		switch {
		case status.Available:
			fmt.Fprintln(out, renderStatusLine(label, statusOK, status.Command, colorize))
		case status.Optional:
			fmt.Fprintln(out, renderStatusLine(label, statusWarn, status.Detail, colorize))
		default:
			fmt.Fprintln(out, renderStatusLine(label, statusError, status.Detail, colorize))
		}
	}
}

func printPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}

func homeForPreflight(cfg *config.Config, acct account.Account, lookupErr error) string {
	if cfg.Service.Home != "" {
		return cfg.Service.Home
	}
	if lookupErr != nil {
		return ""
	}
	return acct.Home
}
