package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"armsetup/internal/account"
	"armsetup/internal/bootstrap"
	"armsetup/internal/config"
	"armsetup/internal/engine"
	"armsetup/internal/hostexec"
	"armsetup/internal/hostfacts"
	"armsetup/internal/optical"
	"armsetup/internal/preflight"
	"armsetup/internal/prompt"
)

// hostServices bundles the collaborators a command drives on the host.
type hostServices struct {
	deps   bootstrap.Deps
	runner hostexec.Runner
	pinger preflight.Pinger
	close  func()
}

// newHostServices is swapped in tests to keep commands off the real host.
var newHostServices = defaultHostServices

func defaultHostServices(cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) (*hostServices, error) {
	runner := hostexec.NewRunner()
	probeTimeout := time.Duration(cfg.Detection.ProbeTimeout) * time.Second
	accounts := account.NewProvisioner(runner, logger)

	client, err := engine.NewClient()
	if err != nil {
		return nil, fmt.Errorf("container engine client: %w", err)
	}

	deps := bootstrap.Deps{
		Privilege: account.RequirePrivilege,
		Accounts:  accounts,
		Runtime:   engine.NewRuntimeInstaller(runner, accounts, cfg.Engine, logger),
		Puller:    engine.NewImagePuller(client, time.Duration(cfg.Engine.PullTimeout)*time.Second, logger),
		Facts:     hostfacts.NewDetector(runner, logger, probeTimeout),
		Devices: optical.NewDetector(logger, probeTimeout,
			optical.LsscsiProbe{Runner: runner},
			optical.SysfsProbe{Runner: runner, SysfsRoot: cfg.Detection.SysfsRoot},
			optical.NewCrawlerProbe(cfg.Detection.SysfsRoot),
		),
		GPU:      hostfacts.NvidiaProbe{Runner: runner, SysfsRoot: cfg.Detection.SysfsRoot},
		Prompter: terminalPrompter{in: in, out: out},
	}
	return &hostServices{
		deps:   deps,
		runner: runner,
		pinger: client,
		close:  func() { _ = client.Close() },
	}, nil
}

type terminalPrompter struct {
	in  io.Reader
	out io.Writer
}

func (p terminalPrompter) Confirm(question string) bool {
	return prompt.Boolean(p.in, p.out, question)
}
