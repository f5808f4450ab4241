package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"armsetup/internal/account"
	"armsetup/internal/config"
	"armsetup/internal/engine"
	"armsetup/internal/hostfacts"
	"armsetup/internal/launch"
	"armsetup/internal/logging"
)

// Options carry per-invocation choices layered over the configuration.
type Options struct {
	GPU GPUChoice
	// Password is applied only when the service account is created.
	Password string
}

// State accumulates what each stage discovered or produced.
type State struct {
	RunID      string
	Image      string
	Account    account.Account
	Runtime    engine.RuntimeStatus
	Mounts     []launch.Mount
	Facts      hostfacts.Facts
	Devices    []string
	GPU        bool
	ScriptPath string
	Backup     string
}

// LaunchConfig assembles the launch configuration from the state.
func (s State) LaunchConfig(cfg *config.Config) launch.Config {
	return launch.Config{
		Image:         s.Image,
		HostPort:      cfg.Launch.HostPort,
		UID:           s.Account.UID,
		GID:           s.Account.GID,
		Timezone:      s.Facts.Timezone,
		Mounts:        s.Mounts,
		Devices:       s.Devices,
		GPU:           s.GPU,
		CPUSet:        s.Facts.CPUSet,
		ContainerName: cfg.Launch.ContainerName,
	}
}

type stageFunc func(ctx context.Context, st *State) (Outcome, string, error)

// Pipeline drives the install stages.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	newID  func() string
}

// NewPipeline constructs a Pipeline.
func NewPipeline(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "bootstrap"),
		newID:  uuid.NewString,
	}
}

// Run executes every stage in order and stops at the first fatal error. The
// privilege check runs before the lock is taken so an unprivileged caller
// never creates the lock file.
func (p *Pipeline) Run(ctx context.Context, opts Options) (State, error) {
	st := State{RunID: p.newID()}
	ctx = logging.WithRunID(ctx, st.RunID)

	image, err := engine.NormalizeReference(p.cfg.Image.Fork, p.cfg.Image.Name, p.cfg.Image.Tag)
	if err != nil {
		return st, p.fail(ctx, StageImage, err)
	}
	st.Image = image

	if err := p.runStage(ctx, &st, StagePrivilege, p.checkPrivilege); err != nil {
		return st, err
	}

	unlock, err := p.acquireLock()
	if err != nil {
		return st, err
	}
	defer unlock()

	stages := []struct {
		stage Stage
		run   stageFunc
	}{
		{StageAccount, p.provisionAccount(opts)},
		{StageRuntime, p.provisionRuntime},
		{StageImage, p.pullImage},
		{StageMounts, p.prepareMounts},
		{StageFacts, p.detectFacts},
		{StageDevices, p.detectDevices},
		{StageGPU, p.decideGPU(opts.GPU)},
		{StageRender, p.renderScript},
	}
	for _, s := range stages {
		if err := p.runStage(ctx, &st, s.stage, s.run); err != nil {
			return st, err
		}
	}

	p.logger.InfoContext(ctx, "launch script ready",
		logging.String(logging.FieldEventType, "bootstrap_completed"),
		logging.String("script", st.ScriptPath),
		logging.String("image", st.Image),
	)
	return st, nil
}

func (p *Pipeline) runStage(ctx context.Context, st *State, stage Stage, run stageFunc) error {
	stageCtx := logging.WithStage(ctx, string(stage))
	p.logger.DebugContext(stageCtx, "stage started")
	outcome, message, err := run(stageCtx, st)
	if err != nil {
		return p.fail(stageCtx, stage, err)
	}
	p.report(Report{Stage: stage, Outcome: outcome, Message: message})
	return nil
}

func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	logging.ErrorWithContext(ctx, p.logger, "stage failed", "stage_failed",
		logging.String(logging.FieldStage, string(stage)),
		logging.Error(err),
	)
	p.report(Report{Stage: stage, Outcome: OutcomeFailed, Message: err.Error()})
	return stageErr
}

func (p *Pipeline) report(r Report) {
	if p.deps.Reporter != nil {
		p.deps.Reporter.StageFinished(r)
	}
}

func (p *Pipeline) acquireLock() (func(), error) {
	path := strings.TrimSpace(p.cfg.Paths.LockFile)
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release pipeline lock", logging.Error(err))
		}
	}, nil
}

func (p *Pipeline) checkPrivilege(context.Context, *State) (Outcome, string, error) {
	check := p.deps.Privilege
	if check == nil {
		check = account.RequirePrivilege
	}
	if err := check(); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeOK, "running as root", nil
}

func (p *Pipeline) provisionAccount(opts Options) stageFunc {
	return func(ctx context.Context, st *State) (Outcome, string, error) {
		acct, err := p.deps.Accounts.EnsureServiceAccount(ctx, account.Spec{
			User:         p.cfg.Service.User,
			Group:        p.cfg.Service.Group,
			DeviceGroups: p.cfg.Service.DeviceGroups,
			Password:     opts.Password,
		})
		if err != nil {
			return OutcomeFailed, "", err
		}
		if home := strings.TrimSpace(p.cfg.Service.Home); home != "" {
			acct.Home = home
		}
		st.Account = acct
		verb := "present"
		if acct.Created {
			verb = "created"
		}
		return OutcomeOK, fmt.Sprintf("%s %s (uid %d, gid %d)", acct.User, verb, acct.UID, acct.GID), nil
	}
}

func (p *Pipeline) provisionRuntime(ctx context.Context, st *State) (Outcome, string, error) {
	status, err := p.deps.Runtime.EnsureContainerRuntime(ctx, st.Account.User)
	if err != nil {
		return OutcomeFailed, "", err
	}
	st.Runtime = status
	message := "engine already installed"
	if status.Installed {
		message = "engine installed"
	}
	if !status.Restarted {
		return OutcomeWarn, message + "; service not restarted", nil
	}
	return OutcomeOK, message, nil
}

func (p *Pipeline) pullImage(ctx context.Context, st *State) (Outcome, string, error) {
	if err := p.deps.Puller.Pull(ctx, st.Image); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeOK, st.Image, nil
}

func (p *Pipeline) prepareMounts(_ context.Context, st *State) (Outcome, string, error) {
	mounts, err := launch.PrepareMounts(st.Account.Home, st.Account.UID, st.Account.GID)
	if err != nil {
		return OutcomeFailed, "", err
	}
	st.Mounts = mounts
	return OutcomeOK, fmt.Sprintf("%d directories under %s", len(mounts), st.Account.Home), nil
}

func (p *Pipeline) detectFacts(ctx context.Context, st *State) (Outcome, string, error) {
	st.Facts = p.deps.Facts.Detect(ctx, st.Account)
	message := fmt.Sprintf("tz %s, %d cpus, cpuset %s", st.Facts.Timezone, st.Facts.CPUCount, hostfacts.FormatCPUSet(st.Facts.CPUSet))
	if len(st.Facts.Warnings) > 0 {
		return OutcomeWarn, message + "; " + strings.Join(st.Facts.Warnings, "; "), nil
	}
	return OutcomeOK, message, nil
}

func (p *Pipeline) detectDevices(ctx context.Context, st *State) (Outcome, string, error) {
	result := p.deps.Devices.Detect(ctx)
	st.Devices = result.Devices
	if len(st.Devices) == 0 {
		return OutcomeWarn, "no optical drives found; script will pass none through", nil
	}
	return OutcomeOK, strings.Join(st.Devices, ", "), nil
}

func (p *Pipeline) decideGPU(choice GPUChoice) stageFunc {
	return func(ctx context.Context, st *State) (Outcome, string, error) {
		st.GPU = p.resolveGPU(ctx, choice)
		if st.GPU {
			return OutcomeOK, "GPU passthrough enabled", nil
		}
		return OutcomeOK, "GPU passthrough disabled", nil
	}
}

func (p *Pipeline) resolveGPU(ctx context.Context, choice GPUChoice) bool {
	switch choice {
	case GPUYes:
		return true
	case GPUNo:
		return false
	}
	if p.deps.Prompter == nil {
		return false
	}
	question := "Enable NVIDIA GPU passthrough?"
	if p.deps.GPU != nil {
		if _, detail := p.deps.GPU.Available(ctx); detail != "" {
			question = fmt.Sprintf("Enable NVIDIA GPU passthrough (%s)?", detail)
		}
	}
	return p.deps.Prompter.Confirm(question)
}

func (p *Pipeline) renderScript(_ context.Context, st *State) (Outcome, string, error) {
	path := p.cfg.ScriptPath(st.Account.Home)
	backup, err := launch.WriteScript(path, st.LaunchConfig(p.cfg), launch.Owner{UID: st.Account.UID, GID: st.Account.GID})
	if err != nil {
		return OutcomeFailed, "", err
	}
	st.ScriptPath = path
	st.Backup = backup
	if backup != "" {
		return OutcomeOK, fmt.Sprintf("%s (previous saved as %s)", path, filepath.Base(backup)), nil
	}
	return OutcomeOK, path, nil
}
