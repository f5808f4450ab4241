package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"armsetup/internal/engine"
	"armsetup/internal/launch"
	"armsetup/internal/logging"
)

// PreviewOptions control a render without provisioning.
type PreviewOptions struct {
	GPU GPUChoice
	// UID and GID replace the service account lookup when both are positive.
	UID int
	GID int
}

// Preview detects everything the install pipeline would and assembles the
// launch configuration, without privilege, provisioning, pulls, or disk
// writes.
func (p *Pipeline) Preview(ctx context.Context, opts PreviewOptions) (State, launch.Config, error) {
	st := State{RunID: p.newID()}
	ctx = logging.WithRunID(ctx, st.RunID)

	image, err := engine.NormalizeReference(p.cfg.Image.Fork, p.cfg.Image.Name, p.cfg.Image.Tag)
	if err != nil {
		return st, launch.Config{}, &StageError{Stage: StageImage, Err: err}
	}
	st.Image = image

	if opts.UID > 0 && opts.GID > 0 {
		st.Account.User = p.cfg.Service.User
		st.Account.UID = opts.UID
		st.Account.GID = opts.GID
	} else {
		acct, err := p.deps.Accounts.Lookup(p.cfg.Service.User)
		if err != nil {
			return st, launch.Config{}, &StageError{Stage: StageAccount, Err: fmt.Errorf("%w (pass --uid and --gid to render without the account)", err)}
		}
		st.Account = acct
	}
	if home := strings.TrimSpace(p.cfg.Service.Home); home != "" {
		st.Account.Home = home
	}
	if strings.TrimSpace(st.Account.Home) == "" {
		st.Account.Home = "/home/" + p.cfg.Service.User
	}
	st.Mounts = launch.Mounts(st.Account.Home)
	st.ScriptPath = p.cfg.ScriptPath(st.Account.Home)

	for _, s := range []struct {
		stage Stage
		run   stageFunc
	}{
		{StageFacts, p.detectFacts},
		{StageDevices, p.detectDevices},
		{StageGPU, p.decideGPU(opts.GPU)},
	} {
		if err := p.runStage(ctx, &st, s.stage, s.run); err != nil {
			return st, launch.Config{}, err
		}
	}

	lc := st.LaunchConfig(p.cfg)
	if err := lc.Validate(); err != nil {
		return st, lc, &StageError{Stage: StageRender, Err: err}
	}
	return st, lc, nil
}
