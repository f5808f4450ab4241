package bootstrap

import (
	"context"
	"strings"

	"armsetup/internal/account"
	"armsetup/internal/engine"
	"armsetup/internal/hostfacts"
	"armsetup/internal/optical"
)

// AccountProvisioner creates and resolves the service account.
type AccountProvisioner interface {
	EnsureServiceAccount(ctx context.Context, spec account.Spec) (account.Account, error)
	Lookup(user string) (account.Account, error)
}

// RuntimeProvisioner makes the container engine available.
type RuntimeProvisioner interface {
	EnsureContainerRuntime(ctx context.Context, user string) (engine.RuntimeStatus, error)
}

// FactDetector gathers host facts for an account.
type FactDetector interface {
	Detect(ctx context.Context, acct account.Account) hostfacts.Facts
}

// DeviceDetector enumerates optical drives.
type DeviceDetector interface {
	Detect(ctx context.Context) optical.Result
}

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(question string) bool
}

// Deps are the collaborators the pipeline drives. Nil Reporter, Prompter, or
// GPU are allowed.
type Deps struct {
	Privilege func() error
	Accounts  AccountProvisioner
	Runtime   RuntimeProvisioner
	Puller    engine.Puller
	Facts     FactDetector
	Devices   DeviceDetector
	GPU       hostfacts.GPUProbe
	Prompter  Prompter
	Reporter  Reporter
}

// GPUChoice is how the GPU decision is made.
type GPUChoice string

const (
	GPUAsk GPUChoice = "ask"
	GPUYes GPUChoice = "yes"
	GPUNo  GPUChoice = "no"
)

// ParseGPUChoice accepts ask, yes, or no (case-insensitive).
func ParseGPUChoice(value string) (GPUChoice, bool) {
	switch GPUChoice(strings.ToLower(strings.TrimSpace(value))) {
	case GPUAsk, "":
		return GPUAsk, true
	case GPUYes:
		return GPUYes, true
	case GPUNo:
		return GPUNo, true
	default:
		return "", false
	}
}
