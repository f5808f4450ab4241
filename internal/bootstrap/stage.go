package bootstrap

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step.
type Stage string

const (
	StagePrivilege Stage = "privilege"
	StageAccount   Stage = "account"
	StageRuntime   Stage = "runtime"
	StageImage     Stage = "image"
	StageMounts    Stage = "mounts"
	StageFacts     Stage = "facts"
	StageDevices   Stage = "devices"
	StageGPU       Stage = "gpu"
	StageRender    Stage = "render"
)

// Stages lists the install pipeline in execution order.
var Stages = []Stage{
	StagePrivilege,
	StageAccount,
	StageRuntime,
	StageImage,
	StageMounts,
	StageFacts,
	StageDevices,
	StageGPU,
	StageRender,
}

// ErrLocked is returned when another run holds the pipeline lock.
var ErrLocked = errors.New("another armsetup run is in progress")

// StageError reports the stage a fatal error came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage extracts the stage from err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// Outcome classifies a finished stage.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeWarn
	OutcomeFailed
)

// Report describes a finished stage for the operator.
type Report struct {
	Stage   Stage
	Outcome Outcome
	Message string
}

// Reporter receives stage reports as the pipeline progresses.
type Reporter interface {
	StageFinished(Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Report)

func (f ReporterFunc) StageFinished(r Report) { f(r) }
