// Package bootstrap runs the host setup pipeline that ends in a launch
// script.
//
// Stages run strictly in order: privilege, account, runtime, image, mounts,
// facts, devices, gpu, render. Every stage before render is idempotent, so a
// failed run is recovered by running again from the start. Values discovered
// along the way travel in an explicit State rather than process globals.
//
// Fatal errors are wrapped in StageError so callers can name the stage that
// failed. Detection degradations (timezone, cpu count, no optical drives) are
// reported as warnings and the pipeline carries on with defaults. A file lock
// keeps two runs from interleaving on the same host.
package bootstrap
