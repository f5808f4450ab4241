// Package account provisions the dedicated service account the ARM container
// runs as.
//
// It checks for elevated privilege before anything is mutated, creates the
// service group and user only when they are absent, grants the device-access
// groups needed for optical drives and GPUs, and resolves the numeric ids the
// launch script embeds. Every operation is idempotent so a failed bootstrap
// can be re-run from the start.
package account
