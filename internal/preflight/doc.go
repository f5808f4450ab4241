// Package preflight provides read-only readiness checks for the host
// paths and remote endpoints the setup pipeline depends on.
//
// The detect command renders these results as a table; the install pipeline
// does not gate on them, since each stage reports its own fatal errors.
package preflight
