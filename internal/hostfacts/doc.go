// Package hostfacts gathers the host properties the launch script encodes:
// the service account ids and home, the timezone, the CPU topology and the
// derived core-pinning set, plus an advisory GPU capability probe.
//
// Detection never fails outright. Anything that cannot be determined is
// replaced by a documented default and reported in Facts.Warnings.
package hostfacts
