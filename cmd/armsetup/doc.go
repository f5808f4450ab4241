// Package main hosts the armsetup CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into runs of the host
// bootstrap pipeline (install), read-only previews (render, detect), the disc
// insertion watcher, udev rule management, the container entrypoint, and
// configuration scaffolding. Configuration is resolved once per invocation
// and collaborators are wired here so the internal packages stay free of
// process-level concerns.
package main
