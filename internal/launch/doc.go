// Package launch turns a typed launch configuration into the shell script
// that starts the ARM container.
//
// The configuration is assembled once per run from detected facts, rendered
// through a text/template, and discarded; the script is the only artifact
// that persists. Rendering happens entirely in memory before anything touches
// disk, and an existing script is moved to a .bak sibling rather than
// overwritten.
package launch
