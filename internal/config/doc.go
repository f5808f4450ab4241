// Package config loads, normalizes, and validates armsetup configuration data.
//
// It supplies repository defaults for the ARM image, the service account, the
// generated launch script, and container engine provisioning. Paths expand
// tilde shortcuts, TOML files are read strictly, and ARMSETUP_FORK /
// ARMSETUP_TAG override the image coordinates from the environment.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
