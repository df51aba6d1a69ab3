// Package config loads, normalizes, and validates MagnetStream's TOML
// configuration. Paths are tilde-expanded, blanks fall back to repository
// defaults, and a sample config can be written for first-time setup.
package config
