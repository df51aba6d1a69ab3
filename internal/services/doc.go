// Package services defines shared utilities consumed by the acquisition
// supervisor and external tool integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures so the
//     supervisor can translate them into a terminal outcome kind.
//   - Context helpers that stamp run identifiers and component names for
//     logging.
//
// Use these helpers when wiring new integrations so error handling and
// observability stay uniform across the codebase.
package services
