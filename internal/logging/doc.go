// Package logging assembles the structured slog loggers used across
// MagnetStream. It owns the console and JSON handler plumbing and exposes a
// no-op logger for tests and wiring code that cannot fail. Prefer these
// constructors over hand-rolled slog setup so components emit uniformly
// shaped log lines.
package logging
