// Package history persists one row per fetch attempt in a SQLite database
// so past runs and their outcomes can be listed from the CLI. The supervisor
// itself stays stateless; recording is the caller's concern.
package history
