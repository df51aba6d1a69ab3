// Package deps verifies the external binaries MagnetStream shells out to,
// powering the doctor command.
package deps
