// Package supervisor manages one aria2c acquisition from spawn to terminal
// outcome.
//
// Each run owns its process handle exclusively: a single read-loop goroutine
// consumes the merged console stream, classifies lines into lifecycle
// events, enforces the connection-establishment deadline, and pushes events
// onto an unbounded ordered queue consumed by the caller. The terminal
// outcome is delivered exactly once as the last queue item, and the process
// is never left running past it — not on timeout, cancellation, fatal
// classification, or an internal fault in the loop itself.
package supervisor
