package supervisor

import "time"

// DefaultConnectDeadline is the maximum time allowed to reach first peer or
// metadata connectivity before a run is aborted. It is independent of the
// external tool's own timeouts: a hung or silent process must not block the
// caller indefinitely.
const DefaultConnectDeadline = 60 * time.Second

// TimeoutPolicy decides when a silent run should be aborted. It is a pure
// function over elapsed time and the connected flag; once a connection has
// been established it never fires again for that run. No deadline applies to
// total run duration, only to reaching first connectivity.
type TimeoutPolicy struct {
	ConnectDeadline time.Duration
}

// ShouldAbort reports whether the run must be aborted with a connection
// timeout.
func (p TimeoutPolicy) ShouldAbort(started, now time.Time, connected bool) bool {
	if connected || p.ConnectDeadline <= 0 {
		return false
	}
	return now.Sub(started) >= p.ConnectDeadline
}
