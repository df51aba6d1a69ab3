// Package classify turns raw aria2c console lines into semantic lifecycle
// events.
//
// aria2c offers no structured progress protocol on its console output, so
// classification is heuristic substring matching over a small set of
// indicator lists, evaluated in priority order. Lines that match nothing are
// treated as noise rather than errors so phrasing changes in the tool
// degrade gracefully instead of aborting runs.
package classify
