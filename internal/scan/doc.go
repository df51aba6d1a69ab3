// Package scan inspects a completed download directory for qualifying audio
// files. A file qualifies when its extension is in the recognized set and
// its size exceeds a minimum threshold; everything else is counted so
// callers can distinguish "nothing usable" from "nothing at all".
package scan
