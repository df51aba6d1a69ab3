// Package aria2 wraps invocation of the aria2c command-line downloader: the
// short-timeout availability probe, the fixed magnet-fetch argument set, and
// a Process handle that streams merged console output and supports
// graceful-then-forced termination of the process group.
package aria2
