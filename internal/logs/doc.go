// Package logs tails the daemon's log files for `dvr logs`.
//
// Tail reads with bounded memory and supports negative offsets for "last N
// lines". Follow tracks the dvr.log pointer across daemon restarts, since
// each run writes a fresh dvr-<run>.log file.
package logs
