// Package preflight provides readiness checks for the paths, binaries, and
// IPTV sources the recorder depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check so a
//     misconfigured storage path is visible before the first recording is due.
//   - The CLI "dvr status" command renders the same results.
//
// Network checks are bounded by short timeouts and never retried.
package preflight
