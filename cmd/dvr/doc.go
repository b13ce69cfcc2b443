// Package main hosts the dvr CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: scheduling, recording management, settings, cleanup,
// and playback reports. It also runs the daemon itself (`dvr daemon`),
// controls a detached instance (`start`, `stop`, `restart`), tails logs, and
// scaffolds configuration. Every listing command accepts --json.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
