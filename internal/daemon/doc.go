// Package daemon coordinates the long-running dvr process.
//
// It wires configuration, the schedule store, the event hub and its sinks,
// the recording supervisor with its post-processors, the polling scheduler,
// and the cleanup manager into a single lifecycle with flock-based locking to
// prevent multiple instances. The Daemon type is the operation surface shared
// by the JSON-RPC server in internal/ipc and the HTTP API in this package.
//
// The HTTP API lives under /api, is served by gin, and requires an HS256
// bearer token when [paths] api_secret is set. /api/events upgrades to a
// websocket that streams lifecycle events and accepts fresh stream URLs in
// answer to resolve_url_now requests.
//
// Keep orchestration logic here: capture, scheduling, and eviction belong to
// their own packages while the daemon focuses on startup, shutdown, and
// request routing.
package daemon
