// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Payloads
// reuse the api package types so the CLI renders the same shapes the HTTP API
// returns. A Stop call stops the daemon and then runs the hook registered
// with OnStop so the process can exit.
package ipc
