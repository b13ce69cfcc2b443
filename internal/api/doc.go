// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates store models into transport-friendly DTOs that the
// CLI and web clients render without coupling to internal types.
//
// # Key Types
//
// Schedule and Recording: transport representations of stored rows with
// padded capture windows and display-ready sizes.
//
// ScheduleCreate: the request body for new schedules, with RFC3339 times.
//
// DaemonStatus: running state, scheduler and cleanup summaries, active jobs,
// disk usage, and dependency availability.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Timestamps
// use RFC3339 with milliseconds. Sentinel errors from the store and resolver
// map to HTTP status codes through StatusCode so the HTTP server and the CLI
// agree on what a failure means.
package api
