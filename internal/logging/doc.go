// Package logging assembles structured slog loggers and formatting helpers used
// across dvr services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so recording code can tag log
// lines with schedule IDs, recording IDs, and job correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
