// Package notifications pushes recording lifecycle events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. The ntfy service
// doubles as an events.Sink and honours the per-type toggles from the
// [notifications] config section.
package notifications
