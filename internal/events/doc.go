// Package events fans recording lifecycle events out to every interested
// party: the daemon log, push notifications, a Redis channel, and live
// WebSocket subscribers.
//
// The Hub also brokers fresh-URL requests. When a capture needs a new
// tokenized URL for a source whose links expire, the recorder calls
// RequestFreshURL; the hub broadcasts a resolve_url_now event and waits,
// bounded by the caller's context, until a client answers through
// NotifyURLUpdated. Pending requests live in a per-hub map.
package events
