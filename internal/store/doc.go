// Package store persists schedules, recordings, sources, and settings in
// SQLite.
//
// The store is a pure query/mutation surface: it enforces time-range
// validation, the schedule status transition table, and the single active
// recording per schedule, but it never touches media files. Callers that
// delete rows remove the associated files first so a crash leaves an orphan
// file rather than a row pointing at nothing.
//
// All instants are stored as Unix seconds so window queries compare integers.
// The database runs in WAL mode with a busy timeout; writes retry on
// SQLITE_BUSY with exponential backoff.
package store
