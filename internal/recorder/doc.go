// Package recorder supervises ffmpeg capture jobs.
//
// Each call to Supervisor.Record runs one job through
// Resolving -> Running -> {Completed, Failed, Partial, Canceled}. The running
// phase races three signals: the process exiting, a cancel request, and a
// timeout of max(duration+safety margin, minimum). Whichever fires first
// decides the outcome; a cancel that arrives alongside an exit still wins so a
// stopped job is never reported as a crash.
//
// Jobs live in a mutex-guarded map keyed by schedule id. The process handle is
// taken out of a job under the job's own lock before it is killed, so Stop,
// StopAll, and the job's own timeout can race without double-killing.
// Cancellation is a channel closed exactly once.
package recorder
