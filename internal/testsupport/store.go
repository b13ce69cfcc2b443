package testsupport

import (
	"context"
	"testing"
	"time"

	"dvr/internal/config"
	"dvr/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AddSchedule inserts a schedule on source "src" and returns it.
func AddSchedule(t testing.TB, st *store.Store, channel string, start, end time.Time) *store.Schedule {
	t.Helper()

	ctx := context.Background()
	id, err := st.AddSchedule(ctx, store.ScheduleRequest{
		SourceID:     "src",
		ChannelID:    channel,
		ChannelName:  channel,
		ProgramTitle: "Program on " + channel,
		Start:        start,
		End:          end,
	})
	if err != nil {
		t.Fatalf("store.AddSchedule: %v", err)
	}
	sched, err := st.GetSchedule(ctx, id)
	if err != nil || sched == nil {
		t.Fatalf("store.GetSchedule(%d): %v", id, err)
	}
	return sched
}

// FinishedRecording inserts a recording row for sched, writes size bytes to
// path, and marks it with status. It returns the stored row.
func FinishedRecording(t testing.TB, st *store.Store, sched *store.Schedule, path string, size int64, status store.RecordingStatus, policy string) *store.Recording {
	t.Helper()

	ctx := context.Background()
	WriteFile(t, path, size)
	id, err := st.CreateRecording(ctx, store.NewRecording{
		ScheduleID:     sched.ID,
		FilePath:       path,
		Filename:       path,
		ChannelName:    sched.ChannelName,
		ProgramTitle:   sched.ProgramTitle,
		ScheduledStart: sched.ScheduledStart,
		ScheduledEnd:   sched.ScheduledEnd,
		ActualStart:    sched.ScheduledStart,
		Policy:         policy,
	})
	if err != nil {
		t.Fatalf("store.CreateRecording: %v", err)
	}
	if err := st.UpdateRecording(ctx, id, store.RecordingUpdate{Status: status, SizeBytes: &size}); err != nil {
		t.Fatalf("store.UpdateRecording: %v", err)
	}
	rec, err := st.GetRecording(ctx, id)
	if err != nil || rec == nil {
		t.Fatalf("store.GetRecording(%d): %v", id, err)
	}
	return rec
}
