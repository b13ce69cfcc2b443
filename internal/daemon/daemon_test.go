package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvr/internal/conflict"
	"dvr/internal/config"
	"dvr/internal/events"
	"dvr/internal/logging"
	"dvr/internal/store"
	"dvr/internal/testsupport"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *config.Config) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(context.Background(), cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg
}

func request(start time.Time, length time.Duration) store.ScheduleRequest {
	return store.ScheduleRequest{
		SourceID:     "src",
		ChannelID:    "7",
		ChannelName:  "Channel Seven",
		ProgramTitle: "Late Movie",
		Start:        start,
		End:          start.Add(length),
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, cfg := newTestDaemon(t, testsupport.WithSource(config.Source{
		ID: "src", Name: "Provider", Kind: config.SourceXtream, BaseURL: "http://iptv.test", MaxConnections: 2,
	}))
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api listener address")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	src, err := d.store.GetSource(ctx, "src")
	if err != nil || src == nil {
		t.Fatalf("expected seeded source, got %v (err %v)", src, err)
	}
	if src.MaxConnections == nil || *src.MaxConnections != 2 {
		t.Fatalf("unexpected max connections: %v", src.MaxConnections)
	}

	other, err := New(ctx, cfg, d.store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected lock contention to fail the second instance")
	}

	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() || status.StartedAt == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Dependencies) == 0 || status.Dependencies[0].Severity != "ok" {
		t.Fatalf("expected stubbed ffmpeg to be ok, got %+v", status.Dependencies)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected restart of a stopped daemon to fail")
	}
}

func TestScheduleRefusesConflictUnlessForced(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	base := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	first, result, err := d.Schedule(ctx, request(base, time.Hour), false)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if result.HasConflict {
		t.Fatalf("unexpected conflict: %+v", result)
	}

	_, result, err = d.Schedule(ctx, request(base.Add(30*time.Minute), time.Hour), false)
	if !errors.Is(err, conflict.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].ID != first || !result.WouldExceed {
		t.Fatalf("unexpected conflict result: %+v", result)
	}

	forced, result, err := d.Schedule(ctx, request(base.Add(30*time.Minute), time.Hour), true)
	if err != nil {
		t.Fatalf("forced Schedule failed: %v", err)
	}
	if forced == first || !result.HasConflict {
		t.Fatalf("expected a new id with the conflict reported, got %d %+v", forced, result)
	}

	if _, _, err := d.Schedule(ctx, store.ScheduleRequest{Start: base, End: base.Add(time.Hour)}, false); err == nil {
		t.Fatal("expected missing source and channel to be rejected")
	}
}

func TestPlaybackRaisesViewingConflict(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	base := time.Now().Add(48 * time.Hour)

	d.SetPlayback("src", "7")
	result, err := d.CheckConflicts(ctx, "src", "9", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CheckConflicts failed: %v", err)
	}
	if !result.Viewing || !result.HasConflict {
		t.Fatalf("expected viewing conflict, got %+v", result)
	}

	d.ClearPlayback()
	result, err = d.CheckConflicts(ctx, "src", "9", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CheckConflicts failed: %v", err)
	}
	if result.HasConflict {
		t.Fatalf("expected no conflict after clearing playback, got %+v", result)
	}
}

func TestCancelAndDelete(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()
	base := time.Now().Add(24 * time.Hour)

	id, _, err := d.Schedule(ctx, request(base, time.Hour), false)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := d.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	sched, err := d.GetSchedule(ctx, id)
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if sched.Status != store.ScheduleCanceled {
		t.Fatalf("expected canceled, got %s", sched.Status)
	}
	if err := d.Cancel(ctx, id); !errors.Is(err, store.ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}

	path := filepath.Join(cfg.Paths.StorageDir, "old.ts")
	testsupport.FinishedRecording(t, d.store, sched, path, 64, store.RecordingCompleted, store.PolicySpaceNeeded)
	if err := d.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected media file removed, stat err %v", err)
	}
	if _, err := d.GetSchedule(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := d.Delete(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecordingThumbnailAndDelete(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()
	sched := testsupport.AddSchedule(t, d.store, "7", time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	rec := testsupport.FinishedRecording(t, d.store, sched, filepath.Join(cfg.Paths.StorageDir, "done.ts"), 128, store.RecordingCompleted, store.PolicySpaceNeeded)

	if _, err := d.RecordingThumbnail(ctx, rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without thumbnail, got %v", err)
	}

	thumb := filepath.Join(cfg.Paths.StorageDir, ".thumbnails", "1.jpg")
	testsupport.WriteFile(t, thumb, 16)
	if err := d.store.SetRecordingThumbnail(ctx, rec.ID, thumb); err != nil {
		t.Fatalf("SetRecordingThumbnail failed: %v", err)
	}
	data, err := d.RecordingThumbnail(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RecordingThumbnail failed: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("expected 16 thumbnail bytes, got %d", len(data))
	}

	freed, err := d.DeleteRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("DeleteRecording failed: %v", err)
	}
	if freed != 128 {
		t.Fatalf("expected 128 bytes freed, got %d", freed)
	}
	if _, err := os.Stat(thumb); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected thumbnail removed, stat err %v", err)
	}
	if _, err := d.GetRecording(ctx, rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateScheduleStreamURLWakesWaiter(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	id, _, err := d.Schedule(ctx, request(time.Now().Add(time.Hour), time.Hour), false)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	sched, err := d.GetSchedule(ctx, id)
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}

	feed, unsubscribe := d.Subscribe()
	defer unsubscribe()

	type answer struct {
		url string
		ok  bool
	}
	got := make(chan answer, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		url, ok := d.hub.RequestFreshURL(waitCtx, sched)
		got <- answer{url, ok}
	}()

	select {
	case ev := <-feed:
		if ev.Type != events.ResolveURLNow || ev.ScheduleID != id {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for resolve_url_now")
	}

	woke, err := d.UpdateScheduleStreamURL(ctx, id, " http://fresh.test/stream.m3u8 ")
	if err != nil {
		t.Fatalf("UpdateScheduleStreamURL failed: %v", err)
	}
	if !woke {
		t.Fatal("expected a waiting request to be woken")
	}
	res := <-got
	if !res.ok || res.url != "http://fresh.test/stream.m3u8" {
		t.Fatalf("unexpected answer: %+v", res)
	}

	stored, _ := d.GetSchedule(ctx, id)
	if stored.ResolvedURL != "http://fresh.test/stream.m3u8" {
		t.Fatalf("expected stored url, got %q", stored.ResolvedURL)
	}
	if _, err := d.UpdateScheduleStreamURL(ctx, id, "  "); err == nil {
		t.Fatal("expected empty url to be rejected")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.SaveSetting(ctx, store.SettingKeepDays, "14"); err != nil {
		t.Fatalf("SaveSetting failed: %v", err)
	}
	value, err := d.GetSetting(ctx, store.SettingKeepDays)
	if err != nil || value != "14" {
		t.Fatalf("GetSetting = %q, %v", value, err)
	}
	if err := d.SaveSetting(ctx, "nope", "1"); !errors.Is(err, store.ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}
	settings, err := d.ListSettings(ctx)
	if err != nil {
		t.Fatalf("ListSettings failed: %v", err)
	}
	if len(settings) != len(store.SettingKeys) {
		t.Fatalf("expected %d settings, got %d", len(store.SettingKeys), len(settings))
	}
}

func TestStopRecordingWithoutJobIsNoop(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := d.StopRecording(42); err != nil {
			t.Fatalf("StopRecording attempt %d failed: %v", i+1, err)
		}
	}

	sched := testsupport.AddSchedule(t, d.store, "5", time.Now().Add(-time.Hour), time.Now().Add(-30*time.Minute))
	for _, next := range []store.ScheduleStatus{store.ScheduleRecording, store.ScheduleCompleted} {
		if err := d.store.UpdateScheduleStatus(ctx, sched.ID, next); err != nil {
			t.Fatalf("UpdateScheduleStatus(%s) failed: %v", next, err)
		}
	}
	testsupport.FinishedRecording(t, d.store, sched, filepath.Join(cfg.Paths.StorageDir, "ended.ts"), 128, store.RecordingCompleted, store.PolicySpaceNeeded)
	if err := d.StopRecording(sched.ID); err != nil {
		t.Fatalf("StopRecording on ended capture failed: %v", err)
	}
	got, err := d.store.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if got == nil || got.Status != store.ScheduleCompleted {
		t.Fatalf("ended schedule should stay completed, got %#v", got)
	}
}
