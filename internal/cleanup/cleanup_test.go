package cleanup_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvr/internal/cleanup"
	"dvr/internal/diskusage"
	"dvr/internal/store"
	"dvr/internal/testsupport"
)

type fixture struct {
	st    *store.Store
	dir   string
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{st: testsupport.MustOpenStore(t, cfg), dir: cfg.Paths.StorageDir, clock: time.Now().Add(-time.Hour)}
	f.st.SetClock(func() time.Time { return f.clock })
	return f
}

// add stores a finished recording whose effective end is one minute after
// the previous one.
func (f *fixture) add(t *testing.T, size int64, policy string) *store.Recording {
	t.Helper()
	return f.addIn(t, f.dir, size, policy)
}

func (f *fixture) addIn(t *testing.T, dir string, size int64, policy string) *store.Recording {
	t.Helper()
	f.clock = f.clock.Add(time.Minute)
	sched := testsupport.AddSchedule(t, f.st, "c", f.clock, f.clock.Add(time.Minute))
	path := filepath.Join(dir, fmt.Sprintf("rec-%d.ts", sched.ID))
	return testsupport.FinishedRecording(t, f.st, sched, path, size, store.RecordingCompleted, policy)
}

func (f *fixture) save(t *testing.T, key, value string) {
	t.Helper()
	if err := f.st.SaveSetting(context.Background(), key, value); err != nil {
		t.Fatalf("SaveSetting(%s) failed: %v", key, err)
	}
}

func (f *fixture) remaining(t *testing.T) map[int64]bool {
	t.Helper()
	recs, err := f.st.FinishedRecordings(context.Background())
	if err != nil {
		t.Fatalf("FinishedRecordings failed: %v", err)
	}
	out := make(map[int64]bool, len(recs))
	for _, rec := range recs {
		out[rec.ID] = true
	}
	return out
}

func usage(total, used uint64) *diskusage.Static {
	return &diskusage.Static{Value: diskusage.FromBlocks(total, total-used, total-used)}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestQuotaEvictionStopsOnceUnderTarget(t *testing.T) {
	f := newFixture(t)
	keep := f.add(t, 100, store.PolicyNever)
	first := f.add(t, 100, store.PolicySpaceNeeded)
	second := f.add(t, 100, store.PolicySpaceNeeded)

	// 85% used against an 80% cap means 50 bytes must go.
	mgr := cleanup.NewManager(f.st, usage(1000, 850), cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.QuotaDeleted != 1 || report.BytesFreed != 100 || report.EmergencyDeleted != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	left := f.remaining(t)
	if left[first.ID] || !left[keep.ID] || !left[second.ID] {
		t.Fatalf("expected only the oldest eligible recording removed, remaining %v", left)
	}
	if exists(first.FilePath) {
		t.Fatal("media file should be removed")
	}
	if mgr.LastReport() == nil {
		t.Fatal("LastReport should be set after a pass")
	}
}

func TestEvictionFailureKeepsRowAndContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	f := newFixture(t)
	locked := filepath.Join(f.dir, "locked")
	stuck := f.addIn(t, locked, 100, store.PolicySpaceNeeded)
	next := f.add(t, 100, store.PolicySpaceNeeded)
	last := f.add(t, 100, store.PolicySpaceNeeded)
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	mgr := cleanup.NewManager(f.st, usage(1000, 850), cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0].RecordingID != stuck.ID || report.Errors[0].Path != stuck.FilePath {
		t.Fatalf("expected one error for recording %d, got %+v", stuck.ID, report.Errors)
	}
	if report.QuotaDeleted != 1 || report.BytesFreed != 100 {
		t.Fatalf("unexpected report %+v", report)
	}
	left := f.remaining(t)
	if !left[stuck.ID] || left[next.ID] || !left[last.ID] {
		t.Fatalf("expected the failed row kept and the next candidate evicted, remaining %v", left)
	}
	if !exists(stuck.FilePath) {
		t.Fatal("undeletable media file should still exist")
	}
}

func TestQuotaEvictionDisabledByAutoCleanup(t *testing.T) {
	f := newFixture(t)
	f.add(t, 100, store.PolicySpaceNeeded)
	f.save(t, store.SettingAutoCleanup, "false")

	mgr := cleanup.NewManager(f.st, usage(1000, 850), cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.Deleted() != 0 {
		t.Fatalf("expected nothing deleted, got %+v", report)
	}
}

func TestEmergencyEvictionIgnoresNeverPolicy(t *testing.T) {
	f := newFixture(t)
	f.save(t, store.SettingMaxDiskUsagePercent, "99")

	var recs []*store.Recording
	for i := range 10 {
		policy := store.PolicySpaceNeeded
		if i%2 == 0 {
			policy = store.PolicyNever
		}
		recs = append(recs, f.add(t, 10, policy))
	}

	mgr := cleanup.NewManager(f.st, usage(1000, 950), cleanup.Options{EmergencyPercent: 90}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.EmergencyDeleted != 5 || report.QuotaDeleted != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	left := f.remaining(t)
	for i, rec := range recs {
		if want := i >= 5; left[rec.ID] != want {
			t.Fatalf("recording %d (index %d) remaining=%v, want %v", rec.ID, i, left[rec.ID], want)
		}
	}
}

func TestAgeEvictionHonoursRetentionAndPolicy(t *testing.T) {
	f := newFixture(t)
	f.save(t, store.SettingKeepDays, "7")

	f.clock = time.Now().Add(-10 * 24 * time.Hour)
	old := f.add(t, 10, store.PolicySpaceNeeded)
	pinned := f.add(t, 10, store.PolicyNever)
	f.clock = time.Now().Add(-time.Hour)
	fresh := f.add(t, 10, store.PolicySpaceNeeded)

	mgr := cleanup.NewManager(f.st, usage(1000, 100), cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.AgeDeleted != 1 {
		t.Fatalf("expected 1 age eviction, got %+v", report)
	}
	left := f.remaining(t)
	if left[old.ID] || !left[pinned.ID] || !left[fresh.ID] {
		t.Fatalf("unexpected remaining set %v", left)
	}
}

func TestReconcileRefreshesSizes(t *testing.T) {
	f := newFixture(t)
	rec := f.add(t, 100, store.PolicySpaceNeeded)
	testsupport.WriteFile(t, rec.FilePath, 250)

	mgr := cleanup.NewManager(f.st, usage(1000, 100), cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.Reconciled != 1 {
		t.Fatalf("expected 1 reconciled recording, got %d", report.Reconciled)
	}
	got, _ := f.st.GetRecording(context.Background(), rec.ID)
	if got.Size() != 250 {
		t.Fatalf("stored size = %d, want 250", got.Size())
	}
}

func TestUsageErrorSkipsSpaceEviction(t *testing.T) {
	f := newFixture(t)
	f.add(t, 100, store.PolicySpaceNeeded)

	mgr := cleanup.NewManager(f.st, &diskusage.Static{Err: errors.New("statfs failed")}, cleanup.Options{}, nil)
	report, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.Deleted() != 0 || report.Usage != nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRemoveRecordingDeletesFileThumbnailAndRow(t *testing.T) {
	f := newFixture(t)
	rec := f.add(t, 64, store.PolicySpaceNeeded)
	thumb := filepath.Join(f.dir, ".thumbnails", fmt.Sprintf("%d.jpg", rec.ID))
	testsupport.WriteFile(t, thumb, 8)
	rec.ThumbnailPath = thumb

	freed, err := cleanup.RemoveRecording(context.Background(), f.st, rec)
	if err != nil {
		t.Fatalf("RemoveRecording failed: %v", err)
	}
	if freed != 64 {
		t.Fatalf("freed = %d, want 64", freed)
	}
	if exists(rec.FilePath) || exists(thumb) {
		t.Fatal("media file and thumbnail should be gone")
	}
	if got, _ := f.st.GetRecording(context.Background(), rec.ID); got != nil {
		t.Fatal("row should be deleted")
	}

	// A second removal finds no row.
	if _, err := cleanup.RemoveRecording(context.Background(), f.st, rec); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartRunsFirstPass(t *testing.T) {
	f := newFixture(t)
	mgr := cleanup.NewManager(f.st, usage(1000, 100), cleanup.Options{Interval: time.Hour}, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for mgr.LastReport() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	mgr.Stop()
	if mgr.LastReport() == nil {
		t.Fatal("expected a pass at start")
	}
}
