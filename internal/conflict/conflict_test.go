package conflict_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dvr/internal/conflict"
	"dvr/internal/store"
	"dvr/internal/testsupport"
)

func TestCheckComposesMessage(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.AddSchedule(t, st, "c1", time.Unix(100, 0), time.Unix(200, 0))
	playback := &conflict.Playback{}
	checker := conflict.NewChecker(st, playback)

	res, err := checker.Check(ctx, "src", "c2", time.Unix(150, 0), time.Unix(250, 0))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.HasConflict || !res.WouldExceed || res.Viewing {
		t.Fatalf("unexpected result: %#v", res)
	}
	want := "Conflict: 1 overlapping recording(s), connection limit (1 max)"
	if res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}

	playback.Set("src", "c9")
	res, _ = checker.Check(ctx, "src", "c2", time.Unix(150, 0), time.Unix(250, 0))
	want = "Conflict: 1 overlapping recording(s), connection limit (1 max), you are currently watching this source"
	if res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}

	// Adjacent window: only the viewing conflict remains.
	res, _ = checker.Check(ctx, "src", "c2", time.Unix(200, 0), time.Unix(300, 0))
	if !res.HasConflict || len(res.Conflicts) != 0 || res.WouldExceed || !res.Viewing {
		t.Fatalf("unexpected adjacent result: %#v", res)
	}
	if res.Message != "Conflict: you are currently watching this source" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	playback.Clear()
	res, _ = checker.Check(ctx, "src", "c2", time.Unix(200, 0), time.Unix(300, 0))
	if res.HasConflict || res.Message != "" {
		t.Fatalf("expected clear window, got %#v", res)
	}
}

func TestCheckRespectsConnectionLimit(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	three := 3
	if _, err := st.UpsertSource(ctx, store.Source{ID: "src", MaxConnections: &three}); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}
	testsupport.AddSchedule(t, st, "c1", time.Unix(100, 0), time.Unix(200, 0))
	playback := &conflict.Playback{}
	playback.Set("src", "c1")
	checker := conflict.NewChecker(st, playback)

	res, err := checker.Check(ctx, "src", "c2", time.Unix(100, 0), time.Unix(200, 0))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.WouldExceed || res.Viewing {
		t.Fatalf("limit 3 should allow a second stream while viewing: %#v", res)
	}
	if !res.HasConflict || res.Message != "Conflict: 1 overlapping recording(s)" {
		t.Fatalf("overlap must still be reported: %#v", res)
	}
}

func TestCheckRejectsInvalidRange(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	checker := conflict.NewChecker(st, nil)
	_, err := checker.Check(context.Background(), "src", "c", time.Unix(5, 0), time.Unix(5, 0))
	if !errors.Is(err, store.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}
