package resolver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dvr/internal/resolver"
	"dvr/internal/store"
)

type fakeStore struct {
	sources  map[string]*store.Source
	schedule *store.Schedule
}

func (f *fakeStore) GetSchedule(context.Context, int64) (*store.Schedule, error) {
	return f.schedule, nil
}

func (f *fakeStore) GetSource(_ context.Context, id string) (*store.Source, error) {
	return f.sources[id], nil
}

type fakeFresh struct {
	url   string
	delay time.Duration
	calls int
}

func (f *fakeFresh) RequestFreshURL(ctx context.Context, _ *store.Schedule) (string, bool) {
	f.calls++
	select {
	case <-time.After(f.delay):
		return f.url, f.url != ""
	case <-ctx.Done():
		return "", false
	}
}

func TestResolvePrefersPreResolvedURL(t *testing.T) {
	fresh := &fakeFresh{url: "http://fresh"}
	r := resolver.New(&fakeStore{}, fresh, time.Second, nil)
	res, err := r.Resolve(context.Background(), &store.Schedule{ResolvedURL: "http://pre", ChannelURL: "http://chan"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.URL != "http://pre" || res.Method != resolver.MethodPreResolved {
		t.Fatalf("unexpected result %#v", res)
	}
	if fresh.calls != 0 {
		t.Fatal("fresh requester should not be consulted")
	}
}

func TestResolveRebuildsXtreamURL(t *testing.T) {
	st := &fakeStore{sources: map[string]*store.Source{
		"xt": {ID: "xt", Kind: "xtream", BaseURL: "http://provider.test:8080/", Username: "alice", Password: "s3cret"},
	}}
	r := resolver.New(st, nil, time.Second, nil)
	sched := &store.Schedule{ID: 1, SourceID: "xt", ChannelID: "999", ChannelURL: "http://old.test/live/alice/expired/12345.m3u8?token=abc"}
	res, err := r.Resolve(context.Background(), sched)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := "http://provider.test:8080/live/alice/s3cret/12345.ts"
	if res.URL != want || res.Method != resolver.MethodXtream {
		t.Fatalf("got %#v, want %s", res, want)
	}

	sched.ChannelURL = ""
	res, _ = r.Resolve(context.Background(), sched)
	if res.URL != "http://provider.test:8080/live/alice/s3cret/999.ts" {
		t.Fatalf("expected channel id fallback, got %s", res.URL)
	}
}

func TestResolveStalkerAsksForFreshURL(t *testing.T) {
	st := &fakeStore{sources: map[string]*store.Source{"st": {ID: "st", Kind: "stalker"}}}
	fresh := &fakeFresh{url: "http://portal/play?token=new"}
	r := resolver.New(st, fresh, time.Second, nil)
	res, err := r.Resolve(context.Background(), &store.Schedule{ID: 2, SourceID: "st", ChannelURL: "http://portal/play?token=old"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.URL != fresh.url || res.Method != resolver.MethodFresh {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestResolveStalkerTimeoutFallsBack(t *testing.T) {
	st := &fakeStore{
		sources:  map[string]*store.Source{"st": {ID: "st", Kind: "stalker"}},
		schedule: &store.Schedule{ID: 3},
	}
	fresh := &fakeFresh{url: "http://too-late", delay: time.Second}
	r := resolver.New(st, fresh, 20*time.Millisecond, nil)

	start := time.Now()
	res, err := r.Resolve(context.Background(), &store.Schedule{ID: 3, SourceID: "st", ChannelURL: "http://portal/old"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.URL != "http://portal/old" || res.Method != resolver.MethodChannelURL {
		t.Fatalf("expected channel url fallback, got %#v", res)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("resolution was not bounded by the timeout")
	}

	// A URL stored by a client while we waited wins over the stale one.
	st.schedule = &store.Schedule{ID: 3, ResolvedURL: "http://portal/stored"}
	res, _ = r.Resolve(context.Background(), &store.Schedule{ID: 3, SourceID: "st", ChannelURL: "http://portal/old"})
	if res.URL != "http://portal/stored" {
		t.Fatalf("expected stored url, got %#v", res)
	}
}

func TestResolveWithoutAnyURL(t *testing.T) {
	r := resolver.New(&fakeStore{}, nil, time.Second, nil)
	_, err := r.Resolve(context.Background(), &store.Schedule{ID: 4, SourceID: "missing"})
	if !errors.Is(err, resolver.ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}
