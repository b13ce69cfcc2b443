package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dvr/internal/events"
	"dvr/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (s *recordingSink) Name() string { return "test" }

func (s *recordingSink) Deliver(_ context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) snapshot() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func TestPublishReachesSinksAndSubscribers(t *testing.T) {
	hub := events.NewHub(nil)
	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("offline")}
	hub.AddSink(ok)
	hub.AddSink(broken)
	hub.AddSink(nil)

	ch, cancel := hub.Subscribe()
	defer cancel()

	sched := &store.Schedule{ID: 7, ChannelName: "News", ProgramTitle: "Late"}
	hub.Publish(context.Background(), events.ForSchedule(events.Started, sched))
	hub.Wait()

	got := ok.snapshot()
	if len(got) != 1 || got[0].Type != events.Started || got[0].ScheduleID != 7 {
		t.Fatalf("unexpected sink events: %#v", got)
	}
	if len(broken.snapshot()) != 1 {
		t.Fatal("failing sink should still have been called")
	}
	select {
	case ev := <-ch:
		if ev.ChannelName != "News" || ev.At.IsZero() {
			t.Fatalf("unexpected subscriber event: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := events.NewHub(nil)
	ch, cancel := hub.Subscribe()
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
	hub.Publish(context.Background(), events.Event{Type: events.Completed})
}

func TestRequestFreshURLAnswered(t *testing.T) {
	hub := events.NewHub(nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	go func() {
		for ev := range ch {
			if ev.Type == events.ResolveURLNow {
				hub.NotifyURLUpdated(ev.ScheduleID, "http://fresh.test/stream")
				return
			}
		}
	}()

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	url, ok := hub.RequestFreshURL(ctx, &store.Schedule{ID: 3})
	if !ok || url != "http://fresh.test/stream" {
		t.Fatalf("RequestFreshURL = %q, %v", url, ok)
	}
	if hub.NotifyURLUpdated(3, "late") {
		t.Fatal("no request should remain pending")
	}
}

func TestRequestFreshURLTimesOut(t *testing.T) {
	hub := events.NewHub(nil)
	_, cancel := hub.Subscribe()
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	start := time.Now()
	if url, ok := hub.RequestFreshURL(ctx, &store.Schedule{ID: 9}); ok || url != "" {
		t.Fatalf("expected timeout, got %q", url)
	}
	if time.Since(start) > time.Second {
		t.Fatal("request was not bounded by the context")
	}
}

func TestRequestFreshURLWithoutListeners(t *testing.T) {
	hub := events.NewHub(nil)
	if _, ok := hub.RequestFreshURL(context.Background(), &store.Schedule{ID: 1}); ok {
		t.Fatal("expected immediate miss with no subscribers")
	}
}
