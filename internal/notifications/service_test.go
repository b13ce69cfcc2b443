package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"dvr/internal/config"
	"dvr/internal/events"
	"dvr/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if svc.Name() != "noop" {
		t.Fatalf("expected noop service, got %s", svc.Name())
	}
	if err := svc.Deliver(context.Background(), events.Event{Type: events.Failed}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsEvents(t *testing.T) {
	srv, captured := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Started = true
	svc := notifications.NewService(&cfg)

	ctx := context.Background()
	base := events.Event{ChannelName: "News One", ProgramTitle: "Evening Report"}
	for _, typ := range []events.Type{events.Started, events.Completed, events.Failed, events.ResolveURLNow} {
		ev := base
		ev.Type = typ
		if typ == events.Failed {
			ev.Message = "ffmpeg exited with code 1: Connection refused"
		}
		if err := svc.Deliver(ctx, ev); err != nil {
			t.Fatalf("Deliver(%s) failed: %v", typ, err)
		}
	}

	reqs := captured()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].title != "DVR - Recording Started" || reqs[0].body != "🔴 Recording: Evening Report (News One)" {
		t.Fatalf("unexpected started payload: %#v", reqs[0])
	}
	if reqs[1].tags != "dvr,recording,completed" || reqs[1].priority != "" {
		t.Fatalf("unexpected completed payload: %#v", reqs[1])
	}
	if reqs[2].priority != "high" || !strings.Contains(reqs[2].body, "Connection refused") {
		t.Fatalf("unexpected failed payload: %#v", reqs[2])
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	srv, captured := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	if err := svc.Deliver(context.Background(), events.Event{Type: events.Started, ProgramTitle: "x"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if n := len(captured()); n != 0 {
		t.Fatalf("started notifications are off by default, got %d requests", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
