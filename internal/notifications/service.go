package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dvr/internal/config"
	"dvr/internal/events"
)

const userAgent = "dvr/0.1.0"

// Service defines the notification surface.
type Service interface {
	events.Sink
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[events.Type]bool{
			events.Started:   cfg.Notifications.Started,
			events.Completed: cfg.Notifications.Completed,
			events.Failed:    cfg.Notifications.Failed,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[events.Type]bool
}

func (n *ntfyService) Name() string { return "ntfy" }

// Deliver sends ev when its type is enabled. Other event types are dropped.
func (n *ntfyService) Deliver(ctx context.Context, ev events.Event) error {
	if !n.enabled[ev.Type] {
		return nil
	}
	data, ok := formatEvent(ev)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func formatEvent(ev events.Event) (payload, bool) {
	label := strings.TrimSpace(ev.ProgramTitle)
	if channel := strings.TrimSpace(ev.ChannelName); channel != "" {
		if label == "" {
			label = channel
		} else {
			label = fmt.Sprintf("%s (%s)", label, channel)
		}
	}
	switch ev.Type {
	case events.Started:
		return payload{
			title:   "DVR - Recording Started",
			message: "🔴 Recording: " + label,
			tags:    []string{"dvr", "recording", "started"},
		}, true
	case events.Completed:
		return payload{
			title:   "DVR - Recording Complete",
			message: "✅ Recorded: " + label,
			tags:    []string{"dvr", "recording", "completed"},
		}, true
	case events.Failed:
		message := "❌ Recording failed: " + label
		if reason := strings.TrimSpace(ev.Message); reason != "" {
			message += "\n" + reason
		}
		return payload{
			title:    "DVR - Recording Failed",
			message:  message,
			tags:     []string{"dvr", "recording", "failed"},
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "DVR - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"dvr", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Name() string                                { return "noop" }
func (noopService) Deliver(context.Context, events.Event) error { return nil }
func (noopService) TestNotification(context.Context) error      { return nil }
