package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dvr/internal/logging"
	"dvr/internal/store"
)

// Type names a lifecycle event.
type Type string

const (
	Started       Type = "started"
	Completed     Type = "completed"
	Failed        Type = "failed"
	ResolveURLNow Type = "resolve_url_now"
)

// Event is one lifecycle notification.
type Event struct {
	Type         Type      `json:"type"`
	ScheduleID   int64     `json:"schedule_id"`
	RecordingID  *int64    `json:"recording_id,omitempty"`
	SourceID     string    `json:"source_id,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelName  string    `json:"channel_name,omitempty"`
	ProgramTitle string    `json:"program_title,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// ForSchedule builds an event carrying the schedule's identity fields.
func ForSchedule(t Type, sched *store.Schedule) Event {
	ev := Event{Type: t, At: time.Now().UTC()}
	if sched != nil {
		ev.ScheduleID = sched.ID
		ev.SourceID = sched.SourceID
		ev.ChannelID = sched.ChannelID
		ev.ChannelName = sched.ChannelName
		ev.ProgramTitle = sched.ProgramTitle
	}
	return ev
}

// Sink receives published events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

const (
	defaultSinkTimeout = 10 * time.Second
	subscriberBuffer   = 32
)

// Hub distributes events to sinks and subscribers.
type Hub struct {
	logger      *slog.Logger
	sinkTimeout time.Duration

	mu      sync.RWMutex
	sinks   []Sink
	subs    map[uint64]chan Event
	nextSub uint64

	pendingMu sync.Mutex
	pending   map[int64][]chan string

	wg sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		logger:      logging.NewComponentLogger(logger, "events"),
		sinkTimeout: defaultSinkTimeout,
		subs:        make(map[uint64]chan Event),
		pending:     make(map[int64][]chan string),
	}
}

// AddSink registers a sink. Nil sinks are ignored.
func (h *Hub) AddSink(s Sink) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// Publish logs ev, hands it to every sink asynchronously, and offers it to
// every subscriber without blocking. Slow subscribers miss events.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.logEvent(ev)

	h.mu.RLock()
	sinks := append([]Sink(nil), h.sinks...)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.RUnlock()

	base := context.WithoutCancel(ensureContext(ctx))
	for _, sink := range sinks {
		h.wg.Add(1)
		go func(sink Sink) {
			defer h.wg.Done()
			sinkCtx, cancel := context.WithTimeout(base, h.sinkTimeout)
			defer cancel()
			if err := sink.Deliver(sinkCtx, ev); err != nil {
				logging.WarnWithContext(h.logger, "event delivery failed", "events.sink_failed",
					logging.String("sink", sink.Name()),
					logging.String("event", string(ev.Type)),
					logging.Int64(logging.FieldScheduleID, ev.ScheduleID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the "+sink.Name()+" settings"),
					logging.String(logging.FieldImpact, "subscribers of this sink missed the event"),
				)
			}
		}(sink)
	}
}

func (h *Hub) logEvent(ev Event) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "recording."+string(ev.Type)),
		logging.Int64(logging.FieldScheduleID, ev.ScheduleID),
		logging.String("channel", ev.ChannelName),
		logging.String("program", ev.ProgramTitle),
	}
	if ev.RecordingID != nil {
		attrs = append(attrs, logging.Int64(logging.FieldRecordingID, *ev.RecordingID))
	}
	if ev.Message != "" {
		attrs = append(attrs, logging.String("message", ev.Message))
	}
	if ev.Type == Failed {
		h.logger.Warn("recording event", logging.Args(attrs...)...)
		return
	}
	h.logger.Info("recording event", logging.Args(attrs...)...)
}

// Subscribe returns a channel of future events and a function that ends the
// subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// RequestFreshURL asks connected clients for a new capture URL for sched and
// waits until one answers or ctx ends. ok is false on timeout or when no
// client is listening.
func (h *Hub) RequestFreshURL(ctx context.Context, sched *store.Schedule) (string, bool) {
	ctx = ensureContext(ctx)
	if sched == nil {
		return "", false
	}
	if h.Subscribers() == 0 {
		return "", false
	}

	reply := make(chan string, 1)
	h.pendingMu.Lock()
	h.pending[sched.ID] = append(h.pending[sched.ID], reply)
	h.pendingMu.Unlock()
	defer h.dropPending(sched.ID, reply)

	h.Publish(ctx, ForSchedule(ResolveURLNow, sched))

	select {
	case url := <-reply:
		return url, url != ""
	case <-ctx.Done():
		return "", false
	}
}

func (h *Hub) dropPending(scheduleID int64, reply chan string) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	waiters := h.pending[scheduleID]
	for i, ch := range waiters {
		if ch == reply {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(h.pending, scheduleID)
		return
	}
	h.pending[scheduleID] = waiters
}

// NotifyURLUpdated wakes every pending fresh-URL request for scheduleID. It
// reports whether anyone was waiting.
func (h *Hub) NotifyURLUpdated(scheduleID int64, url string) bool {
	h.pendingMu.Lock()
	waiters := h.pending[scheduleID]
	delete(h.pending, scheduleID)
	h.pendingMu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- url:
		default:
		}
	}
	return len(waiters) > 0
}

// Wait blocks until in-flight sink deliveries finish.
func (h *Hub) Wait() {
	h.wg.Wait()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
