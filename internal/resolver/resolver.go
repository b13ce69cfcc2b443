// Package resolver picks the URL a capture job should read from.
//
// Resolution order: a URL already resolved onto the schedule, a URL rebuilt
// from Xtream credentials, a fresh URL requested from connected clients for
// Stalker portals, and finally the last known channel URL. A slow or failed
// step falls through to the next one; only an empty result is an error.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"dvr/internal/config"
	"dvr/internal/logging"
	"dvr/internal/store"
)

// ErrNoURL reports that no capture URL is known for a schedule.
var ErrNoURL = errors.New("no stream url available")

// Method names how a URL was obtained.
type Method string

const (
	MethodPreResolved Method = "pre_resolved"
	MethodXtream      Method = "xtream"
	MethodFresh       Method = "fresh"
	MethodChannelURL  Method = "channel_url"
)

// Store is the persistence the resolver reads.
type Store interface {
	GetSchedule(ctx context.Context, id int64) (*store.Schedule, error)
	GetSource(ctx context.Context, id string) (*store.Source, error)
}

// FreshURLRequester asks an external party for a newly tokenized URL.
type FreshURLRequester interface {
	RequestFreshURL(ctx context.Context, sched *store.Schedule) (string, bool)
}

// Result is a resolved capture URL.
type Result struct {
	URL    string
	Method Method
}

// Resolver implements the resolution order.
type Resolver struct {
	store   Store
	fresh   FreshURLRequester
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a resolver. fresh may be nil; timeout bounds the fresh-URL round trip.
func New(st Store, fresh FreshURLRequester, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		store:   st,
		fresh:   fresh,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve returns the best capture URL for sched.
func (r *Resolver) Resolve(ctx context.Context, sched *store.Schedule) (Result, error) {
	if sched == nil {
		return Result{}, ErrNoURL
	}
	if u := strings.TrimSpace(sched.ResolvedURL); u != "" {
		return Result{URL: u, Method: MethodPreResolved}, nil
	}

	src, err := r.store.GetSource(ctx, sched.SourceID)
	if err != nil {
		logging.WarnWithContext(r.logger, "source lookup failed; using channel url", "resolver.source_lookup_failed",
			logging.Int64(logging.FieldScheduleID, sched.ID),
			logging.String("source_id", sched.SourceID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "token regeneration skipped"),
		)
	}

	if src != nil {
		switch strings.ToLower(src.Kind) {
		case config.SourceXtream:
			if u, ok := XtreamURL(src, sched); ok {
				return Result{URL: u, Method: MethodXtream}, nil
			}
		case config.SourceStalker:
			if u, ok := r.requestFresh(ctx, sched); ok {
				return Result{URL: u, Method: MethodFresh}, nil
			}
		}
	}

	if u := strings.TrimSpace(sched.ChannelURL); u != "" {
		return Result{URL: u, Method: MethodChannelURL}, nil
	}
	return Result{}, fmt.Errorf("schedule %d: %w", sched.ID, ErrNoURL)
}

func (r *Resolver) requestFresh(ctx context.Context, sched *store.Schedule) (string, bool) {
	if r.fresh == nil {
		return "", false
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if u, ok := r.fresh.RequestFreshURL(waitCtx, sched); ok && strings.TrimSpace(u) != "" {
		return strings.TrimSpace(u), true
	}

	// A client may have stored the URL without answering the request.
	latest, err := r.store.GetSchedule(ctx, sched.ID)
	if err == nil && latest != nil {
		if u := strings.TrimSpace(latest.ResolvedURL); u != "" {
			return u, true
		}
	}
	logging.WarnWithContext(r.logger, "fresh url request timed out; falling back", "resolver.fresh_timeout",
		logging.Int64(logging.FieldScheduleID, sched.ID),
		logging.Duration("timeout", r.timeout),
		logging.String(logging.FieldErrorHint, "open the channel in a client so it can answer resolve_url_now"),
		logging.String(logging.FieldImpact, "capture uses the last known channel url, which may be expired"),
	)
	return "", false
}

// XtreamURL rebuilds a live stream URL from the source's credentials. The
// stream id comes from the last path segment of the channel URL after /live/,
// or the channel id when the URL carries none.
func XtreamURL(src *store.Source, sched *store.Schedule) (string, bool) {
	if src == nil || sched == nil || src.BaseURL == "" || src.Username == "" || src.Password == "" {
		return "", false
	}
	streamID := streamIDFromURL(sched.ChannelURL)
	if streamID == "" {
		streamID = strings.TrimSpace(sched.ChannelID)
	}
	if streamID == "" {
		return "", false
	}
	base := strings.TrimRight(src.BaseURL, "/")
	return fmt.Sprintf("%s/live/%s/%s/%s.ts", base, url.PathEscape(src.Username), url.PathEscape(src.Password), streamID), true
}

func streamIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	idx := strings.Index(raw, "/live/")
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len("/live/"):]
	if cut := strings.IndexAny(rest, "?#"); cut >= 0 {
		rest = rest[:cut]
	}
	last := path.Base(rest)
	if last == "." || last == "/" {
		return ""
	}
	return strings.TrimSuffix(last, path.Ext(last))
}
