// Package conflict decides whether a proposed recording window collides with
// existing schedules, the source's connection limit, or live playback.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dvr/internal/store"
)

// ErrConflict reports a schedule request refused because of a conflict.
var ErrConflict = errors.New("schedule conflicts with existing recordings")

// Store is the subset of the schedule store the checker needs.
type Store interface {
	CheckConflicts(ctx context.Context, sourceID string, start, end time.Time) ([]*store.Schedule, *int, error)
}

// Viewer reports what the user is currently watching.
type Viewer interface {
	Playing() (sourceID, channelID string, ok bool)
}

// Result describes every reason a window is contested.
type Result struct {
	HasConflict    bool              `json:"has_conflict"`
	Conflicts      []*store.Schedule `json:"conflicts"`
	MaxConnections *int              `json:"max_connections,omitempty"`
	WouldExceed    bool              `json:"would_exceed"`
	Viewing        bool              `json:"viewing"`
	Message        string            `json:"message,omitempty"`
}

// Checker combines overlap, connection-limit, and viewing checks.
type Checker struct {
	store  Store
	viewer Viewer
}

// NewChecker builds a checker. viewer may be nil.
func NewChecker(st Store, viewer Viewer) *Checker {
	return &Checker{store: st, viewer: viewer}
}

// Check evaluates a proposed recording of channelID on sourceID during
// [start, end). Conflicts are reported, never returned as errors.
func (c *Checker) Check(ctx context.Context, sourceID, channelID string, start, end time.Time) (Result, error) {
	if !end.After(start) {
		return Result{}, store.ErrInvalidTimeRange
	}
	conflicts, maxConn, err := c.store.CheckConflicts(ctx, sourceID, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("check conflicts: %w", err)
	}

	limit := 1
	if maxConn != nil {
		limit = *maxConn
	}
	res := Result{
		Conflicts:      conflicts,
		MaxConnections: maxConn,
		WouldExceed:    len(conflicts) >= limit,
	}
	if c.viewer != nil {
		if playing, _, ok := c.viewer.Playing(); ok && playing == sourceID {
			res.Viewing = maxConn == nil || *maxConn <= 1
		}
	}
	res.HasConflict = len(conflicts) > 0 || res.WouldExceed || res.Viewing
	if res.HasConflict {
		res.Message = composeMessage(res, limit)
	}
	return res, nil
}

func composeMessage(res Result, limit int) string {
	var parts []string
	if len(res.Conflicts) > 0 {
		parts = append(parts, fmt.Sprintf("%d overlapping recording(s)", len(res.Conflicts)))
	}
	if res.WouldExceed {
		parts = append(parts, fmt.Sprintf("connection limit (%d max)", limit))
	}
	if res.Viewing {
		parts = append(parts, "you are currently watching this source")
	}
	return "Conflict: " + strings.Join(parts, ", ")
}

// Playback tracks the stream a client reports it is playing.
type Playback struct {
	mu        sync.RWMutex
	sourceID  string
	channelID string
	since     time.Time
}

// Set records that sourceID/channelID is playing.
func (p *Playback) Set(sourceID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceID = strings.TrimSpace(sourceID)
	p.channelID = strings.TrimSpace(channelID)
	p.since = time.Now()
}

// Clear forgets the current playback.
func (p *Playback) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceID, p.channelID, p.since = "", "", time.Time{}
}

// Playing implements Viewer.
func (p *Playback) Playing() (string, string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceID, p.channelID, p.sourceID != ""
}

// Since reports when the current playback was set.
func (p *Playback) Since() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.since
}
