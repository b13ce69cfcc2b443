package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AddSchedule validates and persists a new schedule in status scheduled.
func (s *Store) AddSchedule(ctx context.Context, req ScheduleRequest) (int64, error) {
	ctx = ensureContext(ctx)
	if !req.End.After(req.Start) {
		return 0, ErrInvalidTimeRange
	}
	if strings.TrimSpace(req.SourceID) == "" || strings.TrimSpace(req.ChannelID) == "" {
		return 0, errors.New("source id and channel id are required")
	}

	startPad, endPad := DefaultStartPaddingSec, DefaultEndPaddingSec
	if req.StartPaddingSec == nil || req.EndPaddingSec == nil {
		settings, err := s.LoadSettings(ctx)
		if err != nil {
			return 0, err
		}
		startPad, endPad = settings.DefaultStartPaddingSec, settings.DefaultEndPaddingSec
	}
	if req.StartPaddingSec != nil {
		startPad = *req.StartPaddingSec
	}
	if req.EndPaddingSec != nil {
		endPad = *req.EndPaddingSec
	}
	if startPad < 0 || endPad < 0 {
		return 0, ErrInvalidPadding
	}

	res, err := s.execWithRetry(ctx, `INSERT INTO schedule (
            source_id, channel_id, channel_name, program_title, scheduled_start, scheduled_end,
            start_padding_sec, end_padding_sec, status, recurrence, created_at, resolved_url, channel_url
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.SourceID,
		req.ChannelID,
		req.ChannelName,
		req.ProgramTitle,
		req.Start.Unix(),
		req.End.Unix(),
		startPad,
		endPad,
		string(ScheduleScheduled),
		nullableString(req.Recurrence),
		s.now().Unix(),
		nullableString(req.ResolvedURL),
		nullableString(req.ChannelURL),
	)
	if err != nil {
		return 0, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("schedule id: %w", err)
	}
	return id, nil
}

// GetSchedule fetches a schedule by id. It returns nil, nil when absent.
func (s *Store) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+scheduleColumns+" FROM schedule WHERE id = ?", id)
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", id, err)
	}
	return sched, nil
}

// ListSchedules returns schedules in the given statuses (all when empty),
// ascending by scheduled start.
func (s *Store) ListSchedules(ctx context.Context, statuses ...ScheduleStatus) ([]*Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedule"
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
	}
	query += " ORDER BY scheduled_start ASC, id ASC"
	return s.querySchedules(ctx, query, statusArgs(statuses)...)
}

// CountPending reports how many schedules are still waiting to start.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM schedule WHERE status = ?", string(ScheduleScheduled),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending schedules: %w", err)
	}
	return count, nil
}

// DueSchedules returns scheduled entries whose padded start falls within
// lookahead of now, plus never-started entries whose raw start passed less
// than grace ago. Results ascend by scheduled start.
func (s *Store) DueSchedules(ctx context.Context, now time.Time, lookahead, grace time.Duration) ([]*Schedule, error) {
	nowSec := now.Unix()
	window := int64(lookahead / time.Second)
	graceSec := int64(grace / time.Second)
	return s.querySchedules(ctx, "SELECT "+scheduleColumns+` FROM schedule
        WHERE status = ?
          AND (
            (scheduled_start - start_padding_sec) BETWEEN ? AND ?
            OR (started_at IS NULL AND scheduled_start BETWEEN ? AND ?)
          )
        ORDER BY scheduled_start ASC, id ASC`,
		string(ScheduleScheduled),
		nowSec-window, nowSec+window,
		nowSec-graceSec, nowSec,
	)
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]*Schedule, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return out, nil
}

// UpdateScheduleStatus applies a guarded status transition. Moving to
// recording stamps started_at. Transitions the table does not allow return
// ErrInvalidTransition; concurrent writers racing the same terminal write see
// exactly one success.
func (s *Store) UpdateScheduleStatus(ctx context.Context, id int64, status ScheduleStatus) error {
	ctx = ensureContext(ctx)
	from := allowedFrom(status)
	if len(from) == 0 {
		return fmt.Errorf("schedule %d -> %s: %w", id, status, ErrInvalidTransition)
	}

	query := "UPDATE schedule SET status = ?"
	args := []any{string(status)}
	if status == ScheduleRecording {
		query += ", started_at = ?"
		args = append(args, s.now().Unix())
	}
	query += " WHERE id = ? AND status IN (" + makePlaceholders(len(from)) + ")"
	args = append(args, id)
	args = append(args, statusArgs(from)...)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule %d status: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	current, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("schedule %d %s -> %s: %w", id, current.Status, status, ErrInvalidTransition)
}

// CancelSchedule cancels a schedule that has not started yet.
func (s *Store) CancelSchedule(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		"UPDATE schedule SET status = ? WHERE id = ? AND status = ?",
		string(ScheduleCanceled), id, string(ScheduleScheduled),
	)
	if err != nil {
		return fmt.Errorf("cancel schedule %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	current, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("schedule %d is %s: %w", id, current.Status, ErrNotCancelable)
}

// UpdatePaddings changes the paddings of a schedule that has not started.
func (s *Store) UpdatePaddings(ctx context.Context, id int64, startSec, endSec int64) error {
	ctx = ensureContext(ctx)
	if startSec < 0 || endSec < 0 {
		return ErrInvalidPadding
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE schedule SET start_padding_sec = ?, end_padding_sec = ? WHERE id = ? AND status = ?",
		startSec, endSec, id, string(ScheduleScheduled),
	)
	if err != nil {
		return fmt.Errorf("update schedule %d paddings: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	current, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("schedule %d is %s: %w", id, current.Status, ErrNotEditable)
}

// UpdateResolvedURL stores a freshly resolved capture URL on a schedule.
func (s *Store) UpdateResolvedURL(ctx context.Context, id int64, url string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE schedule SET resolved_url = ? WHERE id = ?",
		nullableString(url), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule %d resolved url: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSchedule removes a schedule and its recording rows in one
// transaction. Media files must already be gone.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM recording WHERE schedule_id = ?", id); err != nil {
			return fmt.Errorf("delete recordings for schedule %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM schedule WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete schedule %d: %w", id, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
		}
		return tx.Commit()
	})
}

// CheckConflicts lists scheduled or recording entries on sourceID whose
// window intersects [start, end), along with the source's connection limit
// (nil when unknown or unlimited). Touching windows do not conflict.
func (s *Store) CheckConflicts(ctx context.Context, sourceID string, start, end time.Time) ([]*Schedule, *int, error) {
	conflicts, err := s.querySchedules(ctx, "SELECT "+scheduleColumns+` FROM schedule
        WHERE source_id = ?
          AND status IN (?, ?)
          AND NOT (scheduled_end <= ? OR scheduled_start >= ?)
        ORDER BY scheduled_start ASC, id ASC`,
		sourceID,
		string(ScheduleScheduled), string(ScheduleRecording),
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, nil, err
	}
	src, err := s.GetSource(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	var maxConn *int
	if src != nil {
		maxConn = src.MaxConnections
	}
	return conflicts, maxConn, nil
}
