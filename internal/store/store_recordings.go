package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateRecording inserts a recording row in status recording. The partial
// unique index rejects a second active row for the same schedule.
func (s *Store) CreateRecording(ctx context.Context, rec NewRecording) (int64, error) {
	policy := strings.TrimSpace(rec.Policy)
	if policy == "" {
		policy = PolicySpaceNeeded
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO recording (
            schedule_id, file_path, filename, channel_name, program_title,
            scheduled_start, scheduled_end, actual_start, status, auto_delete_policy, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ScheduleID,
		rec.FilePath,
		rec.Filename,
		rec.ChannelName,
		rec.ProgramTitle,
		rec.ScheduledStart.Unix(),
		rec.ScheduledEnd.Unix(),
		rec.ActualStart.Unix(),
		string(RecordingActive),
		policy,
		s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert recording for schedule %d: %w", rec.ScheduleID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording id: %w", err)
	}
	return id, nil
}

// UpdateRecording finalizes an active recording. Terminal statuses stamp
// actual_end; a nil size keeps the stored value. Rows that already left the
// recording status are not touched again.
func (s *Store) UpdateRecording(ctx context.Context, id int64, upd RecordingUpdate) error {
	ctx = ensureContext(ctx)
	var size any
	if upd.SizeBytes != nil {
		size = *upd.SizeBytes
	}
	var actualEnd any
	if upd.Status.IsTerminal() {
		actualEnd = s.now().Unix()
	}
	res, err := s.execWithRetry(ctx, `UPDATE recording
        SET status = ?,
            size_bytes = COALESCE(?, size_bytes),
            error_message = ?,
            actual_end = COALESCE(?, actual_end)
        WHERE id = ? AND status = ?`,
		string(upd.Status),
		size,
		nullableString(upd.ErrorMessage),
		actualEnd,
		id,
		string(RecordingActive),
	)
	if err != nil {
		return fmt.Errorf("update recording %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	current, err := s.GetRecording(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("recording %d %s -> %s: %w", id, current.Status, upd.Status, ErrInvalidTransition)
}

// SetRecordingThumbnail records where a recording's thumbnail lives.
func (s *Store) SetRecordingThumbnail(ctx context.Context, id int64, path string) error {
	return s.updateRecordingField(ctx, id, "thumbnail_path", nullableString(path))
}

// UpdateRecordingSize overwrites the stored size.
func (s *Store) UpdateRecordingSize(ctx context.Context, id int64, size int64) error {
	return s.updateRecordingField(ctx, id, "size_bytes", size)
}

// SetRecordingPolicy changes the retention tag of a recording.
func (s *Store) SetRecordingPolicy(ctx context.Context, id int64, policy string) error {
	if policy != PolicyNever && policy != PolicySpaceNeeded {
		return fmt.Errorf("retention policy %q: %w", policy, ErrInvalidSetting)
	}
	return s.updateRecordingField(ctx, id, "auto_delete_policy", policy)
}

func (s *Store) updateRecordingField(ctx context.Context, id int64, column string, value any) error {
	res, err := s.execWithRetry(ctx, "UPDATE recording SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("update recording %d %s: %w", id, column, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetRecording fetches a recording by id. It returns nil, nil when absent.
func (s *Store) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+recordingColumns+" FROM recording WHERE id = ?", id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %d: %w", id, err)
	}
	return rec, nil
}

// ListRecordings returns recordings in the given statuses (all when empty),
// newest first.
func (s *Store) ListRecordings(ctx context.Context, statuses ...RecordingStatus) ([]*Recording, error) {
	query := "SELECT " + recordingColumns + " FROM recording"
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
	}
	query += " ORDER BY COALESCE(actual_end, created_at) DESC, id DESC"
	return s.queryRecordings(ctx, query, statusArgs(statuses)...)
}

// RecordingsForSchedule returns every recording attempt of a schedule.
func (s *Store) RecordingsForSchedule(ctx context.Context, scheduleID int64) ([]*Recording, error) {
	return s.queryRecordings(ctx,
		"SELECT "+recordingColumns+" FROM recording WHERE schedule_id = ? ORDER BY id ASC",
		scheduleID,
	)
}

// FinishedRecordings returns completed and partial recordings ordered by
// effective end time, oldest first.
func (s *Store) FinishedRecordings(ctx context.Context) ([]*Recording, error) {
	return s.queryRecordings(ctx, "SELECT "+recordingColumns+` FROM recording
        WHERE status IN (?, ?)
        ORDER BY COALESCE(actual_end, created_at) ASC, id ASC`,
		string(RecordingCompleted), string(RecordingPartial),
	)
}

func (s *Store) queryRecordings(ctx context.Context, query string, args ...any) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return out, nil
}

// DeleteRecording removes a recording row. Callers delete the media file and
// thumbnail first.
func (s *Store) DeleteRecording(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM recording WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recording %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return nil
}
