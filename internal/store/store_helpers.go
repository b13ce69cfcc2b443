package store

import (
	"database/sql"
	"strings"
	"time"
)

const scheduleColumns = "id, source_id, channel_id, channel_name, program_title, scheduled_start, scheduled_end, start_padding_sec, end_padding_sec, status, recurrence, created_at, started_at, resolved_url, channel_url"

const recordingColumns = "id, schedule_id, file_path, filename, channel_name, program_title, size_bytes, scheduled_start, scheduled_end, actual_start, actual_end, status, error_message, auto_delete_policy, thumbnail_path, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var (
		sched      Schedule
		status     string
		start      int64
		end        int64
		created    int64
		recurrence sql.NullString
		startedAt  sql.NullInt64
		resolved   sql.NullString
		channelURL sql.NullString
	)
	if err := scanner.Scan(
		&sched.ID,
		&sched.SourceID,
		&sched.ChannelID,
		&sched.ChannelName,
		&sched.ProgramTitle,
		&start,
		&end,
		&sched.StartPaddingSec,
		&sched.EndPaddingSec,
		&status,
		&recurrence,
		&created,
		&startedAt,
		&resolved,
		&channelURL,
	); err != nil {
		return nil, err
	}
	sched.Status = ScheduleStatus(status)
	sched.ScheduledStart = fromUnix(start)
	sched.ScheduledEnd = fromUnix(end)
	sched.CreatedAt = fromUnix(created)
	sched.StartedAt = nullableUnix(startedAt)
	sched.Recurrence = recurrence.String
	sched.ResolvedURL = resolved.String
	sched.ChannelURL = channelURL.String
	return &sched, nil
}

func scanRecording(scanner rowScanner) (*Recording, error) {
	var (
		rec         Recording
		scheduleID  sql.NullInt64
		size        sql.NullInt64
		start       int64
		end         int64
		actualStart sql.NullInt64
		actualEnd   sql.NullInt64
		status      string
		errMsg      sql.NullString
		thumbnail   sql.NullString
		created     int64
	)
	if err := scanner.Scan(
		&rec.ID,
		&scheduleID,
		&rec.FilePath,
		&rec.Filename,
		&rec.ChannelName,
		&rec.ProgramTitle,
		&size,
		&start,
		&end,
		&actualStart,
		&actualEnd,
		&status,
		&errMsg,
		&rec.AutoDeletePolicy,
		&thumbnail,
		&created,
	); err != nil {
		return nil, err
	}
	if scheduleID.Valid {
		id := scheduleID.Int64
		rec.ScheduleID = &id
	}
	if size.Valid {
		n := size.Int64
		rec.SizeBytes = &n
	}
	rec.ScheduledStart = fromUnix(start)
	rec.ScheduledEnd = fromUnix(end)
	rec.ActualStart = nullableUnix(actualStart)
	rec.ActualEnd = nullableUnix(actualEnd)
	rec.Status = RecordingStatus(status)
	rec.ErrorMessage = errMsg.String
	rec.ThumbnailPath = thumbnail.String
	rec.CreatedAt = fromUnix(created)
	return &rec, nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func nullableUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs[S ~string](statuses []S) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}
