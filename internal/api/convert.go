package api

import (
	"fmt"
	"strings"
	"time"

	"dvr/internal/conflict"
	"dvr/internal/deps"
	"dvr/internal/store"
)

// FormatTime renders t in UTC for payloads; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// ParseTime accepts RFC3339 with or without fractional seconds.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time is required: %w", store.ErrInvalidTimeRange)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

// FromSchedule converts a stored schedule.
func FromSchedule(s *store.Schedule) Schedule {
	if s == nil {
		return Schedule{}
	}
	return Schedule{
		ID:              s.ID,
		SourceID:        s.SourceID,
		ChannelID:       s.ChannelID,
		ChannelName:     s.ChannelName,
		ProgramTitle:    s.ProgramTitle,
		Start:           FormatTime(s.ScheduledStart),
		End:             FormatTime(s.ScheduledEnd),
		StartPaddingSec: s.StartPaddingSec,
		EndPaddingSec:   s.EndPaddingSec,
		CaptureStart:    FormatTime(s.PaddedStart()),
		CaptureEnd:      FormatTime(s.PaddedEnd()),
		Status:          string(s.Status),
		Recurrence:      s.Recurrence,
		CreatedAt:       FormatTime(s.CreatedAt),
		StartedAt:       formatTimePtr(s.StartedAt),
		HasResolvedURL:  strings.TrimSpace(s.ResolvedURL) != "",
	}
}

// FromSchedules converts a slice, skipping nils.
func FromSchedules(items []*store.Schedule) []Schedule {
	out := make([]Schedule, 0, len(items))
	for _, s := range items {
		if s != nil {
			out = append(out, FromSchedule(s))
		}
	}
	return out
}

// FromRecording converts a stored recording.
func FromRecording(r *store.Recording) Recording {
	if r == nil {
		return Recording{}
	}
	rec := Recording{
		ID:               r.ID,
		FilePath:         r.FilePath,
		Filename:         r.Filename,
		ChannelName:      r.ChannelName,
		ProgramTitle:     r.ProgramTitle,
		SizeBytes:        r.Size(),
		ScheduledStart:   FormatTime(r.ScheduledStart),
		ScheduledEnd:     FormatTime(r.ScheduledEnd),
		ActualStart:      formatTimePtr(r.ActualStart),
		ActualEnd:        formatTimePtr(r.ActualEnd),
		Status:           string(r.Status),
		ErrorMessage:     r.ErrorMessage,
		AutoDeletePolicy: r.AutoDeletePolicy,
		HasThumbnail:     r.ThumbnailPath != "",
	}
	if r.ScheduleID != nil {
		rec.ScheduleID = *r.ScheduleID
	}
	return rec
}

// FromRecordings converts a slice, skipping nils.
func FromRecordings(items []*store.Recording) []Recording {
	out := make([]Recording, 0, len(items))
	for _, r := range items {
		if r != nil {
			out = append(out, FromRecording(r))
		}
	}
	return out
}

// FromConflict converts a checker result.
func FromConflict(r conflict.Result) ConflictResult {
	return ConflictResult{
		HasConflict:    r.HasConflict,
		Conflicts:      FromSchedules(r.Conflicts),
		MaxConnections: r.MaxConnections,
		WouldExceed:    r.WouldExceed,
		Viewing:        r.Viewing,
		Message:        r.Message,
	}
}

// ToRequest validates and converts a create body into a store request.
func (c ScheduleCreate) ToRequest() (store.ScheduleRequest, error) {
	start, err := ParseTime(c.Start)
	if err != nil {
		return store.ScheduleRequest{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTime(c.End)
	if err != nil {
		return store.ScheduleRequest{}, fmt.Errorf("end: %w", err)
	}
	return store.ScheduleRequest{
		SourceID:        strings.TrimSpace(c.SourceID),
		ChannelID:       strings.TrimSpace(c.ChannelID),
		ChannelName:     strings.TrimSpace(c.ChannelName),
		ProgramTitle:    strings.TrimSpace(c.ProgramTitle),
		Start:           start,
		End:             end,
		StartPaddingSec: c.StartPaddingSec,
		EndPaddingSec:   c.EndPaddingSec,
		Recurrence:      strings.TrimSpace(c.Recurrence),
		ResolvedURL:     strings.TrimSpace(c.ResolvedURL),
		ChannelURL:      strings.TrimSpace(c.ChannelURL),
	}, nil
}

// FromDependencies converts dependency checks and grades each one: missing
// required binaries are errors, missing optional ones are warnings.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		severity := "ok"
		if !dep.Available {
			severity = "error"
			if dep.Optional {
				severity = "warn"
			}
		}
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
			Severity:    severity,
		})
	}
	return out
}

// FromSources converts stored sources. Passwords never leave the daemon.
func FromSources(items []*store.Source) []Source {
	out := make([]Source, 0, len(items))
	for _, src := range items {
		if src == nil {
			continue
		}
		out = append(out, Source{
			ID:             src.ID,
			Name:           src.Name,
			Kind:           src.Kind,
			BaseURL:        src.BaseURL,
			Username:       src.Username,
			MaxConnections: src.MaxConnections,
		})
	}
	return out
}
