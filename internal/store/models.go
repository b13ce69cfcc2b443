package store

import "time"

// ScheduleStatus represents the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleRecording ScheduleStatus = "recording"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCanceled  ScheduleStatus = "canceled"
)

// IsTerminal reports whether no further transition is allowed.
func (s ScheduleStatus) IsTerminal() bool {
	switch s {
	case ScheduleCompleted, ScheduleFailed, ScheduleCanceled:
		return true
	default:
		return false
	}
}

// scheduleTransitions lists the statuses each state may move to.
var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleScheduled: {ScheduleRecording, ScheduleCanceled},
	ScheduleRecording: {ScheduleCompleted, ScheduleFailed, ScheduleCanceled},
}

// CanTransition reports whether from -> to is a legal schedule transition.
func CanTransition(from, to ScheduleStatus) bool {
	for _, next := range scheduleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func allowedFrom(to ScheduleStatus) []ScheduleStatus {
	var out []ScheduleStatus
	for from, targets := range scheduleTransitions {
		for _, next := range targets {
			if next == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// RecordingStatus represents the state of a captured file.
type RecordingStatus string

const (
	RecordingActive    RecordingStatus = "recording"
	RecordingCompleted RecordingStatus = "completed"
	RecordingFailed    RecordingStatus = "failed"
	RecordingPartial   RecordingStatus = "partial"
)

// IsTerminal reports whether the recording has finished.
func (s RecordingStatus) IsTerminal() bool {
	return s == RecordingCompleted || s == RecordingFailed || s == RecordingPartial
}

// Retention policy tags for recordings.
const (
	PolicyNever       = "never"
	PolicySpaceNeeded = "space_needed"
)

// Default paddings applied when neither the request nor settings provide one.
const (
	DefaultStartPaddingSec int64 = 60
	DefaultEndPaddingSec   int64 = 300
)

// Schedule is a planned recording of one channel during a time window.
type Schedule struct {
	ID              int64          `json:"id"`
	SourceID        string         `json:"source_id"`
	ChannelID       string         `json:"channel_id"`
	ChannelName     string         `json:"channel_name"`
	ProgramTitle    string         `json:"program_title"`
	ScheduledStart  time.Time      `json:"scheduled_start"`
	ScheduledEnd    time.Time      `json:"scheduled_end"`
	StartPaddingSec int64          `json:"start_padding_sec"`
	EndPaddingSec   int64          `json:"end_padding_sec"`
	Status          ScheduleStatus `json:"status"`
	Recurrence      string         `json:"recurrence,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	ResolvedURL     string         `json:"resolved_url,omitempty"`
	ChannelURL      string         `json:"channel_url,omitempty"`
}

// StartPadding returns the lead-in padding as a duration.
func (s Schedule) StartPadding() time.Duration {
	return time.Duration(s.StartPaddingSec) * time.Second
}

// EndPadding returns the run-out padding as a duration.
func (s Schedule) EndPadding() time.Duration {
	return time.Duration(s.EndPaddingSec) * time.Second
}

// PaddedStart is the instant capture should begin.
func (s Schedule) PaddedStart() time.Time {
	return s.ScheduledStart.Add(-s.StartPadding())
}

// PaddedEnd is the instant capture should end.
func (s Schedule) PaddedEnd() time.Time {
	return s.ScheduledEnd.Add(s.EndPadding())
}

// ScheduleRequest carries the caller-supplied fields of a new schedule.
// Nil paddings take the stored defaults.
type ScheduleRequest struct {
	SourceID        string    `json:"source_id"`
	ChannelID       string    `json:"channel_id"`
	ChannelName     string    `json:"channel_name"`
	ProgramTitle    string    `json:"program_title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	StartPaddingSec *int64    `json:"start_padding_sec,omitempty"`
	EndPaddingSec   *int64    `json:"end_padding_sec,omitempty"`
	Recurrence      string    `json:"recurrence,omitempty"`
	ResolvedURL     string    `json:"resolved_url,omitempty"`
	ChannelURL      string    `json:"channel_url,omitempty"`
}

// Recording is one capture attempt and its output file.
type Recording struct {
	ID               int64           `json:"id"`
	ScheduleID       *int64          `json:"schedule_id,omitempty"`
	FilePath         string          `json:"file_path"`
	Filename         string          `json:"filename"`
	ChannelName      string          `json:"channel_name"`
	ProgramTitle     string          `json:"program_title"`
	SizeBytes        *int64          `json:"size_bytes,omitempty"`
	ScheduledStart   time.Time       `json:"scheduled_start"`
	ScheduledEnd     time.Time       `json:"scheduled_end"`
	ActualStart      *time.Time      `json:"actual_start,omitempty"`
	ActualEnd        *time.Time      `json:"actual_end,omitempty"`
	Status           RecordingStatus `json:"status"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	AutoDeletePolicy string          `json:"auto_delete_policy"`
	ThumbnailPath    string          `json:"thumbnail_path,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EffectiveEnd is the actual end time, or the creation time when the
// recording never recorded one.
func (r Recording) EffectiveEnd() time.Time {
	if r.ActualEnd != nil {
		return *r.ActualEnd
	}
	return r.CreatedAt
}

// Size returns the stored size or zero.
func (r Recording) Size() int64 {
	if r.SizeBytes == nil {
		return 0
	}
	return *r.SizeBytes
}

// NewRecording holds the fields written when a capture job starts.
type NewRecording struct {
	ScheduleID     int64
	FilePath       string
	Filename       string
	ChannelName    string
	ProgramTitle   string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    time.Time
	Policy         string
}

// RecordingUpdate finalizes a recording. A nil size keeps the stored size.
type RecordingUpdate struct {
	Status       RecordingStatus
	SizeBytes    *int64
	ErrorMessage string
}

// Source is an IPTV provider.
type Source struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	BaseURL        string `json:"base_url,omitempty"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"-"`
	MaxConnections *int   `json:"max_connections,omitempty"`
}

// UpsertResult reports what an upsert did.
type UpsertResult int

const (
	Ignored UpsertResult = iota
	Inserted
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "ignored"
	}
}

// Settings are the user-editable DVR preferences.
type Settings struct {
	StoragePath            string `json:"storage_path"`
	MaxDiskUsagePercent    int    `json:"max_disk_usage_percent"`
	AutoCleanupEnabled     bool   `json:"auto_cleanup_enabled"`
	DefaultStartPaddingSec int64  `json:"default_start_padding_sec"`
	DefaultEndPaddingSec   int64  `json:"default_end_padding_sec"`
	KeepRecordingsDays     *int   `json:"keep_recordings_days,omitempty"`
}
