package api

import (
	"dvr/internal/cleanup"
	"dvr/internal/diskusage"
	"dvr/internal/recorder"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Schedule describes a planned recording in a transport-friendly format.
type Schedule struct {
	ID              int64  `json:"id"`
	SourceID        string `json:"sourceId"`
	ChannelID       string `json:"channelId"`
	ChannelName     string `json:"channelName"`
	ProgramTitle    string `json:"programTitle"`
	Start           string `json:"start"`
	End             string `json:"end"`
	StartPaddingSec int64  `json:"startPaddingSec"`
	EndPaddingSec   int64  `json:"endPaddingSec"`
	CaptureStart    string `json:"captureStart"`
	CaptureEnd      string `json:"captureEnd"`
	Status          string `json:"status"`
	Recurrence      string `json:"recurrence,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	StartedAt       string `json:"startedAt,omitempty"`
	HasResolvedURL  bool   `json:"hasResolvedUrl"`
}

// Recording describes a capture attempt and its output file.
type Recording struct {
	ID               int64  `json:"id"`
	ScheduleID       int64  `json:"scheduleId,omitempty"`
	FilePath         string `json:"filePath"`
	Filename         string `json:"filename"`
	ChannelName      string `json:"channelName"`
	ProgramTitle     string `json:"programTitle"`
	SizeBytes        int64  `json:"sizeBytes"`
	ScheduledStart   string `json:"scheduledStart"`
	ScheduledEnd     string `json:"scheduledEnd"`
	ActualStart      string `json:"actualStart,omitempty"`
	ActualEnd        string `json:"actualEnd,omitempty"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	AutoDeletePolicy string `json:"autoDeletePolicy"`
	HasThumbnail     bool   `json:"hasThumbnail"`
}

// ScheduleCreate is the request body for a new schedule. Start and End are
// RFC3339; nil paddings take the stored defaults.
type ScheduleCreate struct {
	SourceID        string `json:"sourceId"`
	ChannelID       string `json:"channelId"`
	ChannelName     string `json:"channelName"`
	ProgramTitle    string `json:"programTitle"`
	Start           string `json:"start"`
	End             string `json:"end"`
	StartPaddingSec *int64 `json:"startPaddingSec,omitempty"`
	EndPaddingSec   *int64 `json:"endPaddingSec,omitempty"`
	Recurrence      string `json:"recurrence,omitempty"`
	ResolvedURL     string `json:"resolvedUrl,omitempty"`
	ChannelURL      string `json:"channelUrl,omitempty"`

	// Force schedules even when a conflict is reported.
	Force bool `json:"force,omitempty"`
}

// ScheduleCreated answers a create request.
type ScheduleCreated struct {
	ID       int64           `json:"id"`
	Conflict *ConflictResult `json:"conflict,omitempty"`
}

// ConflictError is the 409 body of a schedule request refused because of a conflict.
type ConflictError struct {
	Error    string         `json:"error"`
	Conflict ConflictResult `json:"conflict"`
}

// ConflictQuery asks whether a window conflicts with existing schedules.
type ConflictQuery struct {
	SourceID  string `json:"sourceId"`
	ChannelID string `json:"channelId"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// ConflictResult reports overlapping schedules and connection pressure.
type ConflictResult struct {
	HasConflict    bool       `json:"hasConflict"`
	Conflicts      []Schedule `json:"conflicts"`
	MaxConnections *int       `json:"maxConnections,omitempty"`
	WouldExceed    bool       `json:"wouldExceed"`
	Viewing        bool       `json:"viewing"`
	Message        string     `json:"message,omitempty"`
}

// PaddingUpdate changes the paddings of a scheduled entry.
type PaddingUpdate struct {
	StartPaddingSec int64 `json:"startPaddingSec"`
	EndPaddingSec   int64 `json:"endPaddingSec"`
}

// StreamURLUpdate stores a freshly resolved stream URL on a schedule.
type StreamURLUpdate struct {
	URL string `json:"url"`
}

// PlaybackUpdate reports what a client is currently watching. An empty
// SourceID clears it.
type PlaybackUpdate struct {
	SourceID  string `json:"sourceId"`
	ChannelID string `json:"channelId"`
}

// Setting is one key/value pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Source describes a configured IPTV provider.
type Source struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	BaseURL        string `json:"baseUrl,omitempty"`
	Username       string `json:"username,omitempty"`
	MaxConnections *int   `json:"maxConnections,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// StatusLine is one labelled row of CLI status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// SchedulerStatus summarizes the poller.
type SchedulerStatus struct {
	Running         bool   `json:"running"`
	LastTick        string `json:"lastTick,omitempty"`
	PendingCount    int    `json:"pendingCount"`
	PollIntervalSec int64  `json:"pollIntervalSec"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool                `json:"running"`
	PID             int                 `json:"pid"`
	StartedAt       string              `json:"startedAt,omitempty"`
	DatabasePath    string              `json:"databasePath"`
	LockFilePath    string              `json:"lockFilePath"`
	StoragePath     string              `json:"storagePath"`
	Scheduler       SchedulerStatus     `json:"scheduler"`
	Active          []recorder.Progress `json:"active"`
	Disk            *diskusage.Usage    `json:"disk,omitempty"`
	LastCleanup     *cleanup.Report     `json:"lastCleanup,omitempty"`
	Subscribers     int                 `json:"subscribers"`
	Dependencies    []DependencyStatus  `json:"dependencies"`
	PlaybackSource  string              `json:"playbackSourceId,omitempty"`
	PlaybackChannel string              `json:"playbackChannelId,omitempty"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error string `json:"error"`
}
