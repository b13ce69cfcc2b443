package ipc

import (
	"dvr/internal/api"
	"dvr/internal/cleanup"
	"dvr/internal/recorder"
)

// StartRequest asks the daemon to begin scheduling.
type StartRequest struct{}

// StartResponse reports whether the daemon started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to stop and exit.
type StopRequest struct{}

// StopResponse reports stop outcome.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest requests daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// ScheduleAddRequest creates a schedule.
type ScheduleAddRequest struct {
	Schedule api.ScheduleCreate `json:"schedule"`
}

// ScheduleAddResponse carries the new ID. A conflict without force is not an
// RPC error: Refused is set and Conflict explains why.
type ScheduleAddResponse struct {
	ID       int64               `json:"id"`
	Refused  bool                `json:"refused"`
	Message  string              `json:"message,omitempty"`
	Conflict *api.ConflictResult `json:"conflict,omitempty"`
}

// ScheduleListRequest filters schedules by status. Empty means all.
type ScheduleListRequest struct {
	Statuses []string `json:"statuses"`
}

// ScheduleListResponse returns schedules.
type ScheduleListResponse struct {
	Schedules []api.Schedule `json:"schedules"`
}

// ScheduleShowRequest fetches one schedule.
type ScheduleShowRequest struct {
	ID int64 `json:"id"`
}

// ScheduleShowResponse returns a schedule and its capture attempts.
type ScheduleShowResponse struct {
	Schedule   api.Schedule    `json:"schedule"`
	Recordings []api.Recording `json:"recordings"`
}

// ScheduleIDRequest addresses a schedule for cancel, delete, and stop.
type ScheduleIDRequest struct {
	ID int64 `json:"id"`
}

// ScheduleIDResponse acknowledges a schedule operation.
type ScheduleIDResponse struct {
	OK bool `json:"ok"`
}

// SchedulePaddingRequest changes paddings of a pending schedule.
type SchedulePaddingRequest struct {
	ID              int64 `json:"id"`
	StartPaddingSec int64 `json:"start_padding_sec"`
	EndPaddingSec   int64 `json:"end_padding_sec"`
}

// SchedulePaddingResponse returns the updated schedule.
type SchedulePaddingResponse struct {
	Schedule api.Schedule `json:"schedule"`
}

// ScheduleStreamURLRequest supplies a freshly resolved stream URL.
type ScheduleStreamURLRequest struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// ScheduleStreamURLResponse reports whether a waiting capture received it.
type ScheduleStreamURLResponse struct {
	Delivered bool `json:"delivered"`
}

// RecordingListRequest lists finished recordings.
type RecordingListRequest struct{}

// RecordingListResponse returns finished recordings.
type RecordingListResponse struct {
	Recordings []api.Recording `json:"recordings"`
}

// RecordingActiveRequest lists live captures.
type RecordingActiveRequest struct{}

// RecordingActiveResponse returns live capture progress.
type RecordingActiveResponse struct {
	Active []recorder.Progress `json:"active"`
}

// RecordingDeleteRequest removes a recording and its files.
type RecordingDeleteRequest struct {
	ID int64 `json:"id"`
}

// RecordingDeleteResponse reports freed bytes.
type RecordingDeleteResponse struct {
	BytesFreed int64 `json:"bytes_freed"`
}

// RecordingThumbnailRequest fetches a thumbnail.
type RecordingThumbnailRequest struct {
	ID int64 `json:"id"`
}

// RecordingThumbnailResponse carries JPEG bytes.
type RecordingThumbnailResponse struct {
	Data []byte `json:"data"`
}

// ConflictsRequest checks a proposed window.
type ConflictsRequest struct {
	Query api.ConflictQuery `json:"query"`
}

// ConflictsResponse returns the conflict report.
type ConflictsResponse struct {
	Result api.ConflictResult `json:"result"`
}

// SettingsListRequest lists every setting.
type SettingsListRequest struct{}

// SettingsListResponse returns settings in key order.
type SettingsListResponse struct {
	Settings []api.Setting `json:"settings"`
}

// SettingGetRequest reads one setting.
type SettingGetRequest struct {
	Key string `json:"key"`
}

// SettingSetRequest writes one setting.
type SettingSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SettingResponse returns a setting after a read or write.
type SettingResponse struct {
	Setting api.Setting `json:"setting"`
}

// CleanupRequest runs a cleanup pass now.
type CleanupRequest struct{}

// CleanupResponse returns the pass report.
type CleanupResponse struct {
	Report cleanup.Report `json:"report"`
}

// PlaybackRequest reports what a client is watching. Empty SourceID clears it.
type PlaybackRequest struct {
	SourceID  string `json:"source_id"`
	ChannelID string `json:"channel_id"`
}

// PlaybackResponse acknowledges a playback update.
type PlaybackResponse struct {
	Playing bool `json:"playing"`
}

// SourcesRequest lists configured providers.
type SourcesRequest struct{}

// SourcesResponse returns providers without credentials.
type SourcesResponse struct {
	Sources []api.Source `json:"sources"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
