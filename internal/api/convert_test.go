package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"dvr/internal/conflict"
	"dvr/internal/store"
)

func TestFromScheduleIncludesCaptureWindow(t *testing.T) {
	start := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	s := &store.Schedule{
		ID:              7,
		SourceID:        "xt",
		ChannelName:     "News",
		ScheduledStart:  start,
		ScheduledEnd:    start.Add(time.Hour),
		StartPaddingSec: 60,
		EndPaddingSec:   300,
		Status:          store.ScheduleScheduled,
		ResolvedURL:     "http://stream",
	}
	got := FromSchedule(s)
	if got.CaptureStart != "2024-03-10T19:59:00.000Z" || got.CaptureEnd != "2024-03-10T21:05:00.000Z" {
		t.Fatalf("unexpected capture window %s - %s", got.CaptureStart, got.CaptureEnd)
	}
	if !got.HasResolvedURL || got.StartedAt != "" || got.Status != "scheduled" {
		t.Fatalf("unexpected conversion %+v", got)
	}
}

func TestFromRecordingFlattensOptionalFields(t *testing.T) {
	sid := int64(3)
	size := int64(2048)
	got := FromRecording(&store.Recording{ID: 1, ScheduleID: &sid, SizeBytes: &size, ThumbnailPath: "/x.jpg", Status: store.RecordingPartial})
	if got.ScheduleID != 3 || got.SizeBytes != 2048 || !got.HasThumbnail || got.ActualEnd != "" {
		t.Fatalf("unexpected conversion %+v", got)
	}
	if len(FromRecordings([]*store.Recording{nil, {ID: 2}})) != 1 {
		t.Fatal("nil recordings should be skipped")
	}
}

func TestScheduleCreateToRequest(t *testing.T) {
	pad := int64(0)
	req, err := ScheduleCreate{
		SourceID:        " xt ",
		ChannelID:       "12",
		Start:           "2024-03-10T20:00:00Z",
		End:             "2024-03-10T21:00:00.500+01:00",
		StartPaddingSec: &pad,
	}.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest failed: %v", err)
	}
	if req.SourceID != "xt" || req.StartPaddingSec == nil || *req.StartPaddingSec != 0 || req.EndPaddingSec != nil {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.End.Equal(time.Date(2024, 3, 10, 20, 0, 0, 500_000_000, time.UTC)) {
		t.Fatalf("unexpected end %s", req.End)
	}

	_, err = ScheduleCreate{Start: "tomorrow", End: "2024-03-10T21:00:00Z"}.ToRequest()
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("bad time should map to 400, got %d (%v)", StatusCode(err), err)
	}
	_, err = ScheduleCreate{End: "2024-03-10T21:00:00Z"}.ToRequest()
	if !errors.Is(err, store.ErrInvalidTimeRange) {
		t.Fatalf("missing start should be an invalid range, got %v", err)
	}
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("schedule 4: %w", store.ErrNotFound): http.StatusNotFound,
		fmt.Errorf("x: %w", store.ErrInvalidTimeRange):  http.StatusBadRequest,
		fmt.Errorf("x: %w", store.ErrUnknownSetting):    http.StatusBadRequest,
		fmt.Errorf("x: %w", store.ErrNotCancelable):     http.StatusConflict,
		fmt.Errorf("x: %w", conflict.ErrConflict):       http.StatusConflict,
		errors.New("disk on fire"):                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusCode(err); got != want {
			t.Fatalf("StatusCode(%v) = %d, want %d", err, got, want)
		}
	}
}
