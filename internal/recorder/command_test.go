package recorder

import (
	"strings"
	"testing"
	"time"

	"dvr/internal/store"
)

func TestCaptureDurationIncludesPaddings(t *testing.T) {
	start := time.Unix(1_000_000, 0)
	sched := &store.Schedule{
		ScheduledStart:  start,
		ScheduledEnd:    start.Add(60 * time.Second),
		StartPaddingSec: 60,
		EndPaddingSec:   300,
	}
	if got := CaptureDuration(sched); got != 420*time.Second {
		t.Fatalf("CaptureDuration = %s, want 7m0s", got)
	}
}

func TestCaptureTimeoutHasFloor(t *testing.T) {
	if got := CaptureTimeout(420*time.Second, 300*time.Second, 600*time.Second); got != 720*time.Second {
		t.Fatalf("long capture timeout = %s", got)
	}
	if got := CaptureTimeout(60*time.Second, 300*time.Second, 600*time.Second); got != 600*time.Second {
		t.Fatalf("short capture timeout = %s, want the 10m floor", got)
	}
}

func TestBuildCaptureArgs(t *testing.T) {
	ts := strings.Join(BuildCaptureArgs("http://p.test/live/u/p/1.ts", "/rec/out.ts", 420*time.Second, 30*time.Second), " ")
	want := "-timeout 30000000 -i http://p.test/live/u/p/1.ts -c copy -t 420 -fflags +flush_packets -y /rec/out.ts"
	if ts != want {
		t.Fatalf("direct args = %q\nwant %q", ts, want)
	}

	hls := BuildCaptureArgs("http://p.test/hls/mono.m3u8?token=x", "/rec/out.ts", time.Minute, 30*time.Second)
	if strings.Join(hls[:4], " ") != "-live_start_index -1 -http_persistent 0" {
		t.Fatalf("expected HLS flags first, got %v", hls)
	}
}

func TestLastLineWriterKeepsLastNonEmptyLine(t *testing.T) {
	w := &lastLineWriter{}
	_, _ = w.Write([]byte("Input #0, mpegts\nframe=  10 fps=0.0\rframe=  20 fps=25\r"))
	_, _ = w.Write([]byte("\n\nConnection reset by peer\n   \n"))
	if got := w.Last(); got != "Connection reset by peer" {
		t.Fatalf("Last = %q", got)
	}
	_, _ = w.Write([]byte("Exiting normally"))
	if got := w.Last(); got != "Exiting normally" {
		t.Fatalf("Last with partial tail = %q", got)
	}
}
