package recorder

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"dvr/internal/store"
)

// CaptureDuration is the padded window length:
// (end + endPadding) - (start - startPadding).
func CaptureDuration(s *store.Schedule) time.Duration {
	return s.PaddedEnd().Sub(s.PaddedStart())
}

// CaptureTimeout bounds a job: max(duration + safety, minimum).
func CaptureTimeout(duration, safety, minimum time.Duration) time.Duration {
	return max(duration+safety, minimum)
}

// IsHLS reports whether rawURL points at an HLS playlist.
func IsHLS(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
	}
	return strings.Contains(strings.ToLower(rawURL), ".m3u8")
}

// BuildCaptureArgs returns the ffmpeg arguments for a stream-copy capture of
// streamURL into output lasting duration.
func BuildCaptureArgs(streamURL, output string, duration, networkTimeout time.Duration) []string {
	args := make([]string, 0, 18)
	if IsHLS(streamURL) {
		args = append(args, "-live_start_index", "-1", "-http_persistent", "0")
	}
	args = append(args,
		"-timeout", strconv.FormatInt(networkTimeout.Microseconds(), 10),
		"-i", streamURL,
		"-c", "copy",
		"-t", strconv.FormatInt(int64(duration/time.Second), 10),
		"-fflags", "+flush_packets",
		"-y", output,
	)
	return args
}

// lastLineWriter keeps the most recent non-empty line written to it. ffmpeg
// separates progress updates with carriage returns, so both \r and \n end a
// line.
type lastLineWriter struct {
	mu      sync.Mutex
	partial []byte
	last    string
}

func (w *lastLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := append(w.partial, p...)
	for {
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			break
		}
		if line := strings.TrimSpace(string(data[:idx])); line != "" {
			w.last = line
		}
		data = data[idx+1:]
	}
	const maxPartial = 64 * 1024
	if len(data) > maxPartial {
		data = data[len(data)-maxPartial:]
	}
	w.partial = append([]byte(nil), data...)
	return len(p), nil
}

// Last returns the last complete non-empty line, or the trailing partial
// line when nothing complete was seen.
func (w *lastLineWriter) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if tail := strings.TrimSpace(string(w.partial)); tail != "" {
		return tail
	}
	return w.last
}
