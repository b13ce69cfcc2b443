package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// CheckFFmpeg reports whether the configured capture binary can be run. An
// empty command means "ffmpeg" from PATH. On success Detail carries the
// first line of `ffmpeg -version`.
func CheckFFmpeg(ctx context.Context, command string) Status {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "ffmpeg"
	}
	status := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     command,
		Description: "Required for stream capture and thumbnails",
	}})[0]
	if !status.Available {
		return status
	}
	if version := ffmpegVersion(ctx, status.Command); version != "" {
		status.Detail = version
	}
	return status
}

func ffmpegVersion(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-version").Output() //nolint:gosec
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(first)
}
