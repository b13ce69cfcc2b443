package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"dvr/internal/api"
	"dvr/internal/daemonctl"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn", "warning":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func dependencyLines(deps []api.DependencyStatus, summary api.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = "Ready (" + dep.Detail + ")"
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
	}
	return lines
}

// schedulerLines summarizes the poller, live captures, disk, and the last
// cleanup pass. Nothing is reported for an offline daemon beyond the
// pending count read from the database.
func schedulerLines(status api.DaemonStatus, colorize bool) []string {
	lines := []string{
		renderStatusLine("Pending schedules", statusInfo, fmt.Sprintf("%d", status.Scheduler.PendingCount), colorize),
	}
	if !status.Running {
		return lines
	}
	poller := statusOK
	detail := fmt.Sprintf("every %ds, last tick %s", status.Scheduler.PollIntervalSec, displayTime(status.Scheduler.LastTick))
	if !status.Scheduler.Running {
		poller = statusWarn
		detail = "stopped"
	}
	lines = append(lines, renderStatusLine("Scheduler", poller, detail, colorize))
	lines = append(lines, renderStatusLine("Active recordings", statusInfo, fmt.Sprintf("%d", len(status.Active)), colorize))
	if status.Disk != nil {
		kind := statusOK
		if status.Disk.Percent >= 90 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Disk", kind, fmt.Sprintf("%.1f%% used, %s free (%s)",
			status.Disk.Percent, formatBytes(int64(status.Disk.Available)), status.StoragePath), colorize))
	}
	if status.LastCleanup != nil {
		lines = append(lines, renderStatusLine("Last cleanup", statusInfo, fmt.Sprintf("%d removed, %s freed",
			status.LastCleanup.Deleted(), formatBytes(status.LastCleanup.BytesFreed)), colorize))
	}
	if status.PlaybackSource != "" {
		lines = append(lines, renderStatusLine("Playback", statusInfo, status.PlaybackSource+"/"+status.PlaybackChannel, colorize))
	}
	lines = append(lines, renderStatusLine("Event subscribers", statusInfo, fmt.Sprintf("%d", status.Subscribers), colorize))
	return lines
}

func renderStatus(w io.Writer, snapshot *daemonctl.StatusSnapshot, colorize bool) {
	section := func(title string, lines []string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(w, line)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	system := make([]string, 0, len(snapshot.SystemChecks))
	for _, line := range snapshot.SystemChecks {
		system = append(system, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	section("System Status", system)
	section("Dependencies", dependencyLines(snapshot.Status.Dependencies, snapshot.DependencySummary, colorize))
	section("Recording", schedulerLines(snapshot.Status, colorize))
}
