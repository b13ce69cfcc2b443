package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"dvr/internal/api"
	"dvr/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	summary := BuildDependencySummary(nil)
	if summary.Severity != "info" {
		t.Fatalf("expected info for empty deps, got %+v", summary)
	}

	summary = BuildDependencySummary([]api.DependencyStatus{
		{Name: "FFmpeg", Available: true},
		{Name: "ffprobe", Optional: true},
	})
	if summary.Severity != "warn" || summary.Available != 1 || summary.MissingOptional != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	summary = BuildDependencySummary([]api.DependencyStatus{{Name: "FFmpeg"}})
	if summary.Severity != "error" || summary.MissingRequired != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.AddSchedule(t, st, "7", time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))

	snapshot, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if snapshot.Status.Running {
		t.Fatal("expected offline status")
	}
	if snapshot.Status.Scheduler.PendingCount != 1 {
		t.Fatalf("expected 1 pending schedule from the database, got %d", snapshot.Status.Scheduler.PendingCount)
	}
	if snapshot.Status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", snapshot.Status.LockFilePath)
	}
	if snapshot.DependencySummary.Severity != "ok" {
		t.Fatalf("expected stubbed ffmpeg to be available, got %+v", snapshot.DependencySummary)
	}
	if len(snapshot.SystemChecks) == 0 || snapshot.SystemChecks[0].Severity != "warn" {
		t.Fatalf("expected not-running warning first, got %+v", snapshot.SystemChecks)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dvr.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestLaunchOptionsArgs(t *testing.T) {
	got := LaunchOptions{ConfigPath: " /etc/dvr.toml ", LogLevel: "debug"}.args()
	want := []string{"daemon", "--config", "/etc/dvr.toml", "--log-level", "debug"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("args = %q, want %q", got, want)
	}
	if got := (LaunchOptions{}).args(); len(got) != 1 || got[0] != "daemon" {
		t.Fatalf("expected bare daemon args, got %q", got)
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]int{"12345\n": 12345, "garbage": 0, "": 0}
	for content, want := range cases {
		path := filepath.Join(dir, "dvr.pid")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write pid file: %v", err)
		}
		got, err := readPID(path)
		if err != nil || got != want {
			t.Fatalf("readPID(%q) = %d, %v; want %d", content, got, err, want)
		}
	}
	if got, err := readPID(filepath.Join(dir, "missing.pid")); err != nil || got != 0 {
		t.Fatalf("missing pid file: %d, %v", got, err)
	}
}

func TestWaitForShutdownWithoutSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "dvr.sock")
	start := time.Now()
	if err := WaitForShutdown(socket, 5*time.Second); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected an absent socket to return immediately")
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "dvr.sock")
	client, err := WaitForClient(socket, 300*time.Millisecond)
	if err == nil || client != nil {
		t.Fatal("expected timeout without a daemon")
	}
	if !strings.Contains(err.Error(), "daemon failed to start") {
		t.Fatalf("unexpected error %v", err)
	}
}
