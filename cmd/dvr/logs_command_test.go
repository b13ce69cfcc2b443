package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dvr/internal/daemonrun"
)

func TestLogsCommandPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)

	runLog := filepath.Join(env.cfg.Paths.LogDir, "dvr-20260101T000000.000Z.log")
	if err := os.WriteFile(runLog, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.Symlink(runLog, filepath.Join(env.cfg.Paths.LogDir, daemonrun.LogPointer)); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	out, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if got := strings.TrimSpace(out); got != "two\nthree" {
		t.Fatalf("expected last two lines, got %q", got)
	}
}

func TestLogsCommandWithoutLog(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log output")
}
