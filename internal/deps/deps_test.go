package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present", "exit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" || !results[2].Optional {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestCheckFFmpegReportsVersion(t *testing.T) {
	ffmpeg := writeStub(t, t.TempDir(), "ffmpeg", "echo 'ffmpeg version 6.1.1 Copyright (c) 2000-2023'\necho 'built with gcc'\n")

	status := CheckFFmpeg(context.Background(), ffmpeg)
	if !status.Available {
		t.Fatalf("expected ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Detail != "ffmpeg version 6.1.1 Copyright (c) 2000-2023" {
		t.Fatalf("unexpected version detail %q", status.Detail)
	}
}

func TestCheckFFmpegDefaultsToPath(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, binDir, "ffmpeg", "exit 0\n")
	t.Setenv("PATH", binDir)

	status := CheckFFmpeg(context.Background(), "")
	if !status.Available {
		t.Fatalf("expected PATH lookup to succeed, got %q", status.Detail)
	}
	if status.Command != filepath.Join(binDir, "ffmpeg") {
		t.Fatalf("unexpected resolved command %q", status.Command)
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	status := CheckFFmpeg(context.Background(), "")
	if status.Available {
		t.Fatal("expected ffmpeg to be missing")
	}
}
