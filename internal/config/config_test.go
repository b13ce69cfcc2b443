package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dvr/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStorage := filepath.Join(tempHome, "Videos", "IPTV-Recordings")
	if cfg.Paths.StorageDir != wantStorage {
		t.Fatalf("unexpected storage dir: got %q want %q", cfg.Paths.StorageDir, wantStorage)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "dvr") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.StateDir, "dvr.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Scheduler.PollInterval != 30 || cfg.Scheduler.LookaheadWindow != 60 || cfg.Scheduler.MissedGrace != 300 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Recorder.SafetyMargin != 300 || cfg.Recorder.MinimumTimeout != 600 {
		t.Fatalf("unexpected recorder defaults: %+v", cfg.Recorder)
	}
	if cfg.Cleanup.EmergencyPercent != 90 {
		t.Fatalf("unexpected emergency percent: %d", cfg.Cleanup.EmergencyPercent)
	}
}

func TestLoadParsesSourcesAndEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DVR_API_SECRET", "from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
storage_dir = "` + filepath.Join(dir, "rec") + `"

[[sources]]
id = "prov"
kind = "Xtream"
base_url = "http://example.test:8080/"
username = "u"
password = "p"
max_connections = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.APISecret != "from-env" {
		t.Fatalf("expected api secret from env, got %q", cfg.Paths.APISecret)
	}
	src, ok := cfg.SourceByID("prov")
	if !ok {
		t.Fatal("expected source prov")
	}
	if src.Kind != "xtream" || src.BaseURL != "http://example.test:8080" || src.Name != "prov" {
		t.Fatalf("unexpected normalized source: %+v", src)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DVR_NTFY_TOPIC=https://ntfy.example/dvr\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("DVR_NTFY_TOPIC", "")
	os.Unsetenv("DVR_NTFY_TOPIC")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/dvr" {
		t.Fatalf("expected ntfy topic from .env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"poll interval", func(c *config.Config) { c.Scheduler.PollInterval = 0 }, "scheduler.poll_interval"},
		{"emergency percent", func(c *config.Config) { c.Cleanup.EmergencyPercent = 150 }, "cleanup.emergency_percent"},
		{"archive bucket", func(c *config.Config) { c.Archive.Enabled = true; c.Archive.Region = "us-east-1" }, "archive.bucket"},
		{"xtream credentials", func(c *config.Config) {
			c.Sources = []config.Source{{ID: "x", Kind: "xtream", BaseURL: "http://h"}}
		}, "xtream sources need"},
		{"duplicate source", func(c *config.Config) {
			c.Sources = []config.Source{{ID: "a", Kind: "m3u"}, {ID: "a", Kind: "m3u"}}
		}, "duplicated"},
		{"unknown kind", func(c *config.Config) {
			c.Sources = []config.Source{{ID: "a", Kind: "ftp"}}
		}, "unsupported value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Scheduler.PollInterval != config.Default().Scheduler.PollInterval {
		t.Fatalf("sample poll interval drifted from default: %d", cfg.Scheduler.PollInterval)
	}
}
