package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageDir    string `toml:"storage_dir"`
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APISecret     string `toml:"api_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// Scheduler contains polling cadence and due-window settings, in seconds.
type Scheduler struct {
	PollInterval    int `toml:"poll_interval"`
	LookaheadWindow int `toml:"lookahead_window"`
	MissedGrace     int `toml:"missed_grace"`
}

// Recorder contains capture engine settings. Durations are in seconds.
type Recorder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	NetworkTimeout int    `toml:"network_timeout"`
	SafetyMargin   int    `toml:"safety_margin"`
	MinimumTimeout int    `toml:"minimum_timeout"`
	DrainTimeout   int    `toml:"drain_timeout"`
	ResolveTimeout int    `toml:"resolve_timeout"`
}

// Thumbnails controls post-capture frame extraction.
type Thumbnails struct {
	Enabled     bool `toml:"enabled"`
	SeekSeconds int  `toml:"seek_seconds"`
	Timeout     int  `toml:"timeout"`
}

// Cleanup controls the storage eviction loop.
type Cleanup struct {
	Interval         int `toml:"interval"`
	EmergencyPercent int `toml:"emergency_percent"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Started        bool   `toml:"started"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Events configures cross-process lifecycle fan-out.
type Events struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisChannel  string `toml:"redis_channel"`
}

// Archive configures optional S3 upload of completed recordings.
type Archive struct {
	Enabled         bool   `toml:"enabled"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Prefix          string `toml:"prefix"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Source kinds.
const (
	SourceXtream  = "xtream"
	SourceStalker = "stalker"
	SourceM3U     = "m3u"
)

// Source describes an IPTV provider used for URL regeneration and
// connection limits.
type Source struct {
	ID             string `toml:"id"`
	Name           string `toml:"name"`
	Kind           string `toml:"kind"`
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	MaxConnections int    `toml:"max_connections"`
}

// Config encapsulates all configuration values for dvr.
//
// Configuration sections by subsystem:
//   - Paths: recording storage, daemon state, logs, and the HTTP API
//   - Scheduler: poll interval and due-window sizes
//   - Recorder: ffmpeg binary and capture timeouts
//   - Thumbnails: post-capture frame extraction
//   - Cleanup: eviction loop interval and critical threshold
//   - Notifications: ntfy push notification settings
//   - Events: Redis lifecycle fan-out
//   - Archive: S3 upload of completed recordings
//   - Logging: log format, level, and retention
//   - Sources: IPTV providers
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Recorder      Recorder      `toml:"recorder"`
	Thumbnails    Thumbnails    `toml:"thumbnails"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Archive       Archive       `toml:"archive"`
	Logging       Logging       `toml:"logging"`
	Sources       []Source      `toml:"sources"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dvr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files from the working directory and from the config
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dvr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// StorageDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.StorageDir) != "" {
		_ = os.MkdirAll(c.Paths.StorageDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "dvr.db")
}

// LockPath returns the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "dvrd.lock")
}

// SocketPath returns the JSON-RPC control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "dvr.sock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "dvr.pid")
}

// PollInterval returns the scheduler tick period.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Scheduler.PollInterval)
}

// LookaheadWindow returns the upcoming-schedule window half width.
func (c *Config) LookaheadWindow() time.Duration {
	return seconds(c.Scheduler.LookaheadWindow)
}

// MissedGrace returns how long after a missed start a schedule still begins.
func (c *Config) MissedGrace() time.Duration {
	return seconds(c.Scheduler.MissedGrace)
}

// CleanupInterval returns the storage eviction period.
func (c *Config) CleanupInterval() time.Duration {
	return seconds(c.Cleanup.Interval)
}

// SourceByID returns the configured source with the given id.
func (c *Config) SourceByID(id string) (Source, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
