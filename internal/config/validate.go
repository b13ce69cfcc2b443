package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateRecorder(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateScheduler() error {
	if err := ensurePositiveMap(map[string]int{
		"scheduler.poll_interval":    c.Scheduler.PollInterval,
		"scheduler.lookahead_window": c.Scheduler.LookaheadWindow,
		"scheduler.missed_grace":     c.Scheduler.MissedGrace,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRecorder() error {
	if err := ensurePositiveMap(map[string]int{
		"recorder.network_timeout":      c.Recorder.NetworkTimeout,
		"recorder.minimum_timeout":      c.Recorder.MinimumTimeout,
		"recorder.drain_timeout":        c.Recorder.DrainTimeout,
		"recorder.resolve_timeout":      c.Recorder.ResolveTimeout,
		"thumbnails.timeout":            c.Thumbnails.Timeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Recorder.SafetyMargin < 0 {
		return errors.New("recorder.safety_margin must not be negative")
	}
	if c.Thumbnails.SeekSeconds < 0 {
		return errors.New("thumbnails.seek_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.Interval <= 0 {
		return errors.New("cleanup.interval must be positive")
	}
	if c.Cleanup.EmergencyPercent <= 0 || c.Cleanup.EmergencyPercent > 100 {
		return errors.New("cleanup.emergency_percent must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true")
	}
	if c.Archive.Region == "" {
		return errors.New("archive.region must be set when archive.enabled is true")
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id must be set", i)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, src.ID)
		}
		seen[src.ID] = struct{}{}
		switch src.Kind {
		case SourceXtream:
			if src.BaseURL == "" || src.Username == "" || src.Password == "" {
				return fmt.Errorf("sources[%d] (%s): xtream sources need base_url, username, and password", i, src.ID)
			}
		case SourceStalker, SourceM3U:
		default:
			return fmt.Errorf("sources[%d].kind: unsupported value %q", i, src.Kind)
		}
		if src.MaxConnections < 0 {
			return fmt.Errorf("sources[%d].max_connections must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
