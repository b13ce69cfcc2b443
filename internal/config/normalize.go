package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecorder()
	c.normalizeNotifications()
	c.normalizeEvents()
	c.normalizeArchive()
	c.normalizeSources()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APISecret = strings.TrimSpace(c.Paths.APISecret)
	if c.Paths.APISecret == "" {
		if value, ok := os.LookupEnv("DVR_API_SECRET"); ok {
			c.Paths.APISecret = strings.TrimSpace(value)
		}
	}
	if c.Paths.TokenTTLHours <= 0 {
		c.Paths.TokenTTLHours = defaultTokenTTLHours
	}
	return nil
}

func (c *Config) normalizeRecorder() {
	c.Recorder.FFmpegBinary = strings.TrimSpace(c.Recorder.FFmpegBinary)
	if c.Recorder.FFmpegBinary == "" {
		c.Recorder.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DVR_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEvents() {
	c.Events.RedisAddr = strings.TrimSpace(c.Events.RedisAddr)
	if c.Events.RedisPassword == "" {
		if value, ok := os.LookupEnv("DVR_REDIS_PASSWORD"); ok {
			c.Events.RedisPassword = value
		}
	}
	c.Events.RedisChannel = strings.TrimSpace(c.Events.RedisChannel)
	if c.Events.RedisChannel == "" {
		c.Events.RedisChannel = defaultRedisChannel
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Region = strings.TrimSpace(c.Archive.Region)
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	if c.Archive.AccessKeyID == "" {
		c.Archive.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.Archive.SecretAccessKey == "" {
		c.Archive.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

func (c *Config) normalizeSources() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.ID = strings.TrimSpace(src.ID)
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			src.Name = src.ID
		}
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		if src.Kind == "" {
			src.Kind = SourceM3U
		}
		src.BaseURL = strings.TrimRight(strings.TrimSpace(src.BaseURL), "/")
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
