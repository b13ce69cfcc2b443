package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Settings keys.
const (
	SettingStoragePath         = "storage_path"
	SettingMaxDiskUsagePercent = "max_disk_usage_percent"
	SettingAutoCleanup         = "auto_cleanup_enabled"
	SettingStartPadding        = "default_start_padding_sec"
	SettingEndPadding          = "default_end_padding_sec"
	SettingKeepDays            = "keep_recordings_days"
)

const (
	defaultMaxDiskUsagePercent = 80
	defaultKeepDays            = 30
)

// SettingKeys lists every key SaveSetting accepts, in display order.
var SettingKeys = []string{
	SettingStoragePath,
	SettingMaxDiskUsagePercent,
	SettingAutoCleanup,
	SettingStartPadding,
	SettingEndPadding,
	SettingKeepDays,
}

func (s *Store) defaultSettings() Settings {
	keep := defaultKeepDays
	return Settings{
		StoragePath:            s.defaultStorage,
		MaxDiskUsagePercent:    defaultMaxDiskUsagePercent,
		AutoCleanupEnabled:     true,
		DefaultStartPaddingSec: DefaultStartPaddingSec,
		DefaultEndPaddingSec:   DefaultEndPaddingSec,
		KeepRecordingsDays:     &keep,
	}
}

// LoadSettings returns the saved settings merged over the defaults.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	settings := s.defaultSettings()
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT key, value FROM settings")
	if err != nil {
		return settings, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scan setting: %w", err)
		}
		// Rows written by older builds may fail to parse; keep the default.
		_ = applySetting(&settings, key, value)
	}
	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}

// GetSetting returns the effective value for key, rendered as text.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if !knownSetting(key) {
		return "", fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return formatSetting(s.defaultSettings(), key), nil
}

// SaveSetting validates and persists one setting.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	if !knownSetting(key) {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	value = strings.TrimSpace(value)
	probe := s.defaultSettings()
	if err := applySetting(&probe, key, value); err != nil {
		return err
	}
	_, err := s.execWithRetry(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

func knownSetting(key string) bool {
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

func applySetting(settings *Settings, key, value string) error {
	invalid := func(reason string) error {
		return fmt.Errorf("%s=%q: %s: %w", key, value, reason, ErrInvalidSetting)
	}
	switch key {
	case SettingStoragePath:
		if value == "" {
			return invalid("must not be empty")
		}
		settings.StoragePath = value
	case SettingMaxDiskUsagePercent:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 100 {
			return invalid("must be between 1 and 100")
		}
		settings.MaxDiskUsagePercent = n
	case SettingAutoCleanup:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalid("must be true or false")
		}
		settings.AutoCleanupEnabled = b
	case SettingStartPadding, SettingEndPadding:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return invalid("must be a non-negative number of seconds")
		}
		if key == SettingStartPadding {
			settings.DefaultStartPaddingSec = n
		} else {
			settings.DefaultEndPaddingSec = n
		}
	case SettingKeepDays:
		if value == "" {
			settings.KeepRecordingsDays = nil
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return invalid("must be a positive number of days or empty")
		}
		settings.KeepRecordingsDays = &n
	default:
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	return nil
}

func formatSetting(settings Settings, key string) string {
	switch key {
	case SettingStoragePath:
		return settings.StoragePath
	case SettingMaxDiskUsagePercent:
		return strconv.Itoa(settings.MaxDiskUsagePercent)
	case SettingAutoCleanup:
		return strconv.FormatBool(settings.AutoCleanupEnabled)
	case SettingStartPadding:
		return strconv.FormatInt(settings.DefaultStartPaddingSec, 10)
	case SettingEndPadding:
		return strconv.FormatInt(settings.DefaultEndPaddingSec, 10)
	case SettingKeepDays:
		if settings.KeepRecordingsDays == nil {
			return ""
		}
		return strconv.Itoa(*settings.KeepRecordingsDays)
	}
	return ""
}
