package config

const (
	defaultStorageDir           = "~/Videos/IPTV-Recordings"
	defaultStateDir             = "~/.local/share/dvr"
	defaultLogDir               = "~/.local/share/dvr/logs"
	defaultAPIBind              = "127.0.0.1:7788"
	defaultTokenTTLHours        = 24 * 30
	defaultPollInterval         = 30
	defaultLookaheadWindow      = 60
	defaultMissedGrace          = 300
	defaultFFmpegBinary         = "ffmpeg"
	defaultNetworkTimeout       = 30
	defaultSafetyMargin         = 300
	defaultMinimumTimeout       = 600
	defaultDrainTimeout         = 5
	defaultResolveTimeout       = 5
	defaultThumbnailSeek        = 5
	defaultThumbnailTimeout     = 30
	defaultCleanupInterval      = 3600
	defaultEmergencyPercent     = 90
	defaultNotifyRequestTimeout = 10
	defaultRedisChannel         = "dvr:events"
	defaultArchivePrefix        = "recordings"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir:    defaultStorageDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
			TokenTTLHours: defaultTokenTTLHours,
		},
		Scheduler: Scheduler{
			PollInterval:    defaultPollInterval,
			LookaheadWindow: defaultLookaheadWindow,
			MissedGrace:     defaultMissedGrace,
		},
		Recorder: Recorder{
			FFmpegBinary:   defaultFFmpegBinary,
			NetworkTimeout: defaultNetworkTimeout,
			SafetyMargin:   defaultSafetyMargin,
			MinimumTimeout: defaultMinimumTimeout,
			DrainTimeout:   defaultDrainTimeout,
			ResolveTimeout: defaultResolveTimeout,
		},
		Thumbnails: Thumbnails{
			Enabled:     true,
			SeekSeconds: defaultThumbnailSeek,
			Timeout:     defaultThumbnailTimeout,
		},
		Cleanup: Cleanup{
			Interval:         defaultCleanupInterval,
			EmergencyPercent: defaultEmergencyPercent,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Started:        false,
			Completed:      true,
			Failed:         true,
		},
		Events: Events{
			RedisChannel: defaultRedisChannel,
		},
		Archive: Archive{
			Prefix: defaultArchivePrefix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
