package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dvr/internal/api"
	"dvr/internal/archive"
	"dvr/internal/cleanup"
	"dvr/internal/config"
	"dvr/internal/conflict"
	"dvr/internal/diskusage"
	"dvr/internal/events"
	"dvr/internal/logging"
	"dvr/internal/notifications"
	"dvr/internal/preflight"
	"dvr/internal/recorder"
	"dvr/internal/resolver"
	"dvr/internal/scheduler"
	"dvr/internal/store"
	"dvr/internal/thumbnail"
)

const stopTimeout = 15 * time.Second

// Daemon coordinates the recording services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	hub       *events.Hub
	redis     *events.RedisSink
	notifier  notifications.Service
	recorder  *recorder.Supervisor
	scheduler *scheduler.Scheduler
	cleanup   *cleanup.Manager
	checker   *conflict.Checker
	playback  *conflict.Playback
	probe     diskusage.Probe
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	stopped   bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
}

// New constructs a daemon with initialized dependencies. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	hub := events.NewHub(logger)
	notifier := notifications.NewService(cfg)
	hub.AddSink(notifier)

	redisSink, err := events.NewRedisSink(ctx, cfg.Events)
	if err != nil {
		logging.WarnWithContext(logger, "redis event fan-out unavailable", "daemon.redis_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [events] redis_addr and that redis is reachable"),
			logging.String(logging.FieldImpact, "other processes will not see recording events"),
		)
	} else if redisSink != nil {
		hub.AddSink(redisSink)
	}

	var post []recorder.PostProcessor
	if cfg.Thumbnails.Enabled {
		post = append(post, thumbnail.NewProcessor(thumbnail.NewExtractor(cfg), st, logger))
	}
	archiver, err := archive.New(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("configure archive: %w", err)
	}
	if archiver != nil {
		post = append(post, archiver)
	}

	res := resolver.New(st, hub, time.Duration(cfg.Recorder.ResolveTimeout)*time.Second, logger)
	rec := recorder.New(st, res, hub, recorder.OptionsFromConfig(cfg), logger, post...)
	playback := &conflict.Playback{}
	probe := diskusage.StatfsProbe{}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		hub:       hub,
		redis:     redisSink,
		notifier:  notifier,
		recorder:  rec,
		scheduler: scheduler.New(st, rec, scheduler.OptionsFromConfig(cfg), logger),
		cleanup:   cleanup.NewManager(st, probe, cleanup.OptionsFromConfig(cfg), logger),
		checker:   conflict.NewChecker(st, playback),
		playback:  playback,
		probe:     probe,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, seeds configured sources, and launches the
// cleanup loop, the scheduler, and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon already stopped")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dvr daemon instance is already running")
	}

	if err := d.seedSources(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.cleanup.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start cleanup: %w", err)
	}
	if err := d.scheduler.Start(runCtx); err != nil {
		d.cleanup.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		d.cleanup.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("dvr daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)
	return nil
}

// Stop halts polling, cancels every live recording, stops cleanup and the
// HTTP API, and releases the lock. A stopped daemon cannot be restarted.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	d.scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := d.recorder.StopAll(ctx); err != nil {
		logging.WarnWithContext(d.logger, "recordings did not stop in time", "daemon.stop_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "capture processes may outlive the daemon"),
		)
	}
	d.cleanup.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon.unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.stopped = true
	d.running.Store(false)
	d.logger.Info("dvr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.hub.Wait()
	if err := d.redis.Close(); err != nil {
		d.logger.Debug("redis close failed", logging.Error(err))
	}
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) seedSources(ctx context.Context) error {
	for _, src := range d.cfg.Sources {
		row := store.Source{
			ID:       src.ID,
			Name:     src.Name,
			Kind:     src.Kind,
			BaseURL:  src.BaseURL,
			Username: src.Username,
			Password: src.Password,
		}
		if src.MaxConnections > 0 {
			limit := src.MaxConnections
			row.MaxConnections = &limit
		}
		result, err := d.store.UpsertSource(ctx, row)
		if err != nil {
			return fmt.Errorf("seed source %s: %w", src.ID, err)
		}
		if result != store.Ignored {
			d.logger.Info("source synchronized",
				logging.String("source_id", src.ID),
				logging.String("result", result.String()),
			)
		}
	}
	return nil
}

// Schedule checks req for conflicts and stores it. A conflict refuses the
// request with conflict.ErrConflict unless force is set; the check result is
// returned in both cases.
func (d *Daemon) Schedule(ctx context.Context, req store.ScheduleRequest, force bool) (int64, conflict.Result, error) {
	if strings.TrimSpace(req.SourceID) == "" || strings.TrimSpace(req.ChannelID) == "" {
		return 0, conflict.Result{}, fmt.Errorf("source and channel are required: %w", api.ErrInvalidRequest)
	}
	result, err := d.checker.Check(ctx, req.SourceID, req.ChannelID, req.Start, req.End)
	if err != nil {
		return 0, result, err
	}
	if result.HasConflict && !force {
		return 0, result, fmt.Errorf("%s: %w", result.Message, conflict.ErrConflict)
	}
	id, err := d.store.AddSchedule(ctx, req)
	if err != nil {
		return 0, result, err
	}
	d.logger.Info("schedule added",
		logging.Int64(logging.FieldScheduleID, id),
		logging.String("channel", req.ChannelName),
		logging.String("program", req.ProgramTitle),
		logging.Time("start", req.Start),
		logging.Bool("forced", force && result.HasConflict),
	)
	return id, result, nil
}

// GetSchedule returns one schedule.
func (d *Daemon) GetSchedule(ctx context.Context, id int64) (*store.Schedule, error) {
	sched, err := d.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", id, store.ErrNotFound)
	}
	return sched, nil
}

// Cancel cancels a pending schedule. A schedule that is already recording
// has its capture stopped instead.
func (d *Daemon) Cancel(ctx context.Context, id int64) error {
	err := d.store.CancelSchedule(ctx, id)
	if errors.Is(err, store.ErrNotCancelable) && d.recorder.Stop(id) {
		return nil
	}
	if err != nil {
		return err
	}
	d.logger.Info("schedule canceled", logging.Int64(logging.FieldScheduleID, id))
	return nil
}

// Delete removes a schedule with its recording files and rows.
func (d *Daemon) Delete(ctx context.Context, id int64) error {
	if d.recorder.IsRecording(id) {
		return fmt.Errorf("schedule %d: stop the recording first: %w", id, recorder.ErrAlreadyRecording)
	}
	recs, err := d.store.RecordingsForSchedule(ctx, id)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, err := cleanup.RemoveRecording(ctx, d.store, rec); err != nil {
			return err
		}
	}
	if err := d.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	d.logger.Info("schedule deleted",
		logging.Int64(logging.FieldScheduleID, id),
		logging.Int("recordings", len(recs)),
	)
	return nil
}

// ScheduleRecordings returns the capture attempts of one schedule.
func (d *Daemon) ScheduleRecordings(ctx context.Context, id int64) ([]*store.Recording, error) {
	return d.store.RecordingsForSchedule(ctx, id)
}

// ListSchedules returns schedules in the given statuses, all when none are given.
func (d *Daemon) ListSchedules(ctx context.Context, statuses ...store.ScheduleStatus) ([]*store.Schedule, error) {
	return d.store.ListSchedules(ctx, statuses...)
}

// ListScheduled returns schedules waiting to start.
func (d *Daemon) ListScheduled(ctx context.Context) ([]*store.Schedule, error) {
	return d.store.ListSchedules(ctx, store.ScheduleScheduled)
}

// ListCompleted returns finished recordings, newest first.
func (d *Daemon) ListCompleted(ctx context.Context) ([]*store.Recording, error) {
	return d.store.ListRecordings(ctx, store.RecordingCompleted, store.RecordingPartial, store.RecordingFailed)
}

// ListActive returns progress of live recordings.
func (d *Daemon) ListActive() []recorder.Progress {
	return d.recorder.Active()
}

// UpdatePadding changes the paddings of a pending schedule.
func (d *Daemon) UpdatePadding(ctx context.Context, id, startSec, endSec int64) error {
	return d.store.UpdatePaddings(ctx, id, startSec, endSec)
}

// CheckConflicts reports how a proposed window collides with existing work.
func (d *Daemon) CheckConflicts(ctx context.Context, sourceID, channelID string, start, end time.Time) (conflict.Result, error) {
	return d.checker.Check(ctx, sourceID, channelID, start, end)
}

// UpdateScheduleStreamURL stores a freshly resolved URL and wakes any
// capture waiting for it. woke reports whether one was waiting.
func (d *Daemon) UpdateScheduleStreamURL(ctx context.Context, id int64, url string) (bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return false, fmt.Errorf("stream url is required: %w", api.ErrInvalidRequest)
	}
	if err := d.store.UpdateResolvedURL(ctx, id, url); err != nil {
		return false, err
	}
	return d.hub.NotifyURLUpdated(id, url), nil
}

// StopRecording stops the live capture of a schedule. Stopping a capture
// that already ended, or was never started, is a no-op.
func (d *Daemon) StopRecording(scheduleID int64) error {
	if !d.recorder.Stop(scheduleID) {
		d.logger.Debug("stop requested without a live capture",
			logging.Int64(logging.FieldScheduleID, scheduleID),
		)
	}
	return nil
}

// GetRecording returns one recording.
func (d *Daemon) GetRecording(ctx context.Context, id int64) (*store.Recording, error) {
	rec, err := d.store.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("recording %d: %w", id, store.ErrNotFound)
	}
	return rec, nil
}

// RecordingThumbnail returns the JPEG bytes of a recording's thumbnail.
func (d *Daemon) RecordingThumbnail(ctx context.Context, id int64) ([]byte, error) {
	rec, err := d.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ThumbnailPath == "" {
		return nil, fmt.Errorf("recording %d has no thumbnail: %w", id, store.ErrNotFound)
	}
	data, err := os.ReadFile(rec.ThumbnailPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("thumbnail %s: %w", rec.ThumbnailPath, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return data, nil
}

// DeleteRecording removes a finished recording's file, thumbnail, and row.
func (d *Daemon) DeleteRecording(ctx context.Context, id int64) (int64, error) {
	rec, err := d.GetRecording(ctx, id)
	if err != nil {
		return 0, err
	}
	if rec.Status == store.RecordingActive {
		return 0, fmt.Errorf("recording %d is in progress: %w", id, recorder.ErrAlreadyRecording)
	}
	freed, err := cleanup.RemoveRecording(ctx, d.store, rec)
	if err != nil {
		return freed, err
	}
	d.logger.Info("recording deleted",
		logging.Int64(logging.FieldRecordingID, id),
		logging.Int64("bytes_freed", freed),
	)
	return freed, nil
}

// GetSetting returns the effective value of one setting.
func (d *Daemon) GetSetting(ctx context.Context, key string) (string, error) {
	return d.store.GetSetting(ctx, strings.TrimSpace(key))
}

// SaveSetting validates and stores one setting.
func (d *Daemon) SaveSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if err := d.store.SaveSetting(ctx, key, value); err != nil {
		return err
	}
	d.logger.Info("setting saved", logging.String("key", key), logging.String("value", value))
	return nil
}

// ListSettings returns every setting with its effective value.
func (d *Daemon) ListSettings(ctx context.Context) ([]api.Setting, error) {
	out := make([]api.Setting, 0, len(store.SettingKeys))
	for _, key := range store.SettingKeys {
		value, err := d.store.GetSetting(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, api.Setting{Key: key, Value: value})
	}
	return out, nil
}

// RunCleanupNow runs one eviction pass immediately.
func (d *Daemon) RunCleanupNow(ctx context.Context) (cleanup.Report, error) {
	return d.cleanup.RunNow(ctx)
}

// SetPlayback records what a client is watching. An empty source clears it.
func (d *Daemon) SetPlayback(sourceID, channelID string) {
	if strings.TrimSpace(sourceID) == "" {
		d.playback.Clear()
		return
	}
	d.playback.Set(sourceID, channelID)
}

// ClearPlayback forgets the current playback.
func (d *Daemon) ClearPlayback() {
	d.playback.Clear()
}

// ListSources returns the known IPTV providers.
func (d *Daemon) ListSources(ctx context.Context) ([]*store.Source, error) {
	return d.store.ListSources(ctx)
}

// Subscribe streams lifecycle events until the returned func is called.
func (d *Daemon) Subscribe() (<-chan events.Event, func()) {
	return d.hub.Subscribe()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		StoragePath:  d.cfg.Paths.StorageDir,
		Scheduler: api.SchedulerStatus{
			Running:         d.scheduler.Running(),
			LastTick:        api.FormatTime(d.scheduler.LastTick()),
			PollIntervalSec: int64(d.cfg.Scheduler.PollInterval),
		},
		Active:       d.recorder.Active(),
		LastCleanup:  d.cleanup.LastReport(),
		Subscribers:  d.hub.Subscribers(),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(ctx, d.cfg)),
	}
	if started := d.startedAt.Load(); started > 0 {
		status.StartedAt = api.FormatTime(time.Unix(0, started))
	}

	if settings, err := d.store.LoadSettings(ctx); err == nil {
		status.StoragePath = settings.StoragePath
	}
	if pending, err := d.store.CountPending(ctx); err == nil {
		status.Scheduler.PendingCount = pending
	}
	if usage, err := d.probe.Usage(status.StoragePath); err == nil {
		status.Disk = &usage
	}
	if sourceID, channelID, ok := d.playback.Playing(); ok {
		status.PlaybackSource = sourceID
		status.PlaybackChannel = channelID
	}
	return status
}
