// Package cleanup evicts finished recordings to keep the storage device
// inside its configured budget.
//
// A pass runs four steps in order: age eviction for recordings past the
// retention window, quota eviction while usage is above the configured
// maximum, emergency eviction when the device is nearly full, and a
// reconcile step that refreshes stored sizes from disk. Deletion always
// removes the media file first, then the thumbnail, then the database row.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"dvr/internal/config"
	"dvr/internal/diskusage"
	"dvr/internal/logging"
	"dvr/internal/store"
)

// Store is the persistence cleanup needs.
type Store interface {
	LoadSettings(ctx context.Context) (store.Settings, error)
	FinishedRecordings(ctx context.Context) ([]*store.Recording, error)
	DeleteRecording(ctx context.Context, id int64) error
	UpdateRecordingSize(ctx context.Context, id int64, size int64) error
}

// RowDeleter removes a recording row.
type RowDeleter interface {
	DeleteRecording(ctx context.Context, id int64) error
}

// Options tunes the eviction loop.
type Options struct {
	Interval         time.Duration
	EmergencyPercent int
}

// OptionsFromConfig reads the [cleanup] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:         time.Duration(cfg.Cleanup.Interval) * time.Second,
		EmergencyPercent: cfg.Cleanup.EmergencyPercent,
	}
}

// Pass names one eviction step.
type Pass string

const (
	PassAge       Pass = "age"
	PassQuota     Pass = "quota"
	PassEmergency Pass = "emergency"
)

// Removal describes one deleted recording.
type Removal struct {
	RecordingID int64  `json:"recording_id"`
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	Pass        Pass   `json:"pass"`
}

// CleanupError pairs a path with the error that kept it on disk.
type CleanupError struct {
	RecordingID int64  `json:"recording_id"`
	Path        string `json:"path"`
	Error       string `json:"error"`
}

// Report summarizes one cleanup pass.
type Report struct {
	StartedAt        time.Time        `json:"started_at"`
	Usage            *diskusage.Usage `json:"usage,omitempty"`
	AgeDeleted       int              `json:"age_deleted"`
	QuotaDeleted     int              `json:"quota_deleted"`
	EmergencyDeleted int              `json:"emergency_deleted"`
	Reconciled       int              `json:"reconciled"`
	BytesFreed       int64            `json:"bytes_freed"`
	Removed          []Removal        `json:"removed,omitempty"`
	Errors           []CleanupError   `json:"errors,omitempty"`
}

// Deleted returns the total number of recordings removed.
func (r Report) Deleted() int {
	return r.AgeDeleted + r.QuotaDeleted + r.EmergencyDeleted
}

func (r *Report) record(pass Pass, rec *store.Recording, freed int64) {
	r.Removed = append(r.Removed, Removal{RecordingID: rec.ID, Path: rec.FilePath, Bytes: freed, Pass: pass})
	r.BytesFreed += freed
	switch pass {
	case PassAge:
		r.AgeDeleted++
	case PassQuota:
		r.QuotaDeleted++
	case PassEmergency:
		r.EmergencyDeleted++
	}
}

// Manager runs cleanup passes on an interval and on demand.
type Manager struct {
	store  Store
	probe  diskusage.Probe
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	// runMu serializes passes so RunNow never overlaps the loop.
	runMu sync.Mutex

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	last     *Report
}

// NewManager builds a cleanup manager. A nil probe reads statfs.
func NewManager(st Store, probe diskusage.Probe, opts Options, logger *slog.Logger) *Manager {
	if probe == nil {
		probe = diskusage.StatfsProbe{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.EmergencyPercent <= 0 || opts.EmergencyPercent > 100 {
		opts.EmergencyPercent = 90
	}
	return &Manager{
		store:  st,
		probe:  probe,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "cleanup"),
		now:    time.Now,
	}
}

// SetClock overrides the clock used for age eviction.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Start runs a pass immediately and then every interval until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("cleanup already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.loopDone = make(chan struct{})
	done := m.loopDone
	m.mu.Unlock()

	go m.loop(runCtx, done)
	return nil
}

// Stop halts the loop and waits for an in-flight pass.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.loopDone
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

// LastReport returns the most recent pass result, or nil before the first.
func (m *Manager) LastReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunNow(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(m.logger, "cleanup pass failed", "cleanup.pass_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access and the storage path"),
				logging.String(logging.FieldImpact, "old recordings were not evicted this cycle"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunNow performs one full pass and returns its report.
func (m *Manager) RunNow(ctx context.Context) (Report, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	report, err := m.run(ctx)
	if err != nil {
		return report, err
	}
	m.mu.Lock()
	m.last = &report
	m.mu.Unlock()

	if report.Deleted() > 0 || len(report.Errors) > 0 {
		m.logger.Info("cleanup pass finished",
			logging.String(logging.FieldEventType, "cleanup.finished"),
			logging.Int("age_deleted", report.AgeDeleted),
			logging.Int("quota_deleted", report.QuotaDeleted),
			logging.Int("emergency_deleted", report.EmergencyDeleted),
			logging.Int("reconciled", report.Reconciled),
			logging.Int64("bytes_freed", report.BytesFreed),
			logging.Int("errors", len(report.Errors)),
		)
	} else {
		m.logger.Debug("cleanup pass found nothing to evict", logging.Int("reconciled", report.Reconciled))
	}
	return report, nil
}

func (m *Manager) run(ctx context.Context) (Report, error) {
	now := m.now()
	report := Report{StartedAt: now}

	settings, err := m.store.LoadSettings(ctx)
	if err != nil {
		return report, fmt.Errorf("load settings: %w", err)
	}
	storage := strings.TrimSpace(settings.StoragePath)

	usage, usageErr := m.probe.Usage(storage)
	if usageErr != nil {
		logging.WarnWithContext(m.logger, "disk usage unavailable", "cleanup.usage_failed",
			logging.String("storage_path", storage),
			logging.Error(usageErr),
			logging.String(logging.FieldImpact, "quota and emergency eviction skipped"),
		)
	} else {
		report.Usage = &usage
	}

	if days := settings.KeepRecordingsDays; days != nil && *days > 0 {
		if err := m.ageEviction(ctx, &report, now.Add(-time.Duration(*days)*24*time.Hour)); err != nil {
			return report, err
		}
	}

	if usageErr == nil && settings.AutoCleanupEnabled && usage.Percent > float64(settings.MaxDiskUsagePercent) {
		if err := m.quotaEviction(ctx, &report, usage.BytesAbove(settings.MaxDiskUsagePercent)); err != nil {
			return report, err
		}
	}

	if usageErr == nil {
		fresh, err := m.probe.Usage(storage)
		if err == nil && fresh.Percent >= float64(m.opts.EmergencyPercent) {
			report.Usage = &fresh
			if err := m.emergencyEviction(ctx, &report, fresh); err != nil {
				return report, err
			}
		}
	}

	if err := m.reconcile(ctx, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Manager) ageEviction(ctx context.Context, report *Report, cutoff time.Time) error {
	recs, err := m.store.FinishedRecordings(ctx)
	if err != nil {
		return fmt.Errorf("list finished recordings: %w", err)
	}
	for _, rec := range recs {
		if rec.AutoDeletePolicy == store.PolicyNever || !rec.EffectiveEnd().Before(cutoff) {
			continue
		}
		m.evict(ctx, report, PassAge, rec)
	}
	return nil
}

func (m *Manager) quotaEviction(ctx context.Context, report *Report, toFree uint64) error {
	recs, err := m.store.FinishedRecordings(ctx)
	if err != nil {
		return fmt.Errorf("list finished recordings: %w", err)
	}
	m.logger.Info("storage above quota",
		logging.String(logging.FieldEventType, "cleanup.quota_exceeded"),
		logging.Int64("bytes_to_free", int64(toFree)),
	)
	var freed uint64
	for _, rec := range recs {
		if freed >= toFree {
			break
		}
		if rec.AutoDeletePolicy == store.PolicyNever {
			continue
		}
		if n, ok := m.evict(ctx, report, PassQuota, rec); ok {
			freed += uint64(n)
		}
	}
	return nil
}

// emergencyEviction removes the oldest half of every finished recording,
// including those marked never. It is a coarse last resort.
func (m *Manager) emergencyEviction(ctx context.Context, report *Report, usage diskusage.Usage) error {
	recs, err := m.store.FinishedRecordings(ctx)
	if err != nil {
		return fmt.Errorf("list finished recordings: %w", err)
	}
	count := len(recs) / 2
	logging.WarnWithContext(m.logger, "storage critically full; evicting oldest recordings", "cleanup.emergency",
		logging.Float64("used_percent", usage.Percent),
		logging.Int("emergency_percent", m.opts.EmergencyPercent),
		logging.Int("evicting", count),
		logging.String(logging.FieldImpact, "recordings marked never may be deleted"),
		logging.String(logging.FieldErrorHint, "free space on the storage device or lower retention"),
	)
	for _, rec := range recs[:count] {
		m.evict(ctx, report, PassEmergency, rec)
	}
	return nil
}

func (m *Manager) reconcile(ctx context.Context, report *Report) error {
	recs, err := m.store.FinishedRecordings(ctx)
	if err != nil {
		return fmt.Errorf("list finished recordings: %w", err)
	}
	for _, rec := range recs {
		info, err := os.Stat(rec.FilePath)
		if err != nil {
			continue
		}
		if rec.SizeBytes != nil && *rec.SizeBytes == info.Size() {
			continue
		}
		if err := m.store.UpdateRecordingSize(ctx, rec.ID, info.Size()); err != nil {
			m.logger.Warn("failed to refresh recording size",
				logging.Int64(logging.FieldRecordingID, rec.ID),
				logging.Error(err),
			)
			continue
		}
		report.Reconciled++
	}
	return nil
}

func (m *Manager) evict(ctx context.Context, report *Report, pass Pass, rec *store.Recording) (int64, bool) {
	freed, err := RemoveRecording(ctx, m.store, rec)
	if err != nil {
		report.Errors = append(report.Errors, CleanupError{RecordingID: rec.ID, Path: rec.FilePath, Error: err.Error()})
		m.logger.Warn("failed to evict recording",
			logging.Int64(logging.FieldRecordingID, rec.ID),
			logging.String("path", rec.FilePath),
			logging.String("pass", string(pass)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "cleanup.evict_failed"),
			logging.String(logging.FieldErrorHint, "check storage_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return 0, false
	}
	report.record(pass, rec, freed)
	m.logger.Info("evicted recording",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("path", rec.FilePath),
		logging.String("pass", string(pass)),
		logging.Int64("bytes", freed),
		logging.String(logging.FieldEventType, "cleanup.evicted"),
	)
	return freed, true
}

// RemoveRecording deletes the media file, then the thumbnail, then the row,
// and returns the bytes freed. Files already gone are not an error; a file
// that cannot be removed keeps the row in place.
func RemoveRecording(ctx context.Context, st RowDeleter, rec *store.Recording) (int64, error) {
	freed := rec.Size()
	if path := strings.TrimSpace(rec.FilePath); path != "" {
		if info, err := os.Stat(path); err == nil {
			freed = info.Size()
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("remove media file: %w", err)
		}
	}
	if thumb := strings.TrimSpace(rec.ThumbnailPath); thumb != "" {
		if err := os.Remove(thumb); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("remove thumbnail: %w", err)
		}
	}
	if err := st.DeleteRecording(ctx, rec.ID); err != nil {
		return 0, err
	}
	return freed, nil
}
