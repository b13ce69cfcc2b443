// Package scheduler turns stored schedules into running recording jobs.
//
// A single ticker polls the store for schedules whose padded start falls in
// the due window (or that were missed within the grace period) and hands each
// one to the recorder on its own goroutine. The poll interval is therefore
// the upper bound on how late a capture can begin.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dvr/internal/config"
	"dvr/internal/logging"
	"dvr/internal/store"
)

// Store is the subset of the schedule store the poller uses.
type Store interface {
	CountPending(ctx context.Context) (int, error)
	DueSchedules(ctx context.Context, now time.Time, lookahead, grace time.Duration) ([]*store.Schedule, error)
	UpdateScheduleStatus(ctx context.Context, id int64, status store.ScheduleStatus) error
}

// Recorder runs one capture job to completion.
type Recorder interface {
	Record(ctx context.Context, sched *store.Schedule) error
}

// Options sets the polling cadence.
type Options struct {
	PollInterval time.Duration
	Lookahead    time.Duration
	MissedGrace  time.Duration
}

// OptionsFromConfig reads the [scheduler] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval: time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		Lookahead:    time.Duration(cfg.Scheduler.LookaheadWindow) * time.Second,
		MissedGrace:  time.Duration(cfg.Scheduler.MissedGrace) * time.Second,
	}
}

// Scheduler polls for due schedules and dispatches them.
type Scheduler struct {
	store    Store
	recorder Recorder
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	lastTick time.Time

	dispatch sync.WaitGroup
}

// New constructs a scheduler. Zero options fall back to 30s/60s/300s.
func New(st Store, rec Recorder, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = 60 * time.Second
	}
	if opts.MissedGrace <= 0 {
		opts.MissedGrace = 300 * time.Second
	}
	return &Scheduler{
		store:    st,
		recorder: rec,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		now:      time.Now,
	}
}

// SetClock overrides the wall clock used to evaluate due windows.
func (s *Scheduler) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Start runs one poll immediately and then on every tick until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.loopDone = make(chan struct{})
	done := s.loopDone
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler.started"),
		logging.Duration("poll_interval", s.opts.PollInterval),
		logging.Duration("lookahead", s.opts.Lookahead),
		logging.Duration("missed_grace", s.opts.MissedGrace),
	)
	go s.loop(runCtx, done)
	return nil
}

// Stop halts polling. Jobs already dispatched keep running; the recorder
// owns their shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.loopDone
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler.stopped"))
}

// Running reports whether the poll loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastTick returns when the last poll ran.
func (s *Scheduler) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// WaitDispatched blocks until every dispatched Record call has returned.
func (s *Scheduler) WaitDispatched() {
	s.dispatch.Wait()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single poll and returns how many schedules were
// dispatched. Store failures are logged and count as nothing due.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	s.lastTick = now
	s.mu.Unlock()

	pending, err := s.store.CountPending(ctx)
	if err != nil {
		s.tickFailed("count pending schedules", err)
		return 0
	}
	if pending == 0 {
		return 0
	}

	due, err := s.store.DueSchedules(ctx, now, s.opts.Lookahead, s.opts.MissedGrace)
	if err != nil {
		s.tickFailed("query due schedules", err)
		return 0
	}

	dispatched := 0
	for _, sched := range due {
		if s.dispatchOne(ctx, sched) {
			dispatched++
		}
	}
	if dispatched > 0 {
		s.logger.Debug("poll dispatched schedules", logging.Int("dispatched", dispatched), logging.Int("pending", pending))
	}
	return dispatched
}

func (s *Scheduler) dispatchOne(ctx context.Context, sched *store.Schedule) bool {
	logger := logging.WithContext(logging.WithScheduleID(ctx, sched.ID), s.logger)
	if err := s.store.UpdateScheduleStatus(ctx, sched.ID, store.ScheduleRecording); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			// Canceled or deleted between the query and now.
			logger.Debug("due schedule no longer startable", logging.Error(err))
			return false
		}
		logging.WarnWithContext(logger, "failed to mark schedule recording", "schedule.dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access; the next poll retries"),
		)
		return false
	}
	sched.Status = store.ScheduleRecording

	logger.Info("dispatching recording",
		logging.String(logging.FieldEventType, "schedule.dispatched"),
		logging.String("channel", sched.ChannelName),
		logging.String("program", sched.ProgramTitle),
		logging.Time("scheduled_start", sched.ScheduledStart),
	)

	// Jobs outlive the poll loop; only the recorder may cancel them.
	jobCtx := context.WithoutCancel(ctx)
	s.dispatch.Add(1)
	go func() {
		defer s.dispatch.Done()
		err := s.recorder.Record(jobCtx, sched)
		s.onRecordDone(jobCtx, logger, sched, err)
	}()
	return true
}

// onRecordDone makes sure a job that could not run never leaves its
// schedule stuck in recording.
func (s *Scheduler) onRecordDone(ctx context.Context, logger *slog.Logger, sched *store.Schedule, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "recording job did not run", "schedule.record_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "the program will not be captured"),
	)
	if upd := s.store.UpdateScheduleStatus(ctx, sched.ID, store.ScheduleFailed); upd != nil && !errors.Is(upd, store.ErrInvalidTransition) {
		logging.ErrorWithContext(logger, "failed to mark schedule failed", "schedule.persist_failed", logging.Error(upd))
	}
}

func (s *Scheduler) tickFailed(what string, err error) {
	logging.WarnWithContext(s.logger, "poll skipped: "+what, "scheduler.tick_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
}
