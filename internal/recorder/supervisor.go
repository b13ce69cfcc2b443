package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dvr/internal/config"
	"dvr/internal/events"
	"dvr/internal/logging"
	"dvr/internal/resolver"
	"dvr/internal/store"
	"dvr/internal/textutil"
)

var (
	// ErrAlreadyRecording reports a second Record call for a schedule that
	// already has a live job.
	ErrAlreadyRecording = errors.New("schedule is already recording")
	// ErrShuttingDown reports a Record call after StopAll.
	ErrShuttingDown = errors.New("recorder is shutting down")
)

// Store is the persistence the supervisor needs.
type Store interface {
	CreateRecording(ctx context.Context, rec store.NewRecording) (int64, error)
	UpdateRecording(ctx context.Context, id int64, upd store.RecordingUpdate) error
	GetRecording(ctx context.Context, id int64) (*store.Recording, error)
	DeleteRecording(ctx context.Context, id int64) error
	UpdateScheduleStatus(ctx context.Context, id int64, status store.ScheduleStatus) error
	LoadSettings(ctx context.Context) (store.Settings, error)
}

// Resolver picks the capture URL.
type Resolver interface {
	Resolve(ctx context.Context, sched *store.Schedule) (resolver.Result, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// PostProcessor runs after a capture that wrote bytes. Failures are logged
// and never change the recording's status.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, rec *store.Recording) error
}

// Options tunes capture behaviour.
type Options struct {
	FFmpegBinary   string
	NetworkTimeout time.Duration
	SafetyMargin   time.Duration
	MinimumTimeout time.Duration
	DrainTimeout   time.Duration
}

// OptionsFromConfig reads the [recorder] section.
func OptionsFromConfig(cfg *config.Config) Options {
	sec := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return Options{
		FFmpegBinary:   cfg.Recorder.FFmpegBinary,
		NetworkTimeout: sec(cfg.Recorder.NetworkTimeout),
		SafetyMargin:   sec(cfg.Recorder.SafetyMargin),
		MinimumTimeout: sec(cfg.Recorder.MinimumTimeout),
		DrainTimeout:   sec(cfg.Recorder.DrainTimeout),
	}
}

// Progress is a snapshot of one live job.
type Progress struct {
	JobID           string    `json:"job_id"`
	ScheduleID      int64     `json:"schedule_id"`
	RecordingID     int64     `json:"recording_id,omitempty"`
	ChannelName     string    `json:"channel_name"`
	ProgramTitle    string    `json:"program_title"`
	State           string    `json:"state"`
	FilePath        string    `json:"file_path,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	ElapsedSeconds  int64     `json:"elapsed_seconds"`
	DurationSeconds int64     `json:"scheduled_duration_seconds"`
	BytesWritten    int64     `json:"bytes_written"`
}

// Supervisor owns every capture process.
type Supervisor struct {
	store    Store
	resolver Resolver
	events   Publisher
	post     []PostProcessor
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	jobs   map[int64]*job
	closed bool

	wg     sync.WaitGroup
	postWG sync.WaitGroup
}

// New builds a supervisor. events may be nil.
func New(st Store, res Resolver, pub Publisher, opts Options, logger *slog.Logger, post ...PostProcessor) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.NetworkTimeout <= 0 {
		opts.NetworkTimeout = 30 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	var processors []PostProcessor
	for _, p := range post {
		if p != nil {
			processors = append(processors, p)
		}
	}
	return &Supervisor{
		store:    st,
		resolver: res,
		events:   pub,
		post:     processors,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "recorder"),
		jobs:     make(map[int64]*job),
	}
}

type job struct {
	id       string
	sched    *store.Schedule
	duration time.Duration
	started  time.Time

	cancel     chan struct{}
	cancelOnce sync.Once

	mu          sync.Mutex
	proc        *os.Process
	recordingID int64
	path        string
	state       string
}

func (j *job) requestCancel() {
	j.cancelOnce.Do(func() { close(j.cancel) })
}

func (j *job) canceled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

// takeProcess removes the process handle so exactly one caller kills it.
func (j *job) takeProcess() *os.Process {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.proc
	j.proc = nil
	return p
}

func (j *job) kill() {
	if p := j.takeProcess(); p != nil {
		_ = p.Kill()
	}
}

type outcome int

const (
	outcomeExited outcome = iota
	outcomeCanceled
	outcomeTimedOut
)

// Record runs one capture job for sched and blocks until it ends. The caller
// must already have moved the schedule to recording. Capture failures are
// classified and persisted, not returned; the error covers jobs that never
// got a process running.
func (s *Supervisor) Record(ctx context.Context, sched *store.Schedule) error {
	if sched == nil {
		return errors.New("nil schedule")
	}
	// Store writes after this point must land even while the daemon shuts down.
	persistCtx := context.WithoutCancel(ctx)

	j := &job{
		id:       uuid.NewString(),
		sched:    sched,
		duration: CaptureDuration(sched),
		started:  time.Now(),
		cancel:   make(chan struct{}),
		state:    "resolving",
	}
	if err := s.register(j); err != nil {
		return err
	}
	defer s.wg.Done()
	defer s.deregister(j)

	ctx = logging.WithJobID(logging.WithScheduleID(ctx, sched.ID), j.id)
	logger := logging.WithContext(ctx, s.logger)

	res, err := s.resolver.Resolve(ctx, sched)
	if err != nil {
		s.failBeforeSpawn(persistCtx, logger, sched, fmt.Errorf("resolve stream url: %w", err))
		return err
	}
	if j.canceled() {
		s.finishSchedule(persistCtx, logger, sched.ID, store.ScheduleCanceled)
		s.publish(persistCtx, events.Failed, sched, nil, "recording canceled before start")
		return nil
	}

	outPath, err := s.outputPath(persistCtx, sched)
	if err != nil {
		s.failBeforeSpawn(persistCtx, logger, sched, err)
		return err
	}

	recID, err := s.store.CreateRecording(persistCtx, store.NewRecording{
		ScheduleID:     sched.ID,
		FilePath:       outPath,
		Filename:       filepath.Base(outPath),
		ChannelName:    sched.ChannelName,
		ProgramTitle:   sched.ProgramTitle,
		ScheduledStart: sched.ScheduledStart,
		ScheduledEnd:   sched.ScheduledEnd,
		ActualStart:    time.Now(),
		Policy:         store.PolicySpaceNeeded,
	})
	if err != nil {
		s.failBeforeSpawn(persistCtx, logger, sched, fmt.Errorf("create recording row: %w", err))
		return err
	}

	stderr := &lastLineWriter{}
	args := BuildCaptureArgs(res.URL, outPath, j.duration, s.opts.NetworkTimeout)
	cmd := exec.Command(s.opts.FFmpegBinary, args...) //nolint:gosec
	cmd.Stderr = stderr
	cmd.WaitDelay = s.opts.DrainTimeout
	if err := cmd.Start(); err != nil {
		if delErr := s.store.DeleteRecording(persistCtx, recID); delErr != nil {
			logger.Warn("failed to remove recording row after spawn failure", logging.Error(delErr))
		}
		_ = os.Remove(outPath)
		s.failBeforeSpawn(persistCtx, logger, sched, fmt.Errorf("start ffmpeg: %w", err))
		return err
	}

	j.mu.Lock()
	j.proc = cmd.Process
	j.recordingID = recID
	j.path = outPath
	j.state = "running"
	j.mu.Unlock()

	logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording.started"),
		logging.Int64(logging.FieldRecordingID, recID),
		logging.String("url_method", string(res.Method)),
		logging.String("output", outPath),
		logging.Duration("duration", j.duration),
	)
	s.publish(persistCtx, events.Started, sched, &recID, "")

	how, waitErr := s.wait(j, cmd)
	j.takeProcess()
	s.deregister(j)

	s.finish(persistCtx, logger, j, recID, outPath, how, waitErr, stderr.Last())
	return nil
}

func (s *Supervisor) register(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShuttingDown
	}
	if _, exists := s.jobs[j.sched.ID]; exists {
		return fmt.Errorf("schedule %d: %w", j.sched.ID, ErrAlreadyRecording)
	}
	s.jobs[j.sched.ID] = j
	s.wg.Add(1)
	return nil
}

func (s *Supervisor) deregister(j *job) {
	s.mu.Lock()
	if current, ok := s.jobs[j.sched.ID]; ok && current == j {
		delete(s.jobs, j.sched.ID)
	}
	s.mu.Unlock()
}

// wait races process exit, cancellation, and the timeout backstop.
func (s *Supervisor) wait(j *job, cmd *exec.Cmd) (outcome, error) {
	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		// A clean exit whose stderr pipe outlived WaitDelay is still a clean exit.
		if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
			err = nil
		}
		exited <- err
	}()

	timer := time.NewTimer(CaptureTimeout(j.duration, s.opts.SafetyMargin, s.opts.MinimumTimeout))
	defer timer.Stop()

	select {
	case err := <-exited:
		if j.canceled() {
			return outcomeCanceled, err
		}
		return outcomeExited, err
	case <-j.cancel:
		j.kill()
		return outcomeCanceled, <-exited
	case <-timer.C:
		j.kill()
		return outcomeTimedOut, <-exited
	}
}

func (s *Supervisor) finish(ctx context.Context, logger *slog.Logger, j *job, recID int64, path string, how outcome, waitErr error, lastLine string) {
	size := fileSize(path)
	recStatus := store.RecordingFailed
	if size > 0 {
		recStatus = store.RecordingPartial
	}
	var (
		schedStatus store.ScheduleStatus
		message     string
	)
	switch how {
	case outcomeCanceled:
		schedStatus = store.ScheduleCanceled
		message = "recording canceled"
	case outcomeTimedOut:
		schedStatus = store.ScheduleFailed
		message = fmt.Sprintf("recording timed out after %s", CaptureTimeout(j.duration, s.opts.SafetyMargin, s.opts.MinimumTimeout))
	default:
		if waitErr == nil {
			recStatus = store.RecordingCompleted
			schedStatus = store.ScheduleCompleted
			break
		}
		// Partial bytes stay on the recording; the schedule still failed.
		message = exitMessage(waitErr, lastLine)
		schedStatus = store.ScheduleFailed
	}

	sizeCopy := size
	if err := s.store.UpdateRecording(ctx, recID, store.RecordingUpdate{Status: recStatus, SizeBytes: &sizeCopy, ErrorMessage: message}); err != nil {
		logging.ErrorWithContext(logger, "failed to persist recording outcome", "recording.persist_failed",
			logging.Int64(logging.FieldRecordingID, recID),
			logging.Error(err),
		)
	}
	s.finishSchedule(ctx, logger, j.sched.ID, schedStatus)

	attrs := []logging.Attr{
		logging.Int64(logging.FieldRecordingID, recID),
		logging.String("status", string(recStatus)),
		logging.Int64("size_bytes", size),
		logging.Duration("elapsed", time.Since(j.started)),
	}
	if recStatus == store.RecordingCompleted {
		logger.Info("recording completed", logging.Args(append(attrs, logging.String(logging.FieldEventType, "recording.completed"))...)...)
		s.publish(ctx, events.Completed, j.sched, &recID, "")
	} else {
		logging.WarnWithContext(logger, "recording did not complete", "recording.failed",
			append(attrs,
				logging.String("reason", message),
				logging.String(logging.FieldErrorHint, "check the stream url and network; the last ffmpeg line is in the reason"),
				logging.String(logging.FieldImpact, "the program was not fully captured"),
			)...,
		)
		s.publish(ctx, events.Failed, j.sched, &recID, message)
	}

	if size > 0 && len(s.post) > 0 {
		s.runPostProcessors(ctx, logger, recID)
	}
}

func exitMessage(err error, lastLine string) string {
	if lastLine == "" {
		lastLine = "no diagnostic output"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("ffmpeg exited with code %d: %s", exitErr.ExitCode(), lastLine)
	}
	return fmt.Sprintf("ffmpeg wait error: %v: %s", err, lastLine)
}

func (s *Supervisor) finishSchedule(ctx context.Context, logger *slog.Logger, id int64, status store.ScheduleStatus) {
	err := s.store.UpdateScheduleStatus(ctx, id, status)
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		// Another writer (StopAll) reached a terminal state first.
		logger.Debug("schedule already finalized", logging.String("wanted", string(status)), logging.Error(err))
		return
	}
	logging.ErrorWithContext(logger, "failed to persist schedule outcome", "schedule.persist_failed",
		logging.String("status", string(status)),
		logging.Error(err),
	)
}

func (s *Supervisor) failBeforeSpawn(ctx context.Context, logger *slog.Logger, sched *store.Schedule, cause error) {
	logging.ErrorWithContext(logger, "recording could not start", "recording.spawn_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "verify ffmpeg is installed and the source has a stream url"),
	)
	s.finishSchedule(ctx, logger, sched.ID, store.ScheduleFailed)
	s.publish(ctx, events.Failed, sched, nil, cause.Error())
}

func (s *Supervisor) outputPath(ctx context.Context, sched *store.Schedule) (string, error) {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	dir := strings.TrimSpace(settings.StoragePath)
	if dir == "" {
		return "", errors.New("storage path is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	name := textutil.RecordingFileName(sched.ScheduledStart, sched.ChannelName, sched.ProgramTitle)
	path := filepath.Join(dir, name)
	base := strings.TrimSuffix(path, ".ts")
	for n := 2; fileExists(path); n++ {
		path = fmt.Sprintf("%s-%d.ts", base, n)
	}
	return path, nil
}

func (s *Supervisor) runPostProcessors(ctx context.Context, logger *slog.Logger, recID int64) {
	s.postWG.Add(1)
	go func() {
		defer s.postWG.Done()
		rec, err := s.store.GetRecording(ctx, recID)
		if err != nil || rec == nil {
			logger.Warn("post-processing skipped; recording not found", logging.Int64(logging.FieldRecordingID, recID), logging.Error(err))
			return
		}
		for _, p := range s.post {
			if err := p.Process(ctx, rec); err != nil {
				logging.WarnWithContext(logger, "post-processing failed", "recording.postprocess_failed",
					logging.String("processor", p.Name()),
					logging.Int64(logging.FieldRecordingID, recID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the recording is kept; only the "+p.Name()+" step is missing"),
				)
			}
		}
	}()
}

func (s *Supervisor) publish(ctx context.Context, typ events.Type, sched *store.Schedule, recID *int64, message string) {
	if s.events == nil {
		return
	}
	ev := events.ForSchedule(typ, sched)
	ev.RecordingID = recID
	ev.Message = message
	s.events.Publish(ctx, ev)
}

// Stop cancels the job for scheduleID and kills its process. It reports
// whether a job was found; calling it again is harmless.
func (s *Supervisor) Stop(scheduleID int64) bool {
	s.mu.Lock()
	j := s.jobs[scheduleID]
	s.mu.Unlock()
	if j == nil {
		return false
	}
	j.requestCancel()
	j.kill()
	s.logger.Info("recording stop requested", logging.Int64(logging.FieldScheduleID, scheduleID))
	return true
}

// StopAll kills every job, marks each schedule canceled, refuses new jobs,
// and waits for job goroutines until ctx ends.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	persistCtx := context.WithoutCancel(ctx)
	for _, j := range jobs {
		j.requestCancel()
		j.kill()
		s.finishSchedule(persistCtx, s.logger, j.sched.ID, store.ScheduleCanceled)
	}
	if len(jobs) > 0 {
		s.logger.Info("stopping active recordings", logging.Int("count", len(jobs)))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.postWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for recordings: %w", ctx.Err())
	}
}

// Wait blocks until running jobs and their post-processing finish.
func (s *Supervisor) Wait() {
	s.wg.Wait()
	s.postWG.Wait()
}

// Active returns progress snapshots of live jobs ordered by schedule id.
func (s *Supervisor) Active() []Progress {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	now := time.Now()
	out := make([]Progress, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		p := Progress{
			JobID:           j.id,
			ScheduleID:      j.sched.ID,
			RecordingID:     j.recordingID,
			ChannelName:     j.sched.ChannelName,
			ProgramTitle:    j.sched.ProgramTitle,
			State:           j.state,
			FilePath:        j.path,
			StartedAt:       j.started,
			ElapsedSeconds:  int64(now.Sub(j.started) / time.Second),
			DurationSeconds: int64(j.sched.ScheduledEnd.Sub(j.sched.ScheduledStart) / time.Second),
		}
		j.mu.Unlock()
		if p.FilePath != "" {
			p.BytesWritten = fileSize(p.FilePath)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ScheduleID < out[b].ScheduleID })
	return out
}

// IsRecording reports whether scheduleID has a live job.
func (s *Supervisor) IsRecording(scheduleID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[scheduleID]
	return ok
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
