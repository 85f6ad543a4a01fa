// Package scheduler runs recurring jobs with per-job mutual exclusion and a
// bounded retry policy. Time only advances through Tick, which a ticker loop
// calls in production and tests call directly.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dtnitsch/seo-pipeline/models"
)

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already registered")
	ErrJobInactive  = errors.New("job is inactive")
	ErrStopping     = errors.New("scheduler is stopping")
)

// SchedulingError reports a job whose configuration cannot be scheduled.
type SchedulingError struct {
	JobID    string
	Schedule string
	Err      error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("job %s: invalid schedule %q: %v", e.JobID, e.Schedule, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// RunFunc performs one execution of a job.
type RunFunc func(ctx context.Context, job models.CrawlJob) error

// JobStore persists job state and execution history. Store failures are
// logged and never affect scheduling.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.CrawlJob) error
	RecordExecution(ctx context.Context, exec *models.JobExecution) error
}

type entry struct {
	job      models.CrawlJob
	schedule cron.Schedule
	next     time.Time
	run      RunFunc
	stats    models.JobStats
	totalMs  int64
}

// Scheduler owns the registered jobs and the set of running job ids.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	running map[string]time.Time
	// stopping counts Stop calls draining runs; no run may start meanwhile.
	stopping int

	executions int
	successes  int
	failures   int
	skipped    int
	totalMs    int64

	store    JobStore
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	runCtx context.Context
	wg     sync.WaitGroup

	// persistMu orders store writes so the last write carries the latest state.
	persistMu sync.Mutex

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval sets how often Start's loop calls Tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// New returns an empty scheduler. store may be nil.
func New(store JobStore, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{
		entries:  map[string]*entry{},
		running:  map[string]time.Time{},
		store:    store,
		logger:   logger,
		now:      time.Now,
		interval: time.Second,
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 15m" or "@daily".
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cron.ParseStandard(expr)
}

// Register adds a job. A schedule that does not parse yields a
// *SchedulingError and the job is not registered.
func (s *Scheduler) Register(job models.CrawlJob, run RunFunc) error {
	sched, err := ParseSchedule(job.Schedule)
	if err != nil {
		return &SchedulingError{JobID: job.ID, Schedule: job.Schedule, Err: err}
	}
	if run == nil {
		return &SchedulingError{JobID: job.ID, Schedule: job.Schedule, Err: errors.New("no runner for job type " + string(job.Type))}
	}
	if job.MaxRetries < 0 {
		job.MaxRetries = 0
	}
	job.RetryAttempts = min(max(job.RetryAttempts, 0), job.MaxRetries)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	s.entries[job.ID] = &entry{
		job:      job,
		schedule: sched,
		next:     sched.Next(s.now()),
		run:      run,
	}
	s.order = append(s.order, job.ID)
	s.logger.Info("Registered job", "job_id", job.ID, "type", job.Type, "schedule", job.Schedule, "active", job.IsActive)
	return nil
}

// Tick starts every active job that is due at now and not already running.
// A due job that is still running is skipped, not queued. The next run time
// of every due job advances whether or not it started. Tick returns the ids
// of the jobs it started.
func (s *Scheduler) Tick(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping > 0 {
		return nil
	}

	var started []string
	for _, id := range s.order {
		e := s.entries[id]
		if !e.job.IsActive || now.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(now)

		if _, busy := s.running[id]; busy {
			s.skipped++
			e.stats.Skipped++
			s.logger.Warn("Skipping job, previous run still in progress", "job_id", id, "next_run", e.next)
			continue
		}
		s.startLocked(e, now)
		started = append(started, id)
	}
	return started
}

// TriggerNow starts a job immediately. It reports false without error when
// the job is already running, and fails with ErrStopping during Stop.
func (s *Scheduler) TriggerNow(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping > 0 {
		return false, ErrStopping
	}

	e, ok := s.entries[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if !e.job.IsActive {
		return false, fmt.Errorf("%w: %s", ErrJobInactive, id)
	}
	if _, busy := s.running[id]; busy {
		s.skipped++
		e.stats.Skipped++
		s.logger.Info("Trigger ignored, job already running", "job_id", id)
		return false, nil
	}
	s.startLocked(e, s.now())
	return true, nil
}

// startLocked marks the job running and launches it. s.mu must be held.
func (s *Scheduler) startLocked(e *entry, now time.Time) {
	s.running[e.job.ID] = now
	job := e.job
	run := e.run
	ctx := s.runCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := s.now()
		err := safeRun(ctx, run, job)
		s.finish(job.ID, start, s.now().Sub(start), err)
	}()
}

// safeRun converts a panic in run into an error.
func safeRun(ctx context.Context, run RunFunc, job models.CrawlJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return run(ctx, job)
}

// finish applies the retry policy, updates metrics and persists the outcome.
func (s *Scheduler) finish(id string, start time.Time, dur time.Duration, runErr error) {
	s.mu.Lock()
	e := s.entries[id]
	delete(s.running, id)

	exec := &models.JobExecution{
		ID:         uuid.NewString(),
		JobID:      id,
		StartedAt:  start,
		DurationMs: dur.Milliseconds(),
		Attempt:    e.job.RetryAttempts,
	}

	e.job.LastRun = start
	s.executions++
	s.totalMs += exec.DurationMs
	e.stats.Executions++
	e.totalMs += exec.DurationMs
	e.stats.AvgDurationMs = float64(e.totalMs) / float64(e.stats.Executions)

	if runErr == nil {
		e.job.RetryAttempts = 0
		exec.Status = models.ExecutionSucceeded
		s.successes++
		e.stats.Successes++
	} else {
		exec.Status = models.ExecutionFailed
		exec.Error = runErr.Error()
		s.failures++
		e.stats.Failures++

		next := e.job.RetryAttempts + 1
		if next > e.job.MaxRetries {
			e.job.IsActive = false
			e.job.RetryAttempts = e.job.MaxRetries
		} else {
			e.job.RetryAttempts = next
		}
	}
	e.stats.LastStatus = exec.Status
	job := e.job
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("Job failed", "job_id", id, "attempts", job.RetryAttempts, "max_retries", job.MaxRetries, "deactivated", !job.IsActive, "error", runErr)
	} else {
		s.logger.Info("Job succeeded", "job_id", id, "duration_ms", exec.DurationMs)
	}
	s.persist(id, exec)
}

// persist records exec, if any, and saves the job's current state. The
// state is read under persistMu, so concurrent callers cannot leave an
// older snapshot in the store.
func (s *Scheduler) persist(id string, exec *models.JobExecution) {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	ctx := context.Background()
	if exec != nil {
		if err := s.store.RecordExecution(ctx, exec); err != nil {
			s.logger.Error("Failed to record execution", "job_id", id, "error", err)
		}
	}

	s.mu.Lock()
	job := s.entries[id].job
	s.mu.Unlock()
	if err := s.store.SaveJob(ctx, &job); err != nil {
		s.logger.Error("Failed to save job", "job_id", id, "error", err)
	}
}

// Reactivate re-enables a job and clears its retry count.
func (s *Scheduler) Reactivate(id string) error {
	return s.setActive(id, true)
}

// Deactivate disables a job. A run in progress is not interrupted.
func (s *Scheduler) Deactivate(id string) error {
	return s.setActive(id, false)
}

func (s *Scheduler) setActive(id string, active bool) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	e.job.IsActive = active
	if active {
		e.job.RetryAttempts = 0
		e.next = e.schedule.Next(s.now())
	}
	s.mu.Unlock()

	s.logger.Info("Changed job state", "job_id", id, "active", active)
	s.persist(id, nil)
	return nil
}

// Job returns a copy of a registered job.
func (s *Scheduler) Job(id string) (models.CrawlJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.CrawlJob{}, false
	}
	return e.job, true
}

// Jobs returns copies of all jobs in registration order.
func (s *Scheduler) Jobs() []models.CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CrawlJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].job)
	}
	return out
}

// NextRun returns when a job is next due.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Running returns the ids of running jobs with their start times.
func (s *Scheduler) Running() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.running))
	for id, t := range s.running {
		out[id] = t
	}
	return out
}

// Metrics returns a snapshot of the scheduler counters.
func (s *Scheduler) Metrics() models.SchedulerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := models.SchedulerMetrics{
		TotalJobs:  len(s.entries),
		Running:    make([]string, 0, len(s.running)),
		Executions: s.executions,
		Successes:  s.successes,
		Failures:   s.failures,
		Skipped:    s.skipped,
		Jobs:       make(map[string]models.JobStats, len(s.entries)),
	}
	if s.executions > 0 {
		m.AvgDurationMs = float64(s.totalMs) / float64(s.executions)
	}
	for id, e := range s.entries {
		if e.job.IsActive {
			m.ActiveJobs++
		}
		m.Jobs[id] = e.stats
	}
	for id := range s.running {
		m.Running = append(m.Running, id)
	}
	sort.Strings(m.Running)
	return m
}

// Start runs the tick loop until ctx is done or Stop is called. Runs
// started by the loop receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.loopDone != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.loopCancel = cancel
	s.loopDone = make(chan struct{})
	s.runCtx = ctx
	done := s.loopDone
	jobs := len(s.order)
	s.mu.Unlock()

	s.logger.Info("Scheduler started", "jobs", jobs, "tick_interval", s.interval)
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Tick(s.now())
			}
		}
	}()
}

// Stop halts the tick loop and waits for in-flight runs to finish. Runs
// cannot be started until Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.loopCancel, s.loopDone = nil, nil
	s.stopping++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.wg.Wait()

	s.mu.Lock()
	s.stopping--
	s.mu.Unlock()
	s.logger.Info("Scheduler stopped")
}

// Wait blocks until no run started so far is in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
