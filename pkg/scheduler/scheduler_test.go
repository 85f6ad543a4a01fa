package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 30, 0, time.UTC)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memoryStore records what the scheduler persists.
type memoryStore struct {
	mu    sync.Mutex
	jobs  map[string]models.CrawlJob
	execs []models.JobExecution
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: map[string]models.CrawlJob{}}
}

func (m *memoryStore) SaveJob(_ context.Context, j *models.CrawlJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = *j
	return nil
}

func (m *memoryStore) RecordExecution(_ context.Context, e *models.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, *e)
	return nil
}

// blockingRunner blocks every run until release is closed and tracks the
// peak number of concurrent runs.
type blockingRunner struct {
	release  chan struct{}
	started  chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
	runs     atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 100)}
}

func (b *blockingRunner) Run(ctx context.Context, _ models.CrawlJob) error {
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	b.runs.Add(1)
	b.started <- struct{}{}
	<-b.release
	return nil
}

func job(id, schedule string, maxRetries int) models.CrawlJob {
	return models.CrawlJob{ID: id, Name: id, Type: models.JobTypeSEO, Schedule: schedule, IsActive: true, MaxRetries: maxRetries}
}

func TestLongRunningJobSkipsOverlappingTick(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := New(nil, nil, WithClock(clock.Now))
	runner := newBlockingRunner()

	if err := s.Register(job("sweep", "* * * * *", 3), runner.Run); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// first tick: due, starts; the run takes "90 seconds" (until released)
	first := t0.Truncate(time.Minute).Add(time.Minute)
	if started := s.Tick(first); len(started) != 1 {
		t.Fatalf("first Tick() started %v, want [sweep]", started)
	}
	<-runner.started

	// second tick one minute later: due again but still running
	if started := s.Tick(first.Add(time.Minute)); len(started) != 0 {
		t.Fatalf("second Tick() started %v, want none", started)
	}

	close(runner.release)
	s.Wait()

	m := s.Metrics()
	if m.Executions != 1 || runner.runs.Load() != 1 {
		t.Errorf("Executions = %d, runs = %d, want 1", m.Executions, runner.runs.Load())
	}
	if m.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", m.Skipped)
	}

	// the skipped tick was not queued: nothing is due until the next minute
	if started := s.Tick(first.Add(time.Minute + 30*time.Second)); len(started) != 0 {
		t.Errorf("Tick() between slots started %v", started)
	}
	if next, _ := s.NextRun("sweep"); !next.Equal(first.Add(2 * time.Minute)) {
		t.Errorf("NextRun() = %v, want %v", next, first.Add(2*time.Minute))
	}
}

func TestRapidTriggersRunAtMostOnce(t *testing.T) {
	s := New(nil, nil)
	runner := newBlockingRunner()
	if err := s.Register(job("ingest", "@every 1h", 0), runner.Run); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TriggerNow("ingest")
			if err != nil {
				t.Errorf("TriggerNow() error: %v", err)
			}
			if ok {
				started.Add(1)
			}
			if n := len(s.Running()); n > 1 {
				t.Errorf("Running() has %d entries", n)
			}
		}()
	}
	wg.Wait()
	<-runner.started

	if started.Load() != 1 {
		t.Errorf("TriggerNow() started %d runs, want 1", started.Load())
	}
	close(runner.release)
	s.Wait()

	if runner.peak.Load() != 1 {
		t.Errorf("peak concurrent runs = %d, want 1", runner.peak.Load())
	}
	if m := s.Metrics(); m.Skipped != 49 || len(m.Running) != 0 {
		t.Errorf("Metrics() = %+v, want 49 skipped and nothing running", m)
	}
}

func TestRetryPolicy(t *testing.T) {
	store := newMemoryStore()
	s := New(store, nil)

	var fail atomic.Bool
	fail.Store(true)
	run := func(context.Context, models.CrawlJob) error {
		if fail.Load() {
			return errors.New("upstream unavailable")
		}
		return nil
	}
	if err := s.Register(job("news", "@every 1h", 2), run); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	trigger := func() {
		t.Helper()
		if ok, err := s.TriggerNow("news"); !ok || err != nil {
			t.Fatalf("TriggerNow() = %v, %v", ok, err)
		}
		s.Wait()
	}

	steps := []struct {
		wantAttempts int
		wantActive   bool
	}{
		{1, true},
		{2, true},
		{2, false}, // third failure would exceed max retries
	}
	for i, step := range steps {
		trigger()
		j, _ := s.Job("news")
		if j.RetryAttempts != step.wantAttempts || j.IsActive != step.wantActive {
			t.Fatalf("after failure %d: attempts=%d active=%v, want %d %v",
				i+1, j.RetryAttempts, j.IsActive, step.wantAttempts, step.wantActive)
		}
		if j.RetryAttempts < 0 || j.RetryAttempts > j.MaxRetries {
			t.Fatalf("RetryAttempts %d outside [0, %d]", j.RetryAttempts, j.MaxRetries)
		}
	}

	if _, err := s.TriggerNow("news"); !errors.Is(err, ErrJobInactive) {
		t.Errorf("TriggerNow() on inactive job error = %v, want ErrJobInactive", err)
	}
	if started := s.Tick(t0.Add(48 * time.Hour)); len(started) != 0 {
		t.Errorf("Tick() started inactive job: %v", started)
	}

	if err := s.Reactivate("news"); err != nil {
		t.Fatalf("Reactivate() error: %v", err)
	}
	j, _ := s.Job("news")
	if !j.IsActive || j.RetryAttempts != 0 {
		t.Errorf("after Reactivate: %+v", j)
	}

	trigger() // fails once more
	fail.Store(false)
	trigger()
	j, _ = s.Job("news")
	if j.RetryAttempts != 0 || !j.IsActive {
		t.Errorf("after success: attempts=%d active=%v, want 0 true", j.RetryAttempts, j.IsActive)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.execs) != 5 {
		t.Errorf("recorded %d executions, want 5", len(store.execs))
	}
	if last := store.execs[len(store.execs)-1]; last.Status != models.ExecutionSucceeded || last.Attempt != 1 || last.ID == "" {
		t.Errorf("last execution = %+v", last)
	}
	if saved := store.jobs["news"]; saved.RetryAttempts != 0 || !saved.IsActive {
		t.Errorf("persisted job = %+v", saved)
	}
}

func TestPanickingRunCountsAsFailure(t *testing.T) {
	s := New(nil, nil)
	err := s.Register(job("boom", "@daily", 1), func(context.Context, models.CrawlJob) error {
		panic("nil map")
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	s.TriggerNow("boom")
	s.Wait()

	m := s.Metrics()
	if m.Failures != 1 || m.Jobs["boom"].LastStatus != models.ExecutionFailed {
		t.Errorf("Metrics() = %+v, want one failure", m)
	}
	if len(m.Running) != 0 {
		t.Errorf("Running = %v after panic", m.Running)
	}
}

func TestRegisterInvalidSchedule(t *testing.T) {
	s := New(nil, nil)
	noop := func(context.Context, models.CrawlJob) error { return nil }

	err := s.Register(job("bad", "every tuesday-ish", 0), noop)
	var se *SchedulingError
	if !errors.As(err, &se) {
		t.Fatalf("Register() error = %v, want *SchedulingError", err)
	}
	if se.JobID != "bad" {
		t.Errorf("SchedulingError.JobID = %q", se.JobID)
	}
	if _, ok := s.Job("bad"); ok {
		t.Error("job with invalid schedule was registered")
	}

	if err := s.Register(job("ok", "*/5 * * * *", 0), noop); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := s.Register(job("ok", "@hourly", 0), noop); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateJob", err)
	}
	if _, err := s.TriggerNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("TriggerNow(missing) error = %v, want ErrUnknownJob", err)
	}
	if m := s.Metrics(); m.TotalJobs != 1 || m.ActiveJobs != 1 {
		t.Errorf("Metrics() = %+v, want 1 job", m)
	}
}

func TestStartStop(t *testing.T) {
	// every read of the clock advances one minute, so every tick is due
	var minutes atomic.Int64
	clock := func() time.Time {
		return t0.Add(time.Duration(minutes.Add(1)) * time.Minute)
	}
	s := New(nil, nil, WithClock(clock), WithTickInterval(5*time.Millisecond))

	var runs atomic.Int32
	if err := s.Register(job("health", "* * * * *", 0), func(context.Context, models.CrawlJob) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if runs.Load() == 0 {
		t.Fatal("no runs after Start()")
	}
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Error("jobs ran after Stop()")
	}
}

func TestTriggerRejectedWhileStopping(t *testing.T) {
	s := New(nil, nil, WithClock(func() time.Time { return t0 }))
	runner := newBlockingRunner()
	if err := s.Register(job("a", "@every 1h", 0), runner.Run); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := s.Register(job("b", "@every 1h", 0), func(context.Context, models.CrawlJob) error { return nil }); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if ok, err := s.TriggerNow("a"); !ok || err != nil {
		t.Fatalf("TriggerNow(a) = %v, %v", ok, err)
	}
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	for {
		s.mu.Lock()
		stopping := s.stopping > 0
		s.mu.Unlock()
		if stopping {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if ok, err := s.TriggerNow("b"); ok || !errors.Is(err, ErrStopping) {
		t.Errorf("TriggerNow(b) during Stop = %v, %v, want ErrStopping", ok, err)
	}
	if started := s.Tick(t0.Add(2 * time.Hour)); len(started) != 0 {
		t.Errorf("Tick() during Stop started %v", started)
	}

	close(runner.release)
	<-stopped

	if ok, err := s.TriggerNow("b"); !ok || err != nil {
		t.Errorf("TriggerNow(b) after Stop = %v, %v", ok, err)
	}
	s.Wait()
}

// gatedStore holds the first SaveJob until gate is closed.
type gatedStore struct {
	*memoryStore
	gate    chan struct{}
	blocked chan struct{}
	once    sync.Once
}

func (g *gatedStore) SaveJob(ctx context.Context, j *models.CrawlJob) error {
	g.once.Do(func() {
		close(g.blocked)
		<-g.gate
	})
	return g.memoryStore.SaveJob(ctx, j)
}

func TestPersistedStateFollowsLatestChange(t *testing.T) {
	store := &gatedStore{memoryStore: newMemoryStore(), gate: make(chan struct{}), blocked: make(chan struct{})}
	s := New(store, nil, WithClock(func() time.Time { return t0 }))
	if err := s.Register(job("a", "@every 1h", 0), func(context.Context, models.CrawlJob) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if ok, err := s.TriggerNow("a"); !ok || err != nil {
		t.Fatalf("TriggerNow() = %v, %v", ok, err)
	}
	// the failed run deactivated the job and is now saving that state
	<-store.blocked

	reactivated := make(chan error, 1)
	go func() { reactivated <- s.Reactivate("a") }()
	for {
		if j, _ := s.Job("a"); j.IsActive {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(store.gate)

	if err := <-reactivated; err != nil {
		t.Fatalf("Reactivate() error: %v", err)
	}
	s.Wait()

	store.mu.Lock()
	saved := store.jobs["a"]
	store.mu.Unlock()
	if !saved.IsActive || saved.RetryAttempts != 0 {
		t.Errorf("persisted job = %+v, want active with 0 attempts", saved)
	}
}
