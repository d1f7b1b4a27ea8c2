package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"otp-gateway/internal/syncjob"
)

// Job is the periodic rotation sync
type Job interface {
	Run(ctx context.Context) (syncjob.Result, error)
}

// Status is a snapshot of the scheduler state
type Status struct {
	Running    bool
	Interval   time.Duration
	NextRun    time.Time
	LastRun    time.Time
	LastResult syncjob.Result
	LastError  string
}

// Scheduler runs the rotation sync job periodically
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	interval  time.Duration
	job       Job
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex

	// runMu serializes scheduled and manual runs
	runMu      sync.Mutex
	lastRun    time.Time
	lastResult syncjob.Result
	lastErr    error
}

// NewScheduler creates a scheduler running job every intervalMinutes
func NewScheduler(intervalMinutes int, job Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(),
		interval: time.Duration(intervalMinutes) * time.Minute,
		job:      job,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("sync interval is not configured")
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %s", s.interval)
	return nil
}

// Stop stops the scheduler and waits for a scheduled run in progress
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	ctx := s.cron.Stop()
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) runScheduled() {
	if !s.IsRunning() {
		logrus.Info("Scheduler not running, skipping sync cycle")
		return
	}
	if _, err := s.RunOnce(s.ctx); err != nil {
		logrus.Errorf("Scheduled rotation sync failed: %v", err)
	}
}

// Trigger starts a run in the background, bounded by timeout. Wait blocks until it ends.
func (s *Scheduler) Trigger(timeout time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			logrus.Errorf("Manual rotation sync failed: %v", err)
		}
	}()
}

// RunOnce runs the sync job now and records its outcome.
// Concurrent calls wait for the run in progress.
func (s *Scheduler) RunOnce(ctx context.Context) (syncjob.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	logrus.Info("Starting rotation sync cycle")
	start := time.Now()

	res, err := s.job.Run(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastResult = res
	s.lastErr = err
	s.mu.Unlock()

	logrus.Infof("Rotation sync cycle completed in %v", time.Since(start))
	return res, err
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the start time of the last run, scheduled or manual
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() Status {
	next := s.GetNextRun()

	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Running:    s.isRunning,
		Interval:   s.interval,
		NextRun:    next,
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Wait waits for runs started by Trigger to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
