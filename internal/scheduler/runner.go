package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// RunnerConfig tunes the worker pool. Zero fields keep their defaults,
// except CleanupEnable which is taken as given.
type RunnerConfig struct {
	// WorkerCount is the number of concurrent job workers.
	WorkerCount int

	// PollInterval is how long an idle worker sleeps between acquire
	// attempts.
	PollInterval time.Duration

	// LockTimeout is how long a running job may hold its lock before
	// stale recovery fails it. Covers workers that crashed mid-job.
	LockTimeout time.Duration

	// WorkerID prefixes the per-worker lock owner names.
	WorkerID string

	// JobTimeout bounds a single job execution.
	JobTimeout time.Duration

	// CleanupAge is the retention for finished job rows.
	CleanupAge time.Duration

	// CleanupEnable turns the hourly finished-job sweep on.
	CleanupEnable bool
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   2,
		PollInterval:  5 * time.Second,
		LockTimeout:   30 * time.Minute,
		WorkerID:      fmt.Sprintf("worker-%d", time.Now().UnixNano()),
		JobTimeout:    time.Hour,
		CleanupAge:    7 * 24 * time.Hour,
		CleanupEnable: true,
	}
}

// Runner drives a pool of workers that acquire queued jobs and hand
// them to the Executor. Locking happens in the repository, so several
// runners can share one database.
type Runner struct {
	mu sync.RWMutex

	jobRepo  repository.JobRepository
	executor *Executor
	logger   *slog.Logger
	cfg      RunnerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(jobRepo repository.JobRepository, executor *Executor) *Runner {
	return &Runner{
		jobRepo:  jobRepo,
		executor: executor,
		logger:   slog.Default(),
		cfg:      DefaultRunnerConfig(),
	}
}

func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// WithConfig overrides defaults with the non-zero fields of config.
func (r *Runner) WithConfig(config RunnerConfig) *Runner {
	if config.WorkerCount > 0 {
		r.cfg.WorkerCount = config.WorkerCount
	}
	if config.PollInterval > 0 {
		r.cfg.PollInterval = config.PollInterval
	}
	if config.LockTimeout > 0 {
		r.cfg.LockTimeout = config.LockTimeout
	}
	if config.WorkerID != "" {
		r.cfg.WorkerID = config.WorkerID
	}
	if config.JobTimeout > 0 {
		r.cfg.JobTimeout = config.JobTimeout
	}
	if config.CleanupAge > 0 {
		r.cfg.CleanupAge = config.CleanupAge
	}
	r.cfg.CleanupEnable = config.CleanupEnable
	return r
}

// Start launches the workers plus the cleanup and stale-recovery
// loops. Starting an already-started runner is an error.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return fmt.Errorf("runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.cfg.WorkerCount; i++ {
		name := fmt.Sprintf("%s-%d", r.cfg.WorkerID, i)
		r.wg.Add(1)
		go r.worker(name)
	}

	if r.cfg.CleanupEnable {
		r.wg.Add(1)
		go r.loop(time.Hour, r.sweepFinished)
	}
	r.wg.Add(1)
	go r.loop(5*time.Minute, r.recoverStale)

	r.logger.Info("job runner started",
		slog.Int("workers", r.cfg.WorkerCount),
		slog.Duration("poll_interval", r.cfg.PollInterval),
		slog.String("worker_id", r.cfg.WorkerID))

	return nil
}

// Stop cancels all workers and blocks until they return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	r.ctx = nil
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Info("job runner stopped")
}

var errNoJobs = errors.New("no jobs available")

func (r *Runner) worker(name string) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		err := r.runOne(name)
		if err == nil {
			continue
		}
		if !errors.Is(err, errNoJobs) {
			r.logger.Error("job failed",
				slog.String("worker", name),
				slog.Any("error", err))
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// runOne acquires a single job and executes it under the job timeout.
func (r *Runner) runOne(name string) error {
	job, err := r.jobRepo.AcquireJob(r.ctx, name)
	if err != nil {
		return fmt.Errorf("acquiring job: %w", err)
	}
	if job == nil {
		return errNoJobs
	}

	r.logger.Debug("acquired job",
		slog.String("worker", name),
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(job.Type)))

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JobTimeout)
	defer cancel()

	if err := r.executor.Execute(ctx, job); err != nil {
		return fmt.Errorf("executing job: %w", err)
	}
	return nil
}

// loop runs fn on a ticker until the runner stops.
func (r *Runner) loop(interval time.Duration, fn func()) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (r *Runner) sweepFinished() {
	cutoff := time.Now().Add(-r.cfg.CleanupAge)
	deleted, err := r.jobRepo.DeleteCompleted(r.ctx, cutoff)
	if err != nil {
		r.logger.Error("job cleanup failed", slog.Any("error", err))
		return
	}
	if deleted > 0 {
		r.logger.Info("deleted finished jobs", slog.Int64("count", deleted))
	}
}

// recoverStale fails running jobs whose lock outlived LockTimeout and
// reschedules the ones with retries left.
func (r *Runner) recoverStale() {
	running, err := r.jobRepo.GetByStatus(r.ctx, models.JobStatusRunning)
	if err != nil {
		r.logger.Error("stale job scan failed", slog.Any("error", err))
		return
	}

	cutoff := time.Now().Add(-r.cfg.LockTimeout)
	for _, job := range running {
		if job.LockedAt == nil || !job.LockedAt.Before(cutoff) {
			continue
		}

		r.logger.Warn("recovering stale job",
			slog.String("job_id", job.ID.String()),
			slog.String("locked_by", job.LockedBy),
			slog.Time("locked_at", *job.LockedAt))

		job.MarkFailed(fmt.Errorf("job stale: locked since %s", job.LockedAt.Format(time.RFC3339)))
		if job.CanRetry() {
			job.ScheduleRetry()
		}
		if err := r.jobRepo.Update(r.ctx, job); err != nil {
			r.logger.Error("stale job update failed",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", err))
		}
	}
}
