// Package scheduler provides background job scheduling and execution for
// streamtv. Recurring jobs (guide rebuilds, backups, position sweeps) are
// driven by cron expressions; one-off jobs (schedule reloads) are enqueued
// on demand. All jobs pass through the jobs table so state survives
// restarts and concurrent workers stay coordinated.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// entry is one recurring job registration.
type entry struct {
	jobType models.JobType
	expr    string
}

// Scheduler turns cron expressions into rows in the jobs table. It never
// executes anything itself; the Runner's workers pick the rows up.
type Scheduler struct {
	mu sync.RWMutex

	jobRepo repository.JobRepository
	logger  *slog.Logger

	parser  cron.Parser
	entries []entry

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncInterval      time.Duration
	dedupeGracePeriod time.Duration
}

// Config holds scheduler tuning knobs.
type Config struct {
	// SyncInterval is how often to check which cron entries are due.
	// Default: 1 minute
	SyncInterval time.Duration

	// DedupeGracePeriod is the window for job deduplication. A pending
	// job of the same type suppresses a new one.
	// Default: 5 minutes
	DedupeGracePeriod time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		SyncInterval:      time.Minute,
		DedupeGracePeriod: 5 * time.Minute,
	}
}

// NewScheduler creates a scheduler with default tuning. Cron expressions
// use six fields with a leading seconds column.
func NewScheduler(jobRepo repository.JobRepository) *Scheduler {
	config := DefaultConfig()
	return &Scheduler{
		jobRepo:           jobRepo,
		logger:            slog.Default(),
		parser:            cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		syncInterval:      config.SyncInterval,
		dedupeGracePeriod: config.DedupeGracePeriod,
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the scheduler.
func (s *Scheduler) WithConfig(config Config) *Scheduler {
	if config.SyncInterval > 0 {
		s.syncInterval = config.SyncInterval
	}
	if config.DedupeGracePeriod > 0 {
		s.dedupeGracePeriod = config.DedupeGracePeriod
	}
	return s
}

// AddRecurring registers a recurring job. An empty expression disables the
// entry; an invalid one is an error so misconfiguration fails at startup,
// not silently at 4 AM.
func (s *Scheduler) AddRecurring(jobType models.JobType, cronExpr string) error {
	if cronExpr == "" {
		return nil
	}
	if _, err := s.parser.Parse(cronExpr); err != nil {
		return fmt.Errorf("cron expression %q for %s: %w", cronExpr, jobType, err)
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry{jobType: jobType, expr: cronExpr})
	s.mu.Unlock()
	return nil
}

// Start begins the scheduler's background sync loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.syncLoop()

	s.logger.Info("scheduler started",
		slog.Int("recurring_jobs", len(s.entries)),
		slog.Duration("sync_interval", s.syncInterval))

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// syncLoop periodically creates jobs for due cron entries.
func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	// Catch anything due in the window that straddled startup.
	s.syncEntries(s.ctx)

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.syncEntries(s.ctx)
		}
	}
}

// syncEntries enqueues a job for every due entry.
func (s *Scheduler) syncEntries(ctx context.Context) {
	s.mu.RLock()
	entries := append([]entry(nil), s.entries...)
	s.mu.RUnlock()

	for _, e := range entries {
		if !s.isDue(e.expr) {
			continue
		}
		if err := s.createJobIfNotDuplicate(ctx, e.jobType, e.expr); err != nil {
			s.logger.Error("creating scheduled job failed",
				slog.String("type", string(e.jobType)),
				slog.Any("error", err))
		}
	}
}

// isDue checks whether a cron schedule fires within the current sync
// window.
func (s *Scheduler) isDue(cronExpr string) bool {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		s.logger.Warn("invalid cron expression", slog.String("cron", cronExpr), slog.Any("error", err))
		return false
	}

	now := time.Now()
	next := schedule.Next(now.Add(-s.syncInterval))
	if next.IsZero() {
		// The expression never fires again.
		return false
	}
	return !next.After(now)
}

// createJobIfNotDuplicate creates a job unless one of the same type is
// already pending or running.
func (s *Scheduler) createJobIfNotDuplicate(ctx context.Context, jobType models.JobType, cronSchedule string) error {
	existing, err := s.jobRepo.FindDuplicatePending(ctx, jobType, models.ULID{})
	if err != nil {
		return fmt.Errorf("checking for duplicate job: %w", err)
	}
	if existing != nil {
		s.logger.Debug("skipping duplicate job", slog.String("type", string(jobType)))
		return nil
	}

	job := &models.Job{
		Type:         jobType,
		Status:       models.JobStatusPending,
		CronSchedule: cronSchedule,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("creating job: %w", err)
	}

	s.logger.Info("created scheduled job",
		slog.String("type", string(jobType)),
		slog.String("job_id", job.ID.String()))
	return nil
}

// ScheduleImmediate creates a one-off job for the given target. Returns
// the existing job when a duplicate is already pending, which doubles as
// debounce for bursty callers like the schedule file watcher.
func (s *Scheduler) ScheduleImmediate(ctx context.Context, jobType models.JobType, targetID models.ULID, targetName string) (*models.Job, error) {
	existing, err := s.jobRepo.FindDuplicatePending(ctx, jobType, targetID)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate job: %w", err)
	}
	if existing != nil {
		s.logger.Debug("returning existing pending job",
			slog.String("type", string(jobType)),
			slog.String("job_id", existing.ID.String()))
		return existing, nil
	}

	job := &models.Job{
		Type:       jobType,
		TargetID:   targetID,
		TargetName: targetName,
		Status:     models.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating immediate job: %w", err)
	}

	s.logger.Info("created immediate job",
		slog.String("type", string(jobType)),
		slog.String("target", targetName),
		slog.String("job_id", job.ID.String()))
	return job, nil
}

// ParseCron validates a cron expression and returns the next run time.
func (s *Scheduler) ParseCron(expr string) (time.Time, error) {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// ValidateCron validates a cron expression.
func (s *Scheduler) ValidateCron(expr string) error {
	_, err := s.parser.Parse(expr)
	return err
}
