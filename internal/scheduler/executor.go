package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// JobHandler defines the interface for handling specific job types.
type JobHandler interface {
	// Execute runs the job and returns a result string or error.
	Execute(ctx context.Context, job *models.Job) (string, error)
}

// GuideRebuilder re-renders the cached XMLTV guide.
type GuideRebuilder interface {
	Rebuild(ctx context.Context) (int64, error)
}

// BackupService produces backup archives and prunes old ones.
type BackupService interface {
	// CreateBackup writes a new archive and returns its path.
	CreateBackup(ctx context.Context) (string, error)
	// Prune removes archives beyond the retention count.
	Prune(ctx context.Context) (int, error)
}

// PositionSweeper flushes live playout cursors and removes stale rows.
type PositionSweeper interface {
	SweepPositions(ctx context.Context) (flushed int, removed int64, err error)
}

// ScheduleReloader rebuilds a channel's playout after its schedule file
// changed on disk.
type ScheduleReloader interface {
	Reload(ctx context.Context, number string) error
}

// EPGBuildHandler handles guide rebuild jobs.
type EPGBuildHandler struct {
	guide GuideRebuilder
}

// NewEPGBuildHandler creates a handler for guide rebuild jobs.
func NewEPGBuildHandler(guide GuideRebuilder) *EPGBuildHandler {
	return &EPGBuildHandler{guide: guide}
}

// Execute runs a guide rebuild job.
func (h *EPGBuildHandler) Execute(ctx context.Context, _ *models.Job) (string, error) {
	size, err := h.guide.Rebuild(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rebuilt guide cache (%d bytes)", size), nil
}

// BackupHandler handles backup jobs.
type BackupHandler struct {
	backups BackupService
	logger  *slog.Logger
}

// NewBackupHandler creates a handler for backup jobs.
func NewBackupHandler(backups BackupService) *BackupHandler {
	return &BackupHandler{backups: backups, logger: slog.Default()}
}

// WithLogger sets the logger.
func (h *BackupHandler) WithLogger(logger *slog.Logger) *BackupHandler {
	h.logger = logger
	return h
}

// Execute runs a backup job: write the archive, then apply retention.
func (h *BackupHandler) Execute(ctx context.Context, _ *models.Job) (string, error) {
	path, err := h.backups.CreateBackup(ctx)
	if err != nil {
		return "", err
	}

	pruned, err := h.backups.Prune(ctx)
	if err != nil {
		// The archive was written; failed retention is not worth a retry.
		h.logger.Warn("pruning old backups failed", slog.Any("error", err))
	}

	return fmt.Sprintf("wrote %s, pruned %d old backups", path, pruned), nil
}

// PositionSweepHandler handles playout position sweep jobs.
type PositionSweepHandler struct {
	sweeper PositionSweeper
}

// NewPositionSweepHandler creates a handler for position sweep jobs.
func NewPositionSweepHandler(sweeper PositionSweeper) *PositionSweepHandler {
	return &PositionSweepHandler{sweeper: sweeper}
}

// Execute runs a position sweep job.
func (h *PositionSweepHandler) Execute(ctx context.Context, _ *models.Job) (string, error) {
	flushed, removed, err := h.sweeper.SweepPositions(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("flushed %d live positions, removed %d orphaned rows", flushed, removed), nil
}

// ScheduleReloadHandler handles schedule reload jobs. The job's target
// name carries the channel number whose YAML file changed.
type ScheduleReloadHandler struct {
	reloader ScheduleReloader
	guide    GuideRebuilder
	logger   *slog.Logger
}

// NewScheduleReloadHandler creates a handler for schedule reload jobs.
func NewScheduleReloadHandler(reloader ScheduleReloader) *ScheduleReloadHandler {
	return &ScheduleReloadHandler{reloader: reloader, logger: slog.Default()}
}

// WithGuide also rebuilds the guide cache after a reload, so programme
// times follow the new schedule.
func (h *ScheduleReloadHandler) WithGuide(guide GuideRebuilder) *ScheduleReloadHandler {
	h.guide = guide
	return h
}

// WithLogger sets the logger.
func (h *ScheduleReloadHandler) WithLogger(logger *slog.Logger) *ScheduleReloadHandler {
	h.logger = logger
	return h
}

// Execute runs a schedule reload job.
func (h *ScheduleReloadHandler) Execute(ctx context.Context, job *models.Job) (string, error) {
	number := job.TargetName
	if number == "" {
		return "", fmt.Errorf("schedule reload job without a channel number")
	}

	if err := h.reloader.Reload(ctx, number); err != nil {
		return "", err
	}

	if h.guide != nil {
		if _, err := h.guide.Rebuild(ctx); err != nil {
			// The playout already reloaded; stale guide self-heals on TTL.
			h.logger.Warn("rebuilding guide after schedule reload failed",
				slog.String("channel", number),
				slog.Any("error", err))
		}
	}

	return fmt.Sprintf("reloaded schedule for channel %s", number), nil
}

// Executor dispatches jobs to the appropriate handlers.
type Executor struct {
	handlers map[models.JobType]JobHandler
	jobRepo  repository.JobRepository
	logger   *slog.Logger
}

// NewExecutor creates a new job executor.
func NewExecutor(jobRepo repository.JobRepository) *Executor {
	return &Executor{
		handlers: make(map[models.JobType]JobHandler),
		jobRepo:  jobRepo,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// RegisterHandler registers a handler for a job type.
func (e *Executor) RegisterHandler(jobType models.JobType, handler JobHandler) {
	e.handlers[jobType] = handler
}

// Execute runs a job and updates its status.
func (e *Executor) Execute(ctx context.Context, job *models.Job) error {
	handler, ok := e.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler registered for job type: %s", job.Type)
	}

	e.logger.Info("executing job",
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(job.Type)))

	result, err := handler.Execute(ctx, job)

	if err != nil {
		e.logger.Error("job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("type", string(job.Type)),
			slog.Any("error", err))

		job.MarkFailed(err)

		if job.CanRetry() {
			job.ScheduleRetry()
			e.logger.Info("job scheduled for retry",
				slog.String("job_id", job.ID.String()),
				slog.Int("attempt", job.AttemptCount),
				slog.Time("next_run", job.NextRunAt.UTC()))
		}
	} else {
		e.logger.Info("job completed",
			slog.String("job_id", job.ID.String()),
			slog.String("type", string(job.Type)),
			slog.String("result", result))

		job.MarkCompleted(result)
	}

	if err := e.jobRepo.Update(ctx, job); err != nil {
		e.logger.Error("failed to update job status",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		return fmt.Errorf("updating job status: %w", err)
	}

	return nil
}
