package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/models"
)

type mockGuide struct {
	size  int64
	err   error
	calls int
}

func (m *mockGuide) Rebuild(context.Context) (int64, error) {
	m.calls++
	return m.size, m.err
}

type mockBackups struct {
	path      string
	createErr error
	pruned    int
	pruneErr  error
}

func (m *mockBackups) CreateBackup(context.Context) (string, error) {
	return m.path, m.createErr
}

func (m *mockBackups) Prune(context.Context) (int, error) {
	return m.pruned, m.pruneErr
}

type mockSweeper struct {
	flushed int
	removed int64
	err     error
}

func (m *mockSweeper) SweepPositions(context.Context) (int, int64, error) {
	return m.flushed, m.removed, m.err
}

type mockReloader struct {
	numbers []string
	err     error
}

func (m *mockReloader) Reload(_ context.Context, number string) error {
	m.numbers = append(m.numbers, number)
	return m.err
}

func TestEPGBuildHandler(t *testing.T) {
	guide := &mockGuide{size: 4096}
	h := NewEPGBuildHandler(guide)

	result, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeEPGBuild})
	require.NoError(t, err)
	assert.Contains(t, result, "4096 bytes")
	assert.Equal(t, 1, guide.calls)
}

func TestEPGBuildHandlerError(t *testing.T) {
	h := NewEPGBuildHandler(&mockGuide{err: fmt.Errorf("planner broke")})

	_, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeEPGBuild})
	assert.ErrorContains(t, err, "planner broke")
}

func TestBackupHandler(t *testing.T) {
	h := NewBackupHandler(&mockBackups{path: "backups/streamtv-2024-03-01.tar.gz", pruned: 2})

	result, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeBackup})
	require.NoError(t, err)
	assert.Contains(t, result, "streamtv-2024-03-01.tar.gz")
	assert.Contains(t, result, "pruned 2")
}

func TestBackupHandlerPruneFailureIsNotFatal(t *testing.T) {
	h := NewBackupHandler(&mockBackups{
		path:     "backups/streamtv-2024-03-01.tar.gz",
		pruneErr: fmt.Errorf("directory vanished"),
	})

	result, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeBackup})
	require.NoError(t, err, "the archive was written; retention can wait")
	assert.Contains(t, result, "pruned 0")
}

func TestBackupHandlerCreateError(t *testing.T) {
	h := NewBackupHandler(&mockBackups{createErr: fmt.Errorf("disk full")})

	_, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeBackup})
	assert.ErrorContains(t, err, "disk full")
}

func TestPositionSweepHandler(t *testing.T) {
	h := NewPositionSweepHandler(&mockSweeper{flushed: 4, removed: 2})

	result, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypePositionSweep})
	require.NoError(t, err)
	assert.Contains(t, result, "flushed 4")
	assert.Contains(t, result, "removed 2")
}

func TestScheduleReloadHandler(t *testing.T) {
	reloader := &mockReloader{}
	guide := &mockGuide{}
	h := NewScheduleReloadHandler(reloader).WithGuide(guide)

	job := &models.Job{Type: models.JobTypeScheduleReload, TargetName: "42"}
	result, err := h.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, reloader.numbers)
	assert.Equal(t, 1, guide.calls, "the guide follows the new schedule")
	assert.Contains(t, result, "channel 42")
}

func TestScheduleReloadHandlerMissingTarget(t *testing.T) {
	h := NewScheduleReloadHandler(&mockReloader{})

	_, err := h.Execute(context.Background(), &models.Job{Type: models.JobTypeScheduleReload})
	assert.ErrorContains(t, err, "without a channel number")
}

func TestScheduleReloadHandlerGuideFailureIsNotFatal(t *testing.T) {
	reloader := &mockReloader{}
	h := NewScheduleReloadHandler(reloader).
		WithGuide(&mockGuide{err: fmt.Errorf("storage gone")})

	job := &models.Job{Type: models.JobTypeScheduleReload, TargetName: "42"}
	_, err := h.Execute(context.Background(), job)
	require.NoError(t, err, "playout reloaded; the guide self-heals on TTL")
	assert.Equal(t, []string{"42"}, reloader.numbers)
}

func TestExecutorMarksCompleted(t *testing.T) {
	repo := newMockJobRepo()
	e := NewExecutor(repo)
	e.RegisterHandler(models.JobTypeEPGBuild, NewEPGBuildHandler(&mockGuide{size: 100}))

	job := &models.Job{Type: models.JobTypeEPGBuild, MaxAttempts: 3}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, e.Execute(context.Background(), job))
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Contains(t, job.Result, "100 bytes")
	assert.Empty(t, job.LockedBy)
}

func TestExecutorMarksFailedAndSchedulesRetry(t *testing.T) {
	repo := newMockJobRepo()
	e := NewExecutor(repo)
	e.RegisterHandler(models.JobTypeEPGBuild, NewEPGBuildHandler(&mockGuide{err: fmt.Errorf("boom")}))

	job := &models.Job{Type: models.JobTypeEPGBuild, MaxAttempts: 3, AttemptCount: 1}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, e.Execute(context.Background(), job))
	assert.Equal(t, models.JobStatusScheduled, job.Status, "retryable failures go back to scheduled")
	assert.Equal(t, "boom", job.LastError)
	require.NotNil(t, job.NextRunAt)
}

func TestExecutorExhaustedRetriesStayFailed(t *testing.T) {
	repo := newMockJobRepo()
	e := NewExecutor(repo)
	e.RegisterHandler(models.JobTypeEPGBuild, NewEPGBuildHandler(&mockGuide{err: fmt.Errorf("boom")}))

	job := &models.Job{Type: models.JobTypeEPGBuild, MaxAttempts: 2, AttemptCount: 2}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, e.Execute(context.Background(), job))
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestExecutorUnknownJobType(t *testing.T) {
	e := NewExecutor(newMockJobRepo())

	err := e.Execute(context.Background(), &models.Job{Type: "mystery"})
	assert.ErrorContains(t, err, "no handler registered")
}
