package models

import (
	"time"

	"gorm.io/gorm"
)

// JobType represents the type of job to execute.
type JobType string

const (
	// JobTypeEPGBuild regenerates the XMLTV guide data.
	JobTypeEPGBuild JobType = "epg_build"
	// JobTypeBackup produces a database backup archive.
	JobTypeBackup JobType = "backup"
	// JobTypePositionSweep persists in-memory playback positions.
	JobTypePositionSweep JobType = "position_sweep"
	// JobTypeScheduleReload re-parses YAML schedules from disk.
	JobTypeScheduleReload JobType = "schedule_reload"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be executed.
	JobStatusPending JobStatus = "pending"
	// JobStatusScheduled indicates the job is scheduled for future execution.
	JobStatusScheduled JobStatus = "scheduled"
	// JobStatusRunning indicates the job is currently executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled.
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a scheduled or immediate task execution record.
type Job struct {
	BaseModel

	// Type indicates what kind of job this is.
	Type JobType `gorm:"not null;size:50;index" json:"type"`

	// TargetID is the entity this job operates on (a channel for EPG
	// rebuilds, zero for global jobs). Used to deduplicate concurrent
	// requests for the same target.
	TargetID ULID `gorm:"type:varchar(26);index" json:"target_id,omitempty"`

	// TargetName is a human-readable name for the target.
	TargetName string `gorm:"size:255" json:"target_name,omitempty"`

	// Status indicates the current status of the job.
	Status JobStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// CronSchedule for recurring jobs. Empty string means one-off.
	CronSchedule string `gorm:"size:100" json:"cron_schedule,omitempty"`

	// NextRunAt is when the job should next execute; recalculated after
	// each run for recurring jobs.
	NextRunAt *time.Time `gorm:"index" json:"next_run_at,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMs is the execution duration in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`

	AttemptCount int `gorm:"default:0" json:"attempt_count"`
	MaxAttempts  int `gorm:"default:3" json:"max_attempts"`

	// BackoffSeconds is the initial retry backoff; doubles per attempt.
	BackoffSeconds int `gorm:"default:60" json:"backoff_seconds"`

	// LastError contains the error message from the last failed attempt.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`

	// Result contains optional result data (counts, output paths).
	Result string `gorm:"size:4096" json:"result,omitempty"`

	// Priority determines execution order (higher runs first).
	Priority int `gorm:"default:0;index" json:"priority"`

	// LockedBy is the worker ID that has locked this job for execution.
	LockedBy string `gorm:"size:100;index" json:"locked_by,omitempty"`

	// LockedAt is the timestamp when the job was locked.
	LockedAt *time.Time `json:"locked_at,omitempty"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// IsRecurring returns true if this is a recurring scheduled job.
func (j *Job) IsRecurring() bool {
	return j.CronSchedule != ""
}

// IsPending returns true if the job is waiting to run.
func (j *Job) IsPending() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusScheduled
}

// IsRunning returns true if the job is currently executing.
func (j *Job) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// IsFinished returns true if the job has completed, successfully or not.
func (j *Job) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.AttemptCount < j.MaxAttempts
}

// MarkRunning marks the job as running.
func (j *Job) MarkRunning(workerID string) {
	j.Status = JobStatusRunning
	now := Now()
	j.StartedAt = &now
	j.LockedBy = workerID
	j.LockedAt = &now
	j.AttemptCount++
	j.LastError = ""
}

// MarkCompleted marks the job as completed successfully.
func (j *Job) MarkCompleted(result string) {
	j.Status = JobStatusCompleted
	now := Now()
	j.CompletedAt = &now
	j.Result = result
	j.LastError = ""

	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}

	j.LockedBy = ""
	j.LockedAt = nil
}

// MarkFailed marks the job as failed with an error message.
func (j *Job) MarkFailed(err error) {
	j.Status = JobStatusFailed
	now := Now()
	j.CompletedAt = &now

	if err != nil {
		j.LastError = err.Error()
	}

	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}

	j.LockedBy = ""
	j.LockedAt = nil
}

// MarkCancelled marks the job as cancelled.
func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := Now()
	j.CompletedAt = &now
	j.LockedBy = ""
	j.LockedAt = nil
}

// ScheduleRetry moves a failed job back to scheduled with exponential
// backoff applied to NextRunAt.
func (j *Job) ScheduleRetry() {
	next := Now().Add(j.CalculateNextBackoff())
	j.NextRunAt = &next
	j.Status = JobStatusScheduled
	j.LockedBy = ""
	j.LockedAt = nil
}

// CalculateNextBackoff returns the backoff duration for the next retry.
// Exponential: base * 2^(attemptCount-1), capped at one hour.
func (j *Job) CalculateNextBackoff() time.Duration {
	if j.BackoffSeconds <= 0 {
		j.BackoffSeconds = 60
	}

	backoff := time.Duration(j.BackoffSeconds) * time.Second
	for i := 1; i < j.AttemptCount; i++ {
		backoff *= 2
		if backoff >= time.Hour {
			return time.Hour
		}
	}
	return backoff
}

// ValidJobTypes returns all recognized job types.
func ValidJobTypes() []JobType {
	return []JobType{JobTypeEPGBuild, JobTypeBackup, JobTypePositionSweep, JobTypeScheduleReload}
}

// BeforeCreate is a GORM hook that generates ULID.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	return j.BaseModel.BeforeCreate(tx)
}
