// Package repository defines data access interfaces for streamtv entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/tgrayson/streamtv/internal/models"
)

// ChannelRepository defines operations for channel persistence.
type ChannelRepository interface {
	// Create creates a new channel.
	Create(ctx context.Context, channel *models.Channel) error
	// GetByID retrieves a channel by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, error)
	// GetByNumber retrieves a channel by its lineup number.
	GetByNumber(ctx context.Context, number string) (*models.Channel, error)
	// GetAll retrieves all channels ordered by number.
	GetAll(ctx context.Context) ([]*models.Channel, error)
	// GetEnabled retrieves all enabled channels ordered by number.
	GetEnabled(ctx context.Context) ([]*models.Channel, error)
	// Update updates an existing channel.
	Update(ctx context.Context, channel *models.Channel) error
	// Delete deletes a channel and its schedule and playback position.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the number of channels.
	Count(ctx context.Context) (int64, error)
}

// MediaItemRepository defines operations for media item persistence.
type MediaItemRepository interface {
	// Create creates a new media item.
	Create(ctx context.Context, item *models.MediaItem) error
	// CreateBatch creates multiple media items in a single batch.
	CreateBatch(ctx context.Context, items []*models.MediaItem) error
	// GetByID retrieves a media item by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.MediaItem, error)
	// GetByURL retrieves a media item by its canonical URL.
	GetByURL(ctx context.Context, url string) (*models.MediaItem, error)
	// GetAllPaginated retrieves media items with pagination.
	GetAllPaginated(ctx context.Context, offset, limit int) ([]*models.MediaItem, int64, error)
	// Search retrieves media items whose title matches the query.
	Search(ctx context.Context, query string, limit int) ([]*models.MediaItem, error)
	// Upsert creates the item or updates the existing row with the same URL.
	Upsert(ctx context.Context, item *models.MediaItem) error
	// Update updates an existing media item.
	Update(ctx context.Context, item *models.MediaItem) error
	// Delete deletes a media item. Returns models.ErrMediaItemReferenced
	// when the item is still a member of any collection.
	Delete(ctx context.Context, id models.ULID) error
}

// CollectionRepository defines operations for collection persistence.
type CollectionRepository interface {
	// Create creates a new collection.
	Create(ctx context.Context, collection *models.Collection) error
	// GetByID retrieves a collection by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Collection, error)
	// GetByName retrieves a collection by its unique name.
	GetByName(ctx context.Context, name string) (*models.Collection, error)
	// GetAll retrieves all collections.
	GetAll(ctx context.Context) ([]*models.Collection, error)
	// GetItems retrieves a collection's media items in position order.
	GetItems(ctx context.Context, collectionID models.ULID) ([]*models.MediaItem, error)
	// SetItems replaces a collection's membership with the given media
	// item IDs, positions assigned from slice order.
	SetItems(ctx context.Context, collectionID models.ULID, mediaItemIDs []models.ULID) error
	// AddItem appends a media item at the end of the collection.
	AddItem(ctx context.Context, collectionID, mediaItemID models.ULID) error
	// RemoveItem removes a media item from the collection.
	RemoveItem(ctx context.Context, collectionID, mediaItemID models.ULID) error
	// Update updates an existing collection.
	Update(ctx context.Context, collection *models.Collection) error
	// Delete deletes a collection and its membership rows. Member media
	// items are never deleted.
	Delete(ctx context.Context, id models.ULID) error
}

// ScheduleRepository defines operations for schedule persistence.
type ScheduleRepository interface {
	// Create creates a new schedule.
	Create(ctx context.Context, schedule *models.Schedule) error
	// GetByID retrieves a schedule by ID with its items preloaded.
	GetByID(ctx context.Context, id models.ULID) (*models.Schedule, error)
	// GetByChannelID retrieves the schedule for a channel with items preloaded.
	GetByChannelID(ctx context.Context, channelID models.ULID) (*models.Schedule, error)
	// GetAll retrieves all schedules.
	GetAll(ctx context.Context) ([]*models.Schedule, error)
	// Update updates a schedule. Returns models.ErrYAMLSourceReadOnly for
	// YAML-sourced schedules unless fromLoader is true.
	Update(ctx context.Context, schedule *models.Schedule, fromLoader bool) error
	// ReplaceItems replaces a schedule's items.
	ReplaceItems(ctx context.Context, scheduleID models.ULID, items []models.ScheduleItem) error
	// Delete deletes a schedule and its items.
	Delete(ctx context.Context, id models.ULID) error
}

// PlaybackPositionRepository defines operations for playout position persistence.
type PlaybackPositionRepository interface {
	// GetByChannelID retrieves the position row for a channel.
	GetByChannelID(ctx context.Context, channelID models.ULID) (*models.ChannelPlaybackPosition, error)
	// GetOrCreate retrieves the position row for a channel, creating it
	// with the given anchor when absent.
	GetOrCreate(ctx context.Context, channelID models.ULID, anchor time.Time) (*models.ChannelPlaybackPosition, error)
	// Save persists the position row.
	Save(ctx context.Context, position *models.ChannelPlaybackPosition) error
	// UpdateProgress updates the resume cursor without touching the anchor.
	UpdateProgress(ctx context.Context, channelID models.ULID, itemIndex int, mediaID models.ULID, watched int64) error
	// Delete deletes the position row for a channel.
	Delete(ctx context.Context, channelID models.ULID) error
	// DeleteOrphaned deletes position rows whose channel no longer exists.
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// FFmpegProfileRepository defines operations for transcode profile persistence.
type FFmpegProfileRepository interface {
	// Create creates a new profile.
	Create(ctx context.Context, profile *models.FFmpegProfile) error
	// GetByID retrieves a profile by ID with resolution/watermark preloaded.
	GetByID(ctx context.Context, id models.ULID) (*models.FFmpegProfile, error)
	// GetByName retrieves a profile by name.
	GetByName(ctx context.Context, name string) (*models.FFmpegProfile, error)
	// GetDefault retrieves the default profile, if any.
	GetDefault(ctx context.Context) (*models.FFmpegProfile, error)
	// GetAll retrieves all profiles.
	GetAll(ctx context.Context) ([]*models.FFmpegProfile, error)
	// Update updates an existing profile.
	Update(ctx context.Context, profile *models.FFmpegProfile) error
	// Delete deletes a profile by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// JobRepository defines operations for scheduler job persistence.
type JobRepository interface {
	// Create creates a new job.
	Create(ctx context.Context, job *models.Job) error
	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Job, error)
	// GetAll retrieves all jobs.
	GetAll(ctx context.Context) ([]*models.Job, error)
	// GetPending retrieves pending/scheduled jobs ready for execution.
	GetPending(ctx context.Context) ([]*models.Job, error)
	// GetByStatus retrieves jobs by status.
	GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	// GetByType retrieves jobs by type.
	GetByType(ctx context.Context, jobType models.JobType) ([]*models.Job, error)
	// AcquireJob atomically acquires a pending job for execution.
	AcquireJob(ctx context.Context, workerID string) (*models.Job, error)
	// ReleaseJob releases a job lock and returns it to pending.
	ReleaseJob(ctx context.Context, id models.ULID) error
	// FindDuplicatePending finds an existing pending/scheduled/running job
	// for the same type and target.
	FindDuplicatePending(ctx context.Context, jobType models.JobType, targetID models.ULID) (*models.Job, error)
	// Update updates an existing job.
	Update(ctx context.Context, job *models.Job) error
	// Delete deletes a job by ID.
	Delete(ctx context.Context, id models.ULID) error
	// DeleteCompleted deletes finished jobs older than the given time.
	DeleteCompleted(ctx context.Context, before time.Time) (int64, error)
}
