package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// positionRepo implements PlaybackPositionRepository using GORM.
type positionRepo struct {
	db *gorm.DB
}

// NewPlaybackPositionRepository creates a new PlaybackPositionRepository.
func NewPlaybackPositionRepository(db *gorm.DB) *positionRepo {
	return &positionRepo{db: db}
}

// GetByChannelID retrieves the position row for a channel.
func (r *positionRepo) GetByChannelID(ctx context.Context, channelID models.ULID) (*models.ChannelPlaybackPosition, error) {
	var position models.ChannelPlaybackPosition
	if err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&position).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting playback position: %w", err)
	}
	return &position, nil
}

// GetOrCreate retrieves the position row for a channel, creating it with
// the given anchor when absent.
func (r *positionRepo) GetOrCreate(ctx context.Context, channelID models.ULID, anchor time.Time) (*models.ChannelPlaybackPosition, error) {
	position, err := r.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if position != nil {
		return position, nil
	}

	position = &models.ChannelPlaybackPosition{
		ChannelID:        channelID,
		PlayoutStartTime: anchor.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		// Lost a create race with another broadcaster start.
		existing, getErr := r.GetByChannelID(ctx, channelID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("creating playback position: %w", err)
	}
	return position, nil
}

// Save persists the position row.
func (r *positionRepo) Save(ctx context.Context, position *models.ChannelPlaybackPosition) error {
	if err := r.db.WithContext(ctx).Save(position).Error; err != nil {
		return fmt.Errorf("saving playback position: %w", err)
	}
	return nil
}

// UpdateProgress updates the resume cursor without touching the anchor.
func (r *positionRepo) UpdateProgress(ctx context.Context, channelID models.ULID, itemIndex int, mediaID models.ULID, watched int64) error {
	result := r.db.WithContext(ctx).Model(&models.ChannelPlaybackPosition{}).
		Where("channel_id = ?", channelID).
		UpdateColumns(map[string]interface{}{
			"last_item_index":      itemIndex,
			"last_item_media_id":   mediaID,
			"last_position_update": time.Now().UTC(),
			"total_items_watched":  watched,
		})
	if result.Error != nil {
		return fmt.Errorf("updating playback progress: %w", result.Error)
	}
	return nil
}

// Delete deletes the position row for a channel.
func (r *positionRepo) Delete(ctx context.Context, channelID models.ULID) error {
	if err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&models.ChannelPlaybackPosition{}).Error; err != nil {
		return fmt.Errorf("deleting playback position: %w", err)
	}
	return nil
}

// DeleteOrphaned deletes position rows whose channel no longer exists.
func (r *positionRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("channel_id NOT IN (?)", r.db.Model(&models.Channel{}).Select("id")).
		Delete(&models.ChannelPlaybackPosition{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting orphaned playback positions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure positionRepo implements PlaybackPositionRepository at compile time.
var _ PlaybackPositionRepository = (*positionRepo)(nil)
