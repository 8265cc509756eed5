package repository

import (
	"context"
	"fmt"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// channelRepo implements ChannelRepository using GORM.
type channelRepo struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) *channelRepo {
	return &channelRepo{db: db}
}

// Create creates a new channel.
func (r *channelRepo) Create(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	return nil
}

// GetByID retrieves a channel by ID.
func (r *channelRepo) GetByID(ctx context.Context, id models.ULID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Preload("Profile").Where("id = ?", id).First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by ID: %w", err)
	}
	return &channel, nil
}

// GetByNumber retrieves a channel by its lineup number.
func (r *channelRepo) GetByNumber(ctx context.Context, number string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Preload("Profile").Where("number = ?", number).First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by number: %w", err)
	}
	return &channel, nil
}

// GetAll retrieves all channels ordered by number.
func (r *channelRepo) GetAll(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).Order("length(number) ASC, number ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("getting all channels: %w", err)
	}
	return channels, nil
}

// GetEnabled retrieves all enabled channels ordered by number.
func (r *channelRepo) GetEnabled(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("length(number) ASC, number ASC").
		Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("getting enabled channels: %w", err)
	}
	return channels, nil
}

// Update updates an existing channel.
func (r *channelRepo) Update(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Save(channel).Error; err != nil {
		return fmt.Errorf("updating channel: %w", err)
	}
	return nil
}

// Delete deletes a channel along with its schedule, schedule items, and
// playback position.
func (r *channelRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.Schedule
		if err := tx.Where("channel_id = ?", id).First(&schedule).Error; err == nil {
			if err := tx.Where("schedule_id = ?", schedule.ID).Delete(&models.ScheduleItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&schedule).Error; err != nil {
				return err
			}
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		if err := tx.Where("channel_id = ?", id).Delete(&models.ChannelPlaybackPosition{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&models.Channel{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	return nil
}

// Count returns the number of channels.
func (r *channelRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Channel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting channels: %w", err)
	}
	return count, nil
}

// Ensure channelRepo implements ChannelRepository at compile time.
var _ ChannelRepository = (*channelRepo)(nil)
