package repository

import (
	"context"
	"fmt"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// scheduleRepo implements ScheduleRepository using GORM.
type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) *scheduleRepo {
	return &scheduleRepo{db: db}
}

// Create creates a new schedule.
func (r *scheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}
	return nil
}

// GetByID retrieves a schedule by ID with its items preloaded.
func (r *scheduleRepo) GetByID(ctx context.Context, id models.ULID) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&schedule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting schedule by ID: %w", err)
	}
	return &schedule, nil
}

// GetByChannelID retrieves the schedule for a channel with items preloaded.
func (r *scheduleRepo) GetByChannelID(ctx context.Context, channelID models.ULID) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("channel_id = ?", channelID).
		First(&schedule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting schedule by channel ID: %w", err)
	}
	return &schedule, nil
}

// GetAll retrieves all schedules.
func (r *scheduleRepo) GetAll(ctx context.Context) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := r.db.WithContext(ctx).Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("getting all schedules: %w", err)
	}
	return schedules, nil
}

// Update updates a schedule. YAML-sourced schedules can only be written by
// the YAML loader itself.
func (r *scheduleRepo) Update(ctx context.Context, schedule *models.Schedule, fromLoader bool) error {
	if schedule.IsYAMLSource && !fromLoader {
		return models.ErrYAMLSourceReadOnly
	}
	if err := r.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

// ReplaceItems replaces a schedule's items.
func (r *scheduleRepo) ReplaceItems(ctx context.Context, scheduleID models.ULID, items []models.ScheduleItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&models.ScheduleItem{}).Error; err != nil {
			return err
		}

		if len(items) == 0 {
			return nil
		}

		for i := range items {
			items[i].ScheduleID = scheduleID
			items[i].Position = i
		}
		return tx.CreateInBatches(items, 500).Error
	})
	if err != nil {
		return fmt.Errorf("replacing schedule items: %w", err)
	}
	return nil
}

// Delete deletes a schedule and its items.
func (r *scheduleRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", id).Delete(&models.ScheduleItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Schedule{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

// Ensure scheduleRepo implements ScheduleRepository at compile time.
var _ ScheduleRepository = (*scheduleRepo)(nil)
