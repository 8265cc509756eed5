package repository

import (
	"context"
	"fmt"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// ffmpegProfileRepo implements FFmpegProfileRepository using GORM.
type ffmpegProfileRepo struct {
	db *gorm.DB
}

// NewFFmpegProfileRepository creates a new FFmpegProfileRepository.
func NewFFmpegProfileRepository(db *gorm.DB) *ffmpegProfileRepo {
	return &ffmpegProfileRepo{db: db}
}

// Create creates a new profile.
func (r *ffmpegProfileRepo) Create(ctx context.Context, profile *models.FFmpegProfile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("creating ffmpeg profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID with resolution/watermark preloaded.
func (r *ffmpegProfileRepo) GetByID(ctx context.Context, id models.ULID) (*models.FFmpegProfile, error) {
	var profile models.FFmpegProfile
	if err := r.db.WithContext(ctx).
		Preload("Resolution").
		Preload("Watermark").
		Where("id = ?", id).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting ffmpeg profile by ID: %w", err)
	}
	return &profile, nil
}

// GetByName retrieves a profile by name.
func (r *ffmpegProfileRepo) GetByName(ctx context.Context, name string) (*models.FFmpegProfile, error) {
	var profile models.FFmpegProfile
	if err := r.db.WithContext(ctx).
		Preload("Resolution").
		Preload("Watermark").
		Where("name = ?", name).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting ffmpeg profile by name: %w", err)
	}
	return &profile, nil
}

// GetDefault retrieves the default profile, if any.
func (r *ffmpegProfileRepo) GetDefault(ctx context.Context) (*models.FFmpegProfile, error) {
	var profile models.FFmpegProfile
	if err := r.db.WithContext(ctx).
		Preload("Resolution").
		Preload("Watermark").
		Where("is_default = ?", true).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting default ffmpeg profile: %w", err)
	}
	return &profile, nil
}

// GetAll retrieves all profiles.
func (r *ffmpegProfileRepo) GetAll(ctx context.Context) ([]*models.FFmpegProfile, error) {
	var profiles []*models.FFmpegProfile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("getting all ffmpeg profiles: %w", err)
	}
	return profiles, nil
}

// Update updates an existing profile.
func (r *ffmpegProfileRepo) Update(ctx context.Context, profile *models.FFmpegProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("updating ffmpeg profile: %w", err)
	}
	return nil
}

// Delete deletes a profile by ID.
func (r *ffmpegProfileRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FFmpegProfile{}).Error; err != nil {
		return fmt.Errorf("deleting ffmpeg profile: %w", err)
	}
	return nil
}

// Ensure ffmpegProfileRepo implements FFmpegProfileRepository at compile time.
var _ FFmpegProfileRepository = (*ffmpegProfileRepo)(nil)
