package repository

import (
	"context"
	"fmt"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mediaItemRepo implements MediaItemRepository using GORM.
type mediaItemRepo struct {
	db *gorm.DB
}

// NewMediaItemRepository creates a new MediaItemRepository.
func NewMediaItemRepository(db *gorm.DB) *mediaItemRepo {
	return &mediaItemRepo{db: db}
}

// Create creates a new media item.
func (r *mediaItemRepo) Create(ctx context.Context, item *models.MediaItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("creating media item: %w", err)
	}
	return nil
}

// CreateBatch creates multiple media items in a single batch.
func (r *mediaItemRepo) CreateBatch(ctx context.Context, items []*models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(items, 500).Error; err != nil {
		return fmt.Errorf("creating media item batch: %w", err)
	}
	return nil
}

// GetByID retrieves a media item by ID.
func (r *mediaItemRepo) GetByID(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media item by ID: %w", err)
	}
	return &item, nil
}

// GetByURL retrieves a media item by its canonical URL.
func (r *mediaItemRepo) GetByURL(ctx context.Context, url string) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media item by URL: %w", err)
	}
	return &item, nil
}

// GetAllPaginated retrieves media items with pagination.
func (r *mediaItemRepo) GetAllPaginated(ctx context.Context, offset, limit int) ([]*models.MediaItem, int64, error) {
	var items []*models.MediaItem
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.MediaItem{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting media items: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Order("title ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("getting paginated media items: %w", err)
	}

	return items, total, nil
}

// Search retrieves media items whose title matches the query.
func (r *mediaItemRepo) Search(ctx context.Context, query string, limit int) ([]*models.MediaItem, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []*models.MediaItem
	if err := r.db.WithContext(ctx).
		Where("title LIKE ?", "%"+query+"%").
		Order("title ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("searching media items: %w", err)
	}
	return items, nil
}

// Upsert creates the item or updates the existing row with the same URL.
func (r *mediaItemRepo) Upsert(ctx context.Context, item *models.MediaItem) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source", "source_id", "title", "description",
				"duration_seconds", "thumbnail", "uploader", "upload_date",
				"metadata", "updated_at",
			}),
		}).
		Create(item).Error
	if err != nil {
		return fmt.Errorf("upserting media item: %w", err)
	}
	return nil
}

// Update updates an existing media item.
func (r *mediaItemRepo) Update(ctx context.Context, item *models.MediaItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("updating media item: %w", err)
	}
	return nil
}

// Delete deletes a media item unless a collection still references it.
func (r *mediaItemRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.CollectionItem{}).
			Where("media_item_id = ?", id).
			Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return models.ErrMediaItemReferenced
		}
		return tx.Where("id = ?", id).Delete(&models.MediaItem{}).Error
	})
	if err != nil {
		if err == models.ErrMediaItemReferenced {
			return err
		}
		return fmt.Errorf("deleting media item: %w", err)
	}
	return nil
}

// Ensure mediaItemRepo implements MediaItemRepository at compile time.
var _ MediaItemRepository = (*mediaItemRepo)(nil)
