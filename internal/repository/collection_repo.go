package repository

import (
	"context"
	"fmt"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// collectionRepo implements CollectionRepository using GORM.
type collectionRepo struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(db *gorm.DB) *collectionRepo {
	return &collectionRepo{db: db}
}

// Create creates a new collection.
func (r *collectionRepo) Create(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// GetByID retrieves a collection by ID.
func (r *collectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection by ID: %w", err)
	}
	return &collection, nil
}

// GetByName retrieves a collection by its unique name.
func (r *collectionRepo) GetByName(ctx context.Context, name string) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&collection).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection by name: %w", err)
	}
	return &collection, nil
}

// GetAll retrieves all collections.
func (r *collectionRepo) GetAll(ctx context.Context) ([]*models.Collection, error) {
	var collections []*models.Collection
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("getting all collections: %w", err)
	}
	return collections, nil
}

// GetItems retrieves a collection's media items in position order.
func (r *collectionRepo) GetItems(ctx context.Context, collectionID models.ULID) ([]*models.MediaItem, error) {
	var rows []models.CollectionItem
	if err := r.db.WithContext(ctx).
		Preload("MediaItem").
		Where("collection_id = ?", collectionID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("getting collection items: %w", err)
	}

	items := make([]*models.MediaItem, 0, len(rows))
	for i := range rows {
		if rows[i].MediaItem != nil {
			items = append(items, rows[i].MediaItem)
		}
	}
	return items, nil
}

// SetItems replaces a collection's membership with the given media item IDs.
func (r *collectionRepo) SetItems(ctx context.Context, collectionID models.ULID, mediaItemIDs []models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", collectionID).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}

		if len(mediaItemIDs) == 0 {
			return nil
		}

		rows := make([]models.CollectionItem, 0, len(mediaItemIDs))
		for i, mediaID := range mediaItemIDs {
			rows = append(rows, models.CollectionItem{
				CollectionID: collectionID,
				MediaItemID:  mediaID,
				Position:     i,
			})
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("setting collection items: %w", err)
	}
	return nil
}

// AddItem appends a media item at the end of the collection.
func (r *collectionRepo) AddItem(ctx context.Context, collectionID, mediaItemID models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos *int
		if err := tx.Model(&models.CollectionItem{}).
			Where("collection_id = ?", collectionID).
			Select("MAX(position)").
			Scan(&maxPos).Error; err != nil {
			return err
		}

		position := 0
		if maxPos != nil {
			position = *maxPos + 1
		}

		row := models.CollectionItem{
			CollectionID: collectionID,
			MediaItemID:  mediaItemID,
			Position:     position,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("adding collection item: %w", err)
	}
	return nil
}

// RemoveItem removes a media item from the collection.
func (r *collectionRepo) RemoveItem(ctx context.Context, collectionID, mediaItemID models.ULID) error {
	if err := r.db.WithContext(ctx).
		Where("collection_id = ? AND media_item_id = ?", collectionID, mediaItemID).
		Delete(&models.CollectionItem{}).Error; err != nil {
		return fmt.Errorf("removing collection item: %w", err)
	}
	return nil
}

// Update updates an existing collection.
func (r *collectionRepo) Update(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Save(collection).Error; err != nil {
		return fmt.Errorf("updating collection: %w", err)
	}
	return nil
}

// Delete deletes a collection and its membership rows.
func (r *collectionRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Collection{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Ensure collectionRepo implements CollectionRepository at compile time.
var _ CollectionRepository = (*collectionRepo)(nil)
