package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/models"
)

func TestCollectionRepo_SetAndGetItems(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	collection := &models.Collection{Name: "Creature Features"}
	require.NoError(t, repo.Create(ctx, collection))

	a := mustCreateMediaItem(t, db, "https://archive.org/details/a", "A")
	b := mustCreateMediaItem(t, db, "https://archive.org/details/b", "B")
	c := mustCreateMediaItem(t, db, "https://archive.org/details/c", "C")

	require.NoError(t, repo.SetItems(ctx, collection.ID, []models.ULID{c.ID, a.ID, b.ID}))

	items, err := repo.GetItems(ctx, collection.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "C", items[0].Title)
	assert.Equal(t, "A", items[1].Title)
	assert.Equal(t, "B", items[2].Title)

	// Replacement discards the old membership.
	require.NoError(t, repo.SetItems(ctx, collection.ID, []models.ULID{b.ID}))
	items, err = repo.GetItems(ctx, collection.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].Title)
}

func TestCollectionRepo_AddAndRemoveItem(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	collection := &models.Collection{Name: "Shorts"}
	require.NoError(t, repo.Create(ctx, collection))

	a := mustCreateMediaItem(t, db, "https://archive.org/details/a", "A")
	b := mustCreateMediaItem(t, db, "https://archive.org/details/b", "B")

	require.NoError(t, repo.AddItem(ctx, collection.ID, a.ID))
	require.NoError(t, repo.AddItem(ctx, collection.ID, b.ID))

	items, err := repo.GetItems(ctx, collection.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, "B", items[1].Title)

	require.NoError(t, repo.RemoveItem(ctx, collection.ID, a.ID))
	items, err = repo.GetItems(ctx, collection.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].Title)
}

func TestCollectionRepo_DeleteKeepsMediaItems(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	collection := &models.Collection{Name: "Doomed"}
	require.NoError(t, repo.Create(ctx, collection))

	item := mustCreateMediaItem(t, db, "https://archive.org/details/survivor", "Survivor")
	require.NoError(t, repo.AddItem(ctx, collection.ID, item.ID))

	require.NoError(t, repo.Delete(ctx, collection.ID))

	found, err := repo.GetByID(ctx, collection.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	var mediaCount int64
	require.NoError(t, db.Model(&models.MediaItem{}).Count(&mediaCount).Error)
	assert.Equal(t, int64(1), mediaCount, "deleting a collection must not delete media items")
}

func TestCollectionRepo_GetByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Collection{Name: "Westerns", Type: "MANUAL"}))

	found, err := repo.GetByName(ctx, "Westerns")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.CollectionManual, found.CollectionType())

	missing, err := repo.GetByName(ctx, "Easterns")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
