package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/models"
)

func TestPositionRepo_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaybackPositionRepository(db)
	ctx := context.Background()

	channelID := models.NewULID()
	anchor := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)

	created, err := repo.GetOrCreate(ctx, channelID, anchor)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.PlayoutStartTime.Equal(anchor))

	// Second call returns the existing row with the original anchor.
	later := anchor.Add(48 * time.Hour)
	again, err := repo.GetOrCreate(ctx, channelID, later)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, created.ID, again.ID)
	assert.True(t, again.PlayoutStartTime.Equal(anchor), "anchor must survive restarts")
}

func TestPositionRepo_UpdateProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaybackPositionRepository(db)
	ctx := context.Background()

	channelID := models.NewULID()
	anchor := time.Now().UTC().Add(-time.Hour)
	created, err := repo.GetOrCreate(ctx, channelID, anchor)
	require.NoError(t, err)

	mediaID := models.NewULID()
	require.NoError(t, repo.UpdateProgress(ctx, channelID, 17, mediaID, 17))

	found, err := repo.GetByChannelID(ctx, channelID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 17, found.LastItemIndex)
	assert.Equal(t, mediaID, found.LastItemMediaID)
	assert.Equal(t, int64(17), found.TotalItemsWatched)
	assert.True(t, found.PlayoutStartTime.Equal(created.PlayoutStartTime), "progress updates must not move the anchor")
}

func TestPositionRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaybackPositionRepository(db)
	ctx := context.Background()

	channelID := models.NewULID()
	_, err := repo.GetOrCreate(ctx, channelID, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, channelID))

	found, err := repo.GetByChannelID(ctx, channelID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPositionRepo_DeleteOrphaned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaybackPositionRepository(db)
	channels := NewChannelRepository(db)
	ctx := context.Background()

	ch := &models.Channel{Number: "100", Name: "Cartoons"}
	require.NoError(t, channels.Create(ctx, ch))

	_, err := repo.GetOrCreate(ctx, ch.ID, time.Now().UTC())
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, models.NewULID(), time.Now().UTC())
	require.NoError(t, err)

	removed, err := repo.DeleteOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	kept, err := repo.GetByChannelID(ctx, ch.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept, "live channels keep their position row")
}
