package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.MediaItem{},
		&models.Collection{},
		&models.CollectionItem{},
		&models.Resolution{},
		&models.Watermark{},
		&models.FFmpegProfile{},
		&models.Channel{},
		&models.Schedule{},
		&models.ScheduleItem{},
		&models.ChannelPlaybackPosition{},
		&models.Job{},
	))

	return db
}

func mustCreateMediaItem(t *testing.T, db *gorm.DB, url, title string) *models.MediaItem {
	t.Helper()

	item := &models.MediaItem{Source: "ARCHIVE_ORG", URL: url, Title: title}
	require.NoError(t, db.Create(item).Error)
	return item
}
