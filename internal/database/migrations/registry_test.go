package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
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

	return db
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate migration version %s", m.Version)
		versions[m.Version] = true
	}
}

func TestMigrator_Up_AppliesAll(t *testing.T) {
	db := setupTestDB(t)
	m := NewMigrator(db, nil)
	m.RegisterAll(AllMigrations())

	require.NoError(t, m.Up(context.Background()))

	// Schema exists
	assert.True(t, db.Migrator().HasTable(&models.Channel{}))
	assert.True(t, db.Migrator().HasTable(&models.MediaItem{}))
	assert.True(t, db.Migrator().HasTable(&models.ChannelPlaybackPosition{}))
	assert.True(t, db.Migrator().HasTable(&models.Job{}))

	// Default profile seeded
	var count int64
	require.NoError(t, db.Model(&models.FFmpegProfile{}).Where("is_default = ?", true).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Idempotent
	require.NoError(t, m.Up(context.Background()))

	pending, err := m.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigration002_RewritesMidnightAnchors(t *testing.T) {
	db := setupTestDB(t)
	m := NewMigrator(db, nil)
	m.RegisterAll([]Migration{migration001Schema()})
	require.NoError(t, m.Up(context.Background()))

	midnight := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	legacy := models.ChannelPlaybackPosition{
		ChannelID:        models.NewULID(),
		PlayoutStartTime: midnight,
	}
	require.NoError(t, db.Create(&legacy).Error)

	exact := time.Date(2024, 3, 10, 19, 42, 7, 0, time.UTC)
	modern := models.ChannelPlaybackPosition{
		ChannelID:        models.NewULID(),
		PlayoutStartTime: exact,
	}
	require.NoError(t, db.Create(&modern).Error)

	m.RegisterAll([]Migration{migration002PlayoutAnchor()})
	require.NoError(t, m.Up(context.Background()))

	// Fresh destinations per lookup: a populated primary key would leak
	// into the WHERE clause.
	var rewritten models.ChannelPlaybackPosition
	require.NoError(t, db.First(&rewritten, "id = ?", legacy.ID).Error)
	assert.False(t, rewritten.PlayoutStartTime.Equal(midnight), "midnight anchor should be rewritten")

	var untouched models.ChannelPlaybackPosition
	require.NoError(t, db.First(&untouched, "id = ?", modern.ID).Error)
	assert.True(t, untouched.PlayoutStartTime.Equal(exact), "non-midnight anchor should be untouched")
}

func TestMigrator_Down_RollsBackLast(t *testing.T) {
	db := setupTestDB(t)
	m := NewMigrator(db, nil)
	m.RegisterAll(AllMigrations())
	require.NoError(t, m.Up(context.Background()))

	require.NoError(t, m.Down(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.FFmpegProfile{}).Where("is_default = ?", true).Count(&count).Error)
	assert.Zero(t, count, "default profile should be removed by rollback")
}
