package database

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
}

func TestNewSQLite(t *testing.T) {
	db, err := New(testConfig(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	var one int
	require.NoError(t, db.DB.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNewInvalidDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "oracle", DSN: ":memory:"}, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestClose(t *testing.T) {
	db, err := New(testConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var one int
	assert.Error(t, db.DB.Raw("SELECT 1").Scan(&one).Error)
}

func TestSQLitePragmas(t *testing.T) {
	db, err := New(testConfig(), nil, nil)
	require.NoError(t, err)
	defer db.Close()

	// In-memory databases report "memory" journal mode; WAL only
	// applies to file-backed databases.
	var journalMode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "memory", journalMode)

	var foreignKeys int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestTransactionRollback(t *testing.T) {
	db, err := New(testConfig(), nil, &Options{PrepareStmt: false})
	require.NoError(t, err)
	defer db.Close()

	type txItem struct {
		ID    uint   `gorm:"primarykey"`
		Value string `gorm:"not null"`
	}
	require.NoError(t, db.DB.AutoMigrate(&txItem{}))

	ctx := context.Background()
	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&txItem{Value: "kept"}).Error
	})
	require.NoError(t, err)

	forced := fmt.Errorf("forced rollback")
	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&txItem{Value: "discarded"}).Error; err != nil {
			return err
		}
		return forced
	})
	assert.ErrorIs(t, err, forced)

	var count int64
	require.NoError(t, db.DB.Model(&txItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestParseGormLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"unknown", logger.Warn},
		{"", logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseGormLevel(tt.level))
		})
	}
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := "SELECT " + strings.Repeat("x", maxSQLLogLength)
	got := truncateSQL(long)
	assert.Len(t, got, maxSQLLogLength+len("... (truncated)"))
	assert.True(t, strings.HasSuffix(got, "... (truncated)"))
}
