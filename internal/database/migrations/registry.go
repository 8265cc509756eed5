// Package migrations provides database migration management for streamtv.
package migrations

import (
	"time"

	"github.com/tgrayson/streamtv/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
// - 002: Rewrite midnight-anchored playout start times to first-start instants
// - 003: Default FFmpeg profile and common resolutions
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002PlayoutAnchor(),
		migration003DefaultProfiles(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			// AutoMigrate all models in dependency order
			return tx.AutoMigrate(
				// Catalog
				&models.MediaItem{},
				&models.Collection{},
				&models.CollectionItem{},

				// Channels and playout
				&models.Resolution{},
				&models.Watermark{},
				&models.FFmpegProfile{},
				&models.Channel{},
				&models.Schedule{},
				&models.ScheduleItem{},
				&models.ChannelPlaybackPosition{},

				// Scheduler
				&models.Job{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.Job{},
				&models.ChannelPlaybackPosition{},
				&models.ScheduleItem{},
				&models.Schedule{},
				&models.Channel{},
				&models.FFmpegProfile{},
				&models.Watermark{},
				&models.Resolution{},
				&models.CollectionItem{},
				&models.Collection{},
				&models.MediaItem{},
			)
		},
	}
}

// migration002PlayoutAnchor rewrites legacy playback position rows. Earlier
// releases anchored playout_start_time at midnight UTC of the day the channel
// first played; timeline math now expects the actual first-start instant, so
// midnight-anchored rows are moved to the row's creation instant.
func migration002PlayoutAnchor() Migration {
	return Migration{
		Version:     "002",
		Description: "Rewrite midnight-anchored playout start times",
		Up: func(tx *gorm.DB) error {
			var positions []models.ChannelPlaybackPosition
			if err := tx.Find(&positions).Error; err != nil {
				return err
			}

			for i := range positions {
				p := &positions[i]
				anchor := p.PlayoutStartTime.UTC()
				if anchor.Hour() != 0 || anchor.Minute() != 0 || anchor.Second() != 0 {
					continue
				}

				// The creation instant is the closest surviving record of
				// when playout actually started.
				replacement := p.CreatedAt.UTC()
				if replacement.IsZero() {
					replacement = time.Now().UTC()
				}

				if err := tx.Model(p).Update("playout_start_time", replacement).Error; err != nil {
					return err
				}
			}
			return nil
		},
		// Not reversible: the midnight anchors are gone.
		Down: func(tx *gorm.DB) error {
			return nil
		},
	}
}

// migration003DefaultProfiles seeds a default transcode profile and the
// common output resolutions so fresh installs can re-encode out of the box.
func migration003DefaultProfiles() Migration {
	return Migration{
		Version:     "003",
		Description: "Seed default FFmpeg profile and resolutions",
		Up: func(tx *gorm.DB) error {
			resolutions := []models.Resolution{
				{Name: "480p", Width: 854, Height: 480},
				{Name: "720p", Width: 1280, Height: 720},
				{Name: "1080p", Width: 1920, Height: 1080},
			}
			for i := range resolutions {
				var count int64
				if err := tx.Model(&models.Resolution{}).
					Where("name = ?", resolutions[i].Name).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(&resolutions[i]).Error; err != nil {
					return err
				}
			}

			var count int64
			if err := tx.Model(&models.FFmpegProfile{}).
				Where("is_default = ?", true).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			crf := 23
			profile := models.FFmpegProfile{
				Name:         "default",
				Description:  "Balanced H.264 transcode for general playback",
				VideoBitrate: "4M",
				VideoMaxrate: "5M",
				CRF:          &crf,
				Preset:       "veryfast",
				AudioBitrate: "192k",
				IsDefault:    true,
			}
			return tx.Create(&profile).Error
		},
		Down: func(tx *gorm.DB) error {
			if err := tx.Where("name = ? AND is_default = ?", "default", true).
				Delete(&models.FFmpegProfile{}).Error; err != nil {
				return err
			}
			return tx.Where("name IN ?", []string{"480p", "720p", "1080p"}).
				Delete(&models.Resolution{}).Error
		},
	}
}
