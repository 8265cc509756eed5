package models

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"
)

// MediaSource identifies where a media item's bytes come from.
type MediaSource string

const (
	SourceYouTube    MediaSource = "YOUTUBE"
	SourceArchiveOrg MediaSource = "ARCHIVE_ORG"
	SourcePBS        MediaSource = "PBS"
	SourcePlex       MediaSource = "PLEX"
	SourceUnknown    MediaSource = "UNKNOWN"
)

// NormalizeMediaSource maps a raw stored string to a MediaSource.
func NormalizeMediaSource(raw string) MediaSource {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(SourceYouTube):
		return SourceYouTube
	case string(SourceArchiveOrg), "ARCHIVE.ORG", "ARCHIVEORG":
		return SourceArchiveOrg
	case string(SourcePBS):
		return SourcePBS
	case string(SourcePlex):
		return SourcePlex
	default:
		return SourceUnknown
	}
}

// MediaItem is one resolvable piece of content in the catalog.
type MediaItem struct {
	BaseModel

	// Source is stored raw; read it through MediaSource().
	Source string `gorm:"size:32;index" json:"source"`

	// SourceID is the source-native identifier (video ID, Archive.org
	// identifier, Plex rating key).
	SourceID string `gorm:"size:255;index" json:"source_id,omitempty"`

	// URL is the canonical catalog URL and the dedup key.
	URL string `gorm:"size:4096;not null;uniqueIndex" json:"url"`

	Title       string `gorm:"size:1024" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// DurationSeconds is nil when the source never reported a duration.
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`

	Thumbnail  string `gorm:"size:2048" json:"thumbnail,omitempty"`
	Uploader   string `gorm:"size:512" json:"uploader,omitempty"`
	UploadDate string `gorm:"size:32" json:"upload_date,omitempty"`

	// Metadata is an opaque JSON blob from the enricher (season/episode,
	// air date). Parsed lazily; see EpisodeInfo.
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`
}

// TableName returns the table name for MediaItem.
func (MediaItem) TableName() string {
	return "media_items"
}

// MediaSource returns the normalized source.
func (m *MediaItem) MediaSource() MediaSource {
	return NormalizeMediaSource(m.Source)
}

// Duration returns the duration in seconds, or the fallback when unknown
// or non-positive.
func (m *MediaItem) Duration(fallback float64) float64 {
	if m.DurationSeconds == nil || *m.DurationSeconds <= 0 {
		return fallback
	}
	return *m.DurationSeconds
}

// Validate performs basic validation on the media item.
func (m *MediaItem) Validate() error {
	if m.URL == "" {
		return ErrURLRequired
	}
	if m.DurationSeconds != nil && *m.DurationSeconds < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the item and generates ULID.
func (m *MediaItem) BeforeCreate(tx *gorm.DB) error {
	if err := m.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	m.Source = string(m.MediaSource())
	return m.Validate()
}

// BeforeUpdate is a GORM hook that validates the item before update.
func (m *MediaItem) BeforeUpdate(tx *gorm.DB) error {
	return m.Validate()
}

// EpisodeInfo holds the season/episode fields the enricher stores in the
// metadata blob.
type EpisodeInfo struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// EpisodeInfo parses the metadata blob for season/episode numbers.
// Returns nil when the blob is absent, malformed, or carries neither.
func (m *MediaItem) EpisodeInfo() *EpisodeInfo {
	if m.Metadata == "" {
		return nil
	}
	var info EpisodeInfo
	if err := json.Unmarshal([]byte(m.Metadata), &info); err != nil {
		return nil
	}
	if info.Season == 0 && info.Episode == 0 {
		return nil
	}
	return &info
}
