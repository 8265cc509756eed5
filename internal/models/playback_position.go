package models

import (
	"time"

	"gorm.io/gorm"
)

// ChannelPlaybackPosition is the per-channel playout anchor and resume
// cursor. One row per channel; created on first playout start.
type ChannelPlaybackPosition struct {
	BaseModel

	ChannelID ULID `gorm:"type:varchar(26);not null;uniqueIndex" json:"channel_id"`

	// PlayoutStartTime is the UTC instant the channel first started
	// playing. All timeline math derives from this anchor.
	PlayoutStartTime time.Time `gorm:"not null" json:"playout_start_time"`

	// LastItemIndex is the index into the built playout the channel last
	// played. Loaders clamp out-of-range values to 0.
	LastItemIndex int `gorm:"default:0" json:"last_item_index"`

	LastItemMediaID    ULID      `gorm:"type:varchar(26)" json:"last_item_media_id,omitempty"`
	LastPositionUpdate time.Time `json:"last_position_update"`
	TotalItemsWatched  int64     `gorm:"default:0" json:"total_items_watched"`
}

// TableName returns the table name for ChannelPlaybackPosition.
func (ChannelPlaybackPosition) TableName() string {
	return "channel_playback_positions"
}

// Validate performs basic validation on the position row.
func (p *ChannelPlaybackPosition) Validate() error {
	if p.ChannelID.IsZero() {
		return ErrChannelIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (p *ChannelPlaybackPosition) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if p.PlayoutStartTime.IsZero() {
		p.PlayoutStartTime = time.Now().UTC()
	}
	if p.LastPositionUpdate.IsZero() {
		p.LastPositionUpdate = p.PlayoutStartTime
	}
	return p.Validate()
}

// ClampIndex returns the resume index, clamped to 0 when it falls outside
// the given playout length.
func (p *ChannelPlaybackPosition) ClampIndex(playoutLen int) int {
	if p.LastItemIndex < 0 || p.LastItemIndex >= playoutLen {
		return 0
	}
	return p.LastItemIndex
}
