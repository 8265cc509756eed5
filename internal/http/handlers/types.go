package handlers

import (
	"time"

	"github.com/tgrayson/streamtv/internal/models"
)

// ChannelResponse is the API representation of a channel.
type ChannelResponse struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	Name             string `json:"name"`
	Group            string `json:"group,omitempty"`
	Enabled          bool   `json:"enabled"`
	LogoPath         string `json:"logo_path,omitempty"`
	PlayoutMode      string `json:"playout_mode"`
	ProfileID        string `json:"profile_id,omitempty"`
	HWAccelHint      string `json:"hwaccel_hint,omitempty"`
	AudioLanguage    string `json:"audio_language,omitempty"`
	SubtitleLanguage string `json:"subtitle_language,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// ChannelFromModel converts a channel model to its API representation.
func ChannelFromModel(ch *models.Channel) ChannelResponse {
	resp := ChannelResponse{
		ID:               ch.ID.String(),
		Number:           ch.Number,
		Name:             ch.Name,
		Group:            ch.Group,
		Enabled:          ch.IsEnabled(),
		LogoPath:         ch.LogoPath,
		PlayoutMode:      string(ch.Mode()),
		HWAccelHint:      ch.HWAccelHint,
		AudioLanguage:    ch.AudioLanguage,
		SubtitleLanguage: ch.SubtitleLanguage,
		CreatedAt:        ch.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        ch.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if ch.ProfileID != nil {
		resp.ProfileID = ch.ProfileID.String()
	}
	return resp
}

// MediaItemResponse is the API representation of a media item.
type MediaItemResponse struct {
	ID              string   `json:"id"`
	Source          string   `json:"source"`
	SourceID        string   `json:"source_id,omitempty"`
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	Uploader        string   `json:"uploader,omitempty"`
	UploadDate      string   `json:"upload_date,omitempty"`
	Metadata        string   `json:"metadata,omitempty"`
}

// MediaItemFromModel converts a media item model to its API representation.
func MediaItemFromModel(m *models.MediaItem) MediaItemResponse {
	return MediaItemResponse{
		ID:              m.ID.String(),
		Source:          string(m.MediaSource()),
		SourceID:        m.SourceID,
		URL:             m.URL,
		Title:           m.Title,
		Description:     m.Description,
		DurationSeconds: m.DurationSeconds,
		Thumbnail:       m.Thumbnail,
		Uploader:        m.Uploader,
		UploadDate:      m.UploadDate,
		Metadata:        m.Metadata,
	}
}

// CollectionResponse is the API representation of a collection.
type CollectionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	ItemCount int    `json:"item_count"`
}

// CollectionFromModel converts a collection model to its API representation.
func CollectionFromModel(c *models.Collection) CollectionResponse {
	return CollectionResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Type:      string(c.CollectionType()),
		Query:     c.Query,
		ItemCount: len(c.Items),
	}
}

// PositionResponse is the API representation of a playout position.
type PositionResponse struct {
	ChannelID          string    `json:"channel_id"`
	PlayoutStartTime   time.Time `json:"playout_start_time"`
	LastItemIndex      int       `json:"last_item_index"`
	LastItemMediaID    string    `json:"last_item_media_id,omitempty"`
	LastPositionUpdate time.Time `json:"last_position_update"`
	TotalItemsWatched  int64     `json:"total_items_watched"`
}

// PositionFromModel converts a position model to its API representation.
func PositionFromModel(p *models.ChannelPlaybackPosition) PositionResponse {
	resp := PositionResponse{
		ChannelID:          p.ChannelID.String(),
		PlayoutStartTime:   p.PlayoutStartTime,
		LastItemIndex:      p.LastItemIndex,
		LastPositionUpdate: p.LastPositionUpdate,
		TotalItemsWatched:  p.TotalItemsWatched,
	}
	if !p.LastItemMediaID.IsZero() {
		resp.LastItemMediaID = p.LastItemMediaID.String()
	}
	return resp
}
