package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// WatermarkCorner names which corner an overlay is pinned to.
type WatermarkCorner string

const (
	CornerTopLeft     WatermarkCorner = "top_left"
	CornerTopRight    WatermarkCorner = "top_right"
	CornerBottomLeft  WatermarkCorner = "bottom_left"
	CornerBottomRight WatermarkCorner = "bottom_right"
)

// IsValid returns true for a recognized corner value.
func (c WatermarkCorner) IsValid() bool {
	switch c {
	case CornerTopLeft, CornerTopRight, CornerBottomLeft, CornerBottomRight:
		return true
	default:
		return false
	}
}

// Resolution is a named output frame size.
type Resolution struct {
	BaseModel

	Name   string `gorm:"size:64;uniqueIndex" json:"name"`
	Width  int    `gorm:"not null" json:"width"`
	Height int    `gorm:"not null" json:"height"`
}

// TableName returns the table name for Resolution.
func (Resolution) TableName() string {
	return "resolutions"
}

// String renders the resolution as WxH for FFmpeg scale arguments.
func (r *Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Validate performs basic validation on the resolution.
func (r *Resolution) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("resolution %q: dimensions must be positive", r.Name)
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (r *Resolution) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return r.Validate()
}

// Watermark is an image overlaid on transcoded video.
type Watermark struct {
	BaseModel

	Name string `gorm:"size:128;uniqueIndex" json:"name"`
	Path string `gorm:"size:2048;not null" json:"path"`

	// Corner is stored raw; unknown values act as bottom_right.
	Corner string `gorm:"size:16;default:'bottom_right'" json:"corner"`

	// Opacity in [0,1]; 0 means fully transparent.
	Opacity float64 `gorm:"default:1" json:"opacity"`

	// Margin is the pixel inset from the chosen corner.
	Margin int `gorm:"default:10" json:"margin"`
}

// TableName returns the table name for Watermark.
func (Watermark) TableName() string {
	return "watermarks"
}

// CornerValue returns the normalized corner.
func (w *Watermark) CornerValue() WatermarkCorner {
	c := WatermarkCorner(strings.ToLower(strings.TrimSpace(w.Corner)))
	if !c.IsValid() {
		return CornerBottomRight
	}
	return c
}

// Validate performs basic validation on the watermark.
func (w *Watermark) Validate() error {
	if w.Path == "" {
		return fmt.Errorf("watermark %q: path is required", w.Name)
	}
	if w.Opacity < 0 || w.Opacity > 1 {
		return fmt.Errorf("watermark %q: opacity must be within [0,1]", w.Name)
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (w *Watermark) BeforeCreate(tx *gorm.DB) error {
	if err := w.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return w.Validate()
}

// FFmpegProfile is a named set of command-building knobs a channel can
// reference. Zero values mean "let the command builder pick".
type FFmpegProfile struct {
	BaseModel

	Name        string `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Description string `gorm:"size:512" json:"description,omitempty"`

	// VideoBitrate and VideoMaxrate are FFmpeg rate strings ("4M", "2500k").
	VideoBitrate string `gorm:"size:16" json:"video_bitrate,omitempty"`
	VideoMaxrate string `gorm:"size:16" json:"video_maxrate,omitempty"`

	// CRF is the constant rate factor; nil means unset.
	CRF *int `json:"crf,omitempty"`

	// Preset is the encoder speed preset (ultrafast..veryslow).
	Preset string `gorm:"size:16" json:"preset,omitempty"`

	ResolutionID *ULID       `gorm:"type:varchar(26)" json:"resolution_id,omitempty"`
	Resolution   *Resolution `gorm:"foreignKey:ResolutionID" json:"resolution,omitempty"`

	AudioBitrate    string `gorm:"size:16" json:"audio_bitrate,omitempty"`
	AudioChannels   int    `json:"audio_channels,omitempty"`
	AudioSampleRate int    `json:"audio_sample_rate,omitempty"`

	WatermarkID *ULID      `gorm:"type:varchar(26)" json:"watermark_id,omitempty"`
	Watermark   *Watermark `gorm:"foreignKey:WatermarkID" json:"watermark,omitempty"`

	IsDefault bool `gorm:"default:false" json:"is_default"`
}

// TableName returns the table name for FFmpegProfile.
func (FFmpegProfile) TableName() string {
	return "ffmpeg_profiles"
}

// Validate performs basic validation on the profile.
func (p *FFmpegProfile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.CRF != nil && (*p.CRF < 0 || *p.CRF > 51) {
		return fmt.Errorf("profile %q: crf must be within [0,51]", p.Name)
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (p *FFmpegProfile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates before update.
func (p *FFmpegProfile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
