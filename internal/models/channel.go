package models

import (
	"strings"

	"gorm.io/gorm"
)

// PlayoutMode controls how a channel's broadcaster runs.
type PlayoutMode string

const (
	// PlayoutContinuous keeps one shared stream running 24/7; clients
	// join mid-flight.
	PlayoutContinuous PlayoutMode = "CONTINUOUS"
	// PlayoutOnDemand starts an independent stream per client, resuming
	// from the persisted item index.
	PlayoutOnDemand PlayoutMode = "ON_DEMAND"
)

// NormalizePlayoutMode maps a raw stored string to a well-defined mode.
// Legacy rows hold lowercase or unknown values; anything unrecognized
// becomes CONTINUOUS.
func NormalizePlayoutMode(raw string) PlayoutMode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(PlayoutOnDemand), "ONDEMAND", "ON-DEMAND":
		return PlayoutOnDemand
	default:
		return PlayoutContinuous
	}
}

// Channel represents one virtual linear channel presented to tuners.
type Channel struct {
	BaseModel

	// Number is the channel's identity everywhere a client sees it:
	// lineup GuideNumber, M3U tvg-id, and XMLTV channel id.
	Number string `gorm:"size:16;not null;uniqueIndex" json:"number"`

	// Name is the display name.
	Name string `gorm:"size:512;not null" json:"name"`

	// Group is the playlist group-title, if any.
	Group string `gorm:"size:255;index" json:"group,omitempty"`

	// Enabled channels appear in the lineup, M3U, and guide.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// LogoPath is either an absolute URL or a server-relative icon path.
	// Stored values are not trusted blindly; see the logo resolution rule.
	LogoPath string `gorm:"size:2048" json:"logo_path,omitempty"`

	// PlayoutMode is stored raw; read it through Mode().
	PlayoutMode string `gorm:"size:32;default:CONTINUOUS" json:"playout_mode"`

	// ProfileID references the FFmpegProfile used when re-encoding.
	ProfileID *ULID `gorm:"type:varchar(26)" json:"profile_id,omitempty"`

	// HWAccelHint overrides the configured hardware acceleration for
	// this channel's transcodes.
	HWAccelHint string `gorm:"size:32" json:"hwaccel_hint,omitempty"`

	// AudioLanguage and SubtitleLanguage are track selection preferences.
	AudioLanguage    string `gorm:"size:16" json:"audio_language,omitempty"`
	SubtitleLanguage string `gorm:"size:16" json:"subtitle_language,omitempty"`

	Profile *FFmpegProfile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}

// TableName returns the table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// Mode returns the normalized playout mode.
func (c *Channel) Mode() PlayoutMode {
	return NormalizePlayoutMode(c.PlayoutMode)
}

// IsEnabled reports whether the channel is enabled (nil means enabled).
func (c *Channel) IsEnabled() bool {
	return BoolVal(c.Enabled)
}

// Validate performs basic validation on the channel.
func (c *Channel) Validate() error {
	if c.Number == "" {
		return ErrChannelNumberRequired
	}
	for _, r := range c.Number {
		if r < '0' || r > '9' {
			return ErrChannelNumberNumeric
		}
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the channel and generates ULID.
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	c.PlayoutMode = string(c.Mode())
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates the channel before update.
func (c *Channel) BeforeUpdate(tx *gorm.DB) error {
	c.PlayoutMode = string(c.Mode())
	return c.Validate()
}

// GuideName returns the display name with a leading copy of the channel
// number stripped. Lineup consumers reject names that repeat the number:
// "2000's Movies" on channel 2000 becomes "Movies".
func (c *Channel) GuideName() string {
	name := c.Name
	if c.Number == "" || !strings.HasPrefix(name, c.Number) {
		return name
	}
	rest := name[len(c.Number):]
	for _, sep := range []string{"'s ", "- ", "-", ". ", ".", "_", " "} {
		if strings.HasPrefix(rest, sep) {
			return strings.TrimSpace(rest[len(sep):])
		}
	}
	if rest == "" {
		return name
	}
	return name
}
