package models

import (
	"strings"

	"gorm.io/gorm"
)

// ScheduleKind distinguishes where a schedule's definition lives.
type ScheduleKind string

const (
	// ScheduleYAML is loaded from a YAML file and read-only over the API.
	ScheduleYAML ScheduleKind = "YAML"
	// ScheduleDB is fully defined by ScheduleItem rows.
	ScheduleDB ScheduleKind = "DB"
)

// Schedule is a channel's playout definition.
type Schedule struct {
	BaseModel

	ChannelID ULID   `gorm:"type:varchar(26);not null;uniqueIndex" json:"channel_id"`
	Name      string `gorm:"size:512" json:"name"`

	// IsYAMLSource marks schedules that mirror a YAML file on disk.
	// API mutation of such schedules is rejected.
	IsYAMLSource bool `gorm:"default:false" json:"is_yaml_source"`

	// SourcePath is the YAML file path for YAML-sourced schedules.
	SourcePath string `gorm:"size:2048" json:"source_path,omitempty"`

	// Document holds the raw YAML body for YAML-sourced schedules so the
	// engine can rebuild without touching disk.
	Document string `gorm:"type:text" json:"document,omitempty"`

	Items []ScheduleItem `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName returns the table name for Schedule.
func (Schedule) TableName() string {
	return "schedules"
}

// Kind reports whether the schedule is YAML-backed or DB-defined.
func (s *Schedule) Kind() ScheduleKind {
	if s.IsYAMLSource {
		return ScheduleYAML
	}
	return ScheduleDB
}

// Validate performs basic validation on the schedule.
func (s *Schedule) Validate() error {
	if s.ChannelID.IsZero() {
		return ErrChannelIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// BeforeUpdate is a GORM hook that validates before update.
func (s *Schedule) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}

// ScheduleStartType says how a DB-defined item anchors in time.
type ScheduleStartType string

const (
	StartDynamic ScheduleStartType = "DYNAMIC"
	StartFixed   ScheduleStartType = "FIXED"
)

// ScheduleTargetType discriminates what a schedule item plays from.
type ScheduleTargetType string

const (
	TargetCollection ScheduleTargetType = "COLLECTION"
	TargetMedia      ScheduleTargetType = "MEDIA"
	TargetPlaylist   ScheduleTargetType = "PLAYLIST"
	TargetShow       ScheduleTargetType = "SHOW"
	TargetSeason     ScheduleTargetType = "SEASON"
	TargetArtist     ScheduleTargetType = "ARTIST"
	TargetMulti      ScheduleTargetType = "MULTI"
	TargetSmart      ScheduleTargetType = "SMART"
)

// NormalizeTargetType maps a raw stored string to a ScheduleTargetType.
// Unknown values fall back to COLLECTION.
func NormalizeTargetType(raw string) ScheduleTargetType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(TargetMedia):
		return TargetMedia
	case string(TargetPlaylist):
		return TargetPlaylist
	case string(TargetShow):
		return TargetShow
	case string(TargetSeason):
		return TargetSeason
	case string(TargetArtist):
		return TargetArtist
	case string(TargetMulti):
		return TargetMulti
	case string(TargetSmart):
		return TargetSmart
	default:
		return TargetCollection
	}
}

// SchedulePlayoutMode says how many items a schedule item emits per visit.
type SchedulePlayoutMode string

const (
	PlayOne      SchedulePlayoutMode = "ONE"
	PlayMultiple SchedulePlayoutMode = "MULTIPLE"
	PlayDuration SchedulePlayoutMode = "DURATION"
)

// ScheduleItem is one row of a DB-defined schedule.
type ScheduleItem struct {
	BaseModel

	ScheduleID ULID `gorm:"type:varchar(26);not null;index:idx_schedule_position" json:"schedule_id"`
	Position   int  `gorm:"not null;index:idx_schedule_position" json:"position"`

	StartType ScheduleStartType `gorm:"size:16;default:DYNAMIC" json:"start_type"`
	// StartTime is "HH:MM[:SS]" for FIXED items.
	StartTime string `gorm:"size:16" json:"start_time,omitempty"`

	TargetType string `gorm:"size:32" json:"target_type"`
	TargetID   ULID   `gorm:"type:varchar(26);index" json:"target_id,omitempty"`
	TargetName string `gorm:"size:512" json:"target_name,omitempty"`

	// PlaybackOrder is chronological or shuffle.
	PlaybackOrder string `gorm:"size:32;default:chronological" json:"playback_order"`

	PlayoutMode   SchedulePlayoutMode `gorm:"size:16;default:ONE" json:"playout_mode"`
	MultipleCount int                 `json:"multiple_count,omitempty"`
	// PlayoutDuration is seconds, for DURATION mode.
	PlayoutDuration float64 `json:"playout_duration,omitempty"`

	FillWithGroup bool   `gorm:"default:false" json:"fill_with_group"`
	TailMode      string `gorm:"size:32" json:"tail_mode,omitempty"`
	GuideMode     string `gorm:"size:32" json:"guide_mode,omitempty"`
	CustomTitle   string `gorm:"size:1024" json:"custom_title,omitempty"`

	FillerID   *ULID `gorm:"type:varchar(26)" json:"filler_id,omitempty"`
	OverrideID *ULID `gorm:"type:varchar(26)" json:"override_id,omitempty"`
}

// TableName returns the table name for ScheduleItem.
func (ScheduleItem) TableName() string {
	return "schedule_items"
}

// Target returns the normalized target type.
func (si *ScheduleItem) Target() ScheduleTargetType {
	return NormalizeTargetType(si.TargetType)
}

// Validate performs basic validation on the schedule item.
func (si *ScheduleItem) Validate() error {
	if si.ScheduleID.IsZero() {
		return ErrScheduleIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (si *ScheduleItem) BeforeCreate(tx *gorm.DB) error {
	if err := si.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	si.TargetType = string(si.Target())
	return si.Validate()
}
