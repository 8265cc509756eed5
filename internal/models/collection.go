package models

import (
	"strings"

	"gorm.io/gorm"
)

// CollectionType identifies how a collection's membership is defined.
type CollectionType string

const (
	// CollectionManual holds an explicitly ordered member list.
	CollectionManual CollectionType = "MANUAL"
	// CollectionSmart derives members from a stored query.
	CollectionSmart CollectionType = "SMART"
	// CollectionMulti aggregates other collections.
	CollectionMulti CollectionType = "MULTI"
)

// NormalizeCollectionType maps a raw stored string to a CollectionType.
// Unknown values fall back to MANUAL.
func NormalizeCollectionType(raw string) CollectionType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(CollectionSmart):
		return CollectionSmart
	case string(CollectionMulti):
		return CollectionMulti
	default:
		return CollectionManual
	}
}

// Collection is a named, ordered grouping of media items.
type Collection struct {
	BaseModel

	Name string `gorm:"size:512;not null;uniqueIndex" json:"name"`

	// Type is stored raw; read it through CollectionType().
	Type string `gorm:"size:32" json:"type"`

	// Query is the member-selection expression for SMART collections.
	Query string `gorm:"type:text" json:"query,omitempty"`

	Items []CollectionItem `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName returns the table name for Collection.
func (Collection) TableName() string {
	return "collections"
}

// CollectionType returns the normalized type.
func (c *Collection) CollectionType() CollectionType {
	return NormalizeCollectionType(c.Type)
}

// Validate performs basic validation on the collection.
func (c *Collection) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	c.Type = string(c.CollectionType())
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates before update.
func (c *Collection) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}

// CollectionItem is one ordered membership row. Position is the item's
// rank within the collection, 0-based.
type CollectionItem struct {
	BaseModel

	CollectionID ULID `gorm:"type:varchar(26);not null;index:idx_collection_position" json:"collection_id"`
	MediaItemID  ULID `gorm:"type:varchar(26);not null;index" json:"media_item_id"`
	Position     int  `gorm:"not null;index:idx_collection_position" json:"position"`

	MediaItem *MediaItem `gorm:"foreignKey:MediaItemID" json:"media_item,omitempty"`
}

// TableName returns the table name for CollectionItem.
func (CollectionItem) TableName() string {
	return "collection_items"
}

// Validate performs basic validation on the membership row.
func (ci *CollectionItem) Validate() error {
	if ci.CollectionID.IsZero() {
		return ErrCollectionIDRequired
	}
	if ci.MediaItemID.IsZero() {
		return ErrMediaItemIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates and generates ULID.
func (ci *CollectionItem) BeforeCreate(tx *gorm.DB) error {
	if err := ci.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return ci.Validate()
}
