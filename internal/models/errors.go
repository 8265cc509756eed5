package models

import "errors"

// Validation errors shared across models.
var (
	ErrNameRequired          = errors.New("name is required")
	ErrChannelNumberRequired = errors.New("channel number is required")
	ErrChannelNumberNumeric  = errors.New("channel number must be numeric")
	ErrURLRequired           = errors.New("url is required")
	ErrNegativeDuration      = errors.New("duration must not be negative")
	ErrCollectionIDRequired  = errors.New("collection id is required")
	ErrMediaItemIDRequired   = errors.New("media item id is required")
	ErrChannelIDRequired     = errors.New("channel id is required")
	ErrScheduleIDRequired    = errors.New("schedule id is required")
	ErrMediaItemReferenced   = errors.New("media item is referenced by a collection")
	ErrYAMLSourceReadOnly    = errors.New("schedule is YAML-sourced and cannot be modified via the API")
)
