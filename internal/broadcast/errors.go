package broadcast

import "errors"

var (
	// ErrChannelNotFound means no channel exists with the requested number.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelDisabled means the channel exists but is not enabled.
	ErrChannelDisabled = errors.New("channel disabled")

	// ErrNotBroadcasting means a client tried to attach while the
	// broadcaster was idle or shutting down.
	ErrNotBroadcasting = errors.New("channel is not broadcasting")

	// ErrEmptyPlayout means the channel's schedule expanded to no items.
	ErrEmptyPlayout = errors.New("schedule expanded to no playable items")
)
