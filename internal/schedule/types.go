// Package schedule loads per-channel YAML schedule files and expands them
// into deterministic playout lists.
package schedule

import (
	"time"

	"github.com/tgrayson/streamtv/internal/models"
)

// Order controls how a content key's collection is traversed.
type Order string

const (
	OrderChronological Order = "chronological"
	OrderShuffle       Order = "shuffle"
)

// ContentRef binds a content key to a collection and traversal order.
type ContentRef struct {
	Collection string
	Order      Order
}

// OpKind identifies a sequence op variant.
type OpKind string

const (
	OpReference       OpKind = "reference"
	OpAll             OpKind = "all"
	OpDurationFill    OpKind = "duration_fill"
	OpSequence        OpKind = "sequence"
	OpPadToNext       OpKind = "pad_to_next"
	OpPadUntil        OpKind = "pad_until"
	OpWaitUntil       OpKind = "wait_until"
	OpSkipItems       OpKind = "skip_items"
	OpShuffleSequence OpKind = "shuffle_sequence"
	OpPreRoll         OpKind = "pre_roll"
	OpMidRoll         OpKind = "mid_roll"
	OpPostRoll        OpKind = "post_roll"
)

// Op is one step of a sequence. Only the fields relevant to Kind are set.
type Op struct {
	Kind OpKind

	// ContentKey for reference/all/duration_fill/pad*/skip_items.
	ContentKey string

	// SequenceKey for sequence/shuffle_sequence and roll toggles.
	SequenceKey string

	// Duration in seconds for duration_fill.
	Duration float64

	// FillerKind tags duration_fill emissions for the guide.
	FillerKind string

	// DiscardAttempts is how many oversize items duration_fill may skip.
	DiscardAttempts int

	// Minutes for pad_to_next (default 60).
	Minutes int

	// FallbackKey is pad_to_next's alternative content key.
	FallbackKey string

	// ClockSeconds is the seconds-since-midnight target for
	// pad_until/wait_until.
	ClockSeconds int

	// CustomTitle overrides the media title on reference/all/duration_fill
	// emissions. Set by database-defined schedules only.
	CustomTitle string

	// Tomorrow forces wait_until to roll to the next day.
	Tomorrow bool

	// RewindOnReset keeps wait_until on today's target even when already
	// past it.
	RewindOnReset bool

	// SkipExpr for skip_items: integer, "count", "count/N", or "random".
	SkipExpr string

	// Enabled for roll toggles.
	Enabled bool
}

// ParsedSchedule is the in-memory form of a channel's YAML schedule.
type ParsedSchedule struct {
	Name        string
	Description string

	Content      map[string]ContentRef
	Sequences    map[string][]Op
	MainSequence string

	// Repeat loops the base expansion to satisfy max_items.
	Repeat bool

	// Malformed holds the directives the parser rejected and skipped.
	Malformed []MalformedDirectiveError
}

// Item is the engine's view of one playable media entry.
type Item struct {
	ID    models.ULID
	URL   string
	Title string

	// Duration in seconds; 0 means unknown (engine assumes 1800).
	Duration float64
}

// UnknownItemDuration is assumed when a media item has no known duration.
const UnknownItemDuration = 1800.0

// EffectiveDuration returns the item duration with the unknown fallback.
func (i Item) EffectiveDuration() float64 {
	if i.Duration <= 0 {
		return UnknownItemDuration
	}
	return i.Duration
}

// PlayoutItem is one expanded playout entry.
type PlayoutItem struct {
	Media Item

	// CustomTitle overrides the media title in the guide.
	CustomTitle string

	// FillerKind is set for duration_fill and roll emissions.
	FillerKind string

	// StartTime is the absolute start when the item follows a wait_until
	// boundary; nil otherwise (consumers assign by walking durations).
	StartTime *time.Time
}

// Lookup resolves collection names to their ordered items.
type Lookup interface {
	// CollectionItems returns the stored items of the named collection in
	// position order, and whether the collection exists.
	CollectionItems(name string) ([]Item, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) ([]Item, bool)

// CollectionItems implements Lookup.
func (f LookupFunc) CollectionItems(name string) ([]Item, bool) {
	return f(name)
}
