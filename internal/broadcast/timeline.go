package broadcast

import (
	"math"
	"time"

	"github.com/tgrayson/streamtv/internal/schedule"
)

// Timeline is one channel's expanded playout cycle pinned to its anchor.
// Position within the cycle is a pure function of wall-clock time, so every
// restart lands exactly where an uninterrupted run would be.
type Timeline struct {
	// Anchor is the channel's playout_start_time: the UTC instant the
	// channel first went on air.
	Anchor time.Time

	Items []schedule.PlayoutItem

	total float64
}

// NewTimeline builds a timeline over the expanded items.
func NewTimeline(anchor time.Time, items []schedule.PlayoutItem) *Timeline {
	t := &Timeline{Anchor: anchor, Items: items}
	for _, it := range items {
		t.total += it.Media.EffectiveDuration()
	}
	return t
}

// Len returns the number of items in one cycle.
func (t *Timeline) Len() int { return len(t.Items) }

// TotalDuration returns one cycle's length in seconds.
func (t *Timeline) TotalDuration() float64 { return t.total }

// PositionAt maps a wall-clock instant to the item playing at that instant
// and the offset in seconds into it. Times before the anchor map to the
// start of item zero.
func (t *Timeline) PositionAt(now time.Time) (int, float64) {
	if len(t.Items) == 0 || t.total <= 0 {
		return 0, 0
	}
	elapsed := now.Sub(t.Anchor).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}
	cycle := math.Mod(elapsed, t.total)

	var acc float64
	for i, it := range t.Items {
		d := it.Media.EffectiveDuration()
		if cycle < acc+d {
			return i, cycle - acc
		}
		acc += d
	}
	// Floating-point edge: treat the cycle boundary as item zero.
	return 0, 0
}

// ItemStartAt returns the index playing at now and the absolute instant
// that item started.
func (t *Timeline) ItemStartAt(now time.Time) (int, time.Time) {
	idx, offset := t.PositionAt(now)
	return idx, now.Add(-time.Duration(offset * float64(time.Second)))
}
