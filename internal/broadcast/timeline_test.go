package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var timelineAnchor = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testTimeline(durations ...float64) *Timeline {
	urls := make([]string, len(durations))
	for i := range urls {
		urls[i] = "http://example.com/v.mp4"
	}
	return NewTimeline(timelineAnchor, testItems(urls, durations))
}

func TestPositionAt(t *testing.T) {
	tl := testTimeline(600, 1200, 300)
	assert.Equal(t, 2100.0, tl.TotalDuration())

	tests := []struct {
		name       string
		at         time.Time
		wantIndex  int
		wantOffset float64
	}{
		{"at anchor", timelineAnchor, 0, 0},
		{"before anchor", timelineAnchor.Add(-time.Hour), 0, 0},
		{"inside first item", timelineAnchor.Add(90 * time.Second), 0, 90},
		{"item boundary", timelineAnchor.Add(600 * time.Second), 1, 0},
		{"inside last item", timelineAnchor.Add(1900 * time.Second), 2, 100},
		{"cycle boundary", timelineAnchor.Add(2100 * time.Second), 0, 0},
		{"third cycle", timelineAnchor.Add((2*2100 + 650) * time.Second), 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, offset := tl.PositionAt(tt.at)
			assert.Equal(t, tt.wantIndex, idx)
			assert.InDelta(t, tt.wantOffset, offset, 1e-6)
		})
	}
}

func TestPositionAtIsPure(t *testing.T) {
	tl := testTimeline(450, 930, 15, 1800)
	at := timelineAnchor.Add(73*time.Hour + 17*time.Minute)

	idx1, off1 := tl.PositionAt(at)
	// A rebuilt timeline over the same anchor and durations lands on the
	// same position: restarts never drift.
	idx2, off2 := testTimeline(450, 930, 15, 1800).PositionAt(at)
	assert.Equal(t, idx1, idx2)
	assert.InDelta(t, off1, off2, 1e-6)
}

func TestPositionAtUnknownDurations(t *testing.T) {
	// Zero durations fall back to the 1800s assumption.
	tl := testTimeline(0, 0)
	assert.Equal(t, 3600.0, tl.TotalDuration())

	idx, offset := tl.PositionAt(timelineAnchor.Add(2000 * time.Second))
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 200.0, offset, 1e-6)
}

func TestPositionAtEmpty(t *testing.T) {
	tl := NewTimeline(timelineAnchor, nil)
	idx, offset := tl.PositionAt(timelineAnchor.Add(time.Hour))
	assert.Zero(t, idx)
	assert.Zero(t, offset)
}

func TestItemStartAt(t *testing.T) {
	tl := testTimeline(600, 1200, 300)
	now := timelineAnchor.Add(1900 * time.Second)

	idx, start := tl.ItemStartAt(now)
	assert.Equal(t, 2, idx)
	assert.Equal(t, timelineAnchor.Add(1800*time.Second), start)
}
