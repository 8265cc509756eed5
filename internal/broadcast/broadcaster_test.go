package broadcast

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/mpegts"
)

func testChannel(number string) *models.Channel {
	return &models.Channel{
		BaseModel:   models.BaseModel{ID: models.NewULID()},
		Number:      number,
		Name:        "Test Channel",
		PlayoutMode: string(models.PlayoutContinuous),
	}
}

func testDeps(planner TimelinePlanner, streamer Streamer, positions *fakePositions, filters map[string]string) Deps {
	if filters == nil {
		filters = map[string]string{}
	}
	return Deps{
		Planner:   planner,
		Resolver:  fakeResolver{},
		Streamer:  streamer,
		Positions: positions,
		Config: &config.Config{Playout: config.PlayoutConfig{
			ContentFilters:       filters,
			PositionSaveInterval: time.Nanosecond,
			MaxConcurrentFFmpeg:  1,
		}},
		Logger: slog.Default(),
		// One slot: the advancer holds it, so pre-warming stays off.
		Sem: NewSemaphore(1),
	}
}

func chunks(vals ...string) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}

func collectN(t *testing.T, c *Client, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case chunk, ok := <-c.Chunks():
			if !ok {
				t.Fatalf("client closed after %d of %d chunks", len(got), n)
			}
			got = append(got, string(chunk))
		case <-timeout:
			t.Fatalf("timed out after %d of %d chunks", len(got), n)
		}
	}
	return got
}

func TestBroadcasterFanOut(t *testing.T) {
	items := testItems(
		[]string{"http://cdn/a.mp4", "http://cdn/PLACEHOLDER.ts", "http://cdn/c.mp4"},
		[]float64{600, 600, 600},
	)
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC().Add(-time.Minute)}
	planner := &fakePlanner{tl: NewTimeline(pos.PlayoutStartTime, items), pos: pos}
	streamer := &scriptedStreamer{
		scripts: []*fakeStream{
			newFakeStream(chunks("a1", "a2"), nil),
			newFakeStream(chunks("c1", "c2"), nil),
		},
		gate: make(chan struct{}),
	}
	positions := newFakePositions()

	b := NewBroadcaster(testChannel("5"), testDeps(planner, streamer, positions, nil))
	b.Start(context.Background())
	defer b.Stop()

	require.Eventually(t, func() bool { return b.State() == StateRunning },
		2*time.Second, 5*time.Millisecond)

	c1, err := b.Subscribe()
	require.NoError(t, err)
	defer c1.Close()
	c2, err := b.Subscribe()
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, 2, b.ClientCount())
	close(streamer.gate)

	// Both clients see the same chunk sequence; the placeholder item is
	// skipped without streaming.
	want := []string{"a1", "a2", "c1", "c2"}
	assert.Equal(t, want, collectN(t, c1, 4))
	assert.Equal(t, want, collectN(t, c2, 4))

	calls := streamer.calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, "http://cdn/a.mp4", calls[0])
	assert.Equal(t, "http://cdn/c.mp4", calls[1])
}

func TestBroadcasterContentFilter(t *testing.T) {
	items := testItems(
		[]string{"http://cdn/a.webm", "http://cdn/b.mp4"},
		[]float64{600, 600},
	)
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC()}
	planner := &fakePlanner{tl: NewTimeline(pos.PlayoutStartTime, items), pos: pos}
	streamer := &scriptedStreamer{
		scripts: []*fakeStream{newFakeStream(chunks("b1"), nil)},
		gate:    make(chan struct{}),
	}

	b := NewBroadcaster(testChannel("80"),
		testDeps(planner, streamer, newFakePositions(), map[string]string{"80": ".mp4"}))
	b.Start(context.Background())
	defer b.Stop()

	require.Eventually(t, func() bool { return b.State() == StateRunning },
		2*time.Second, 5*time.Millisecond)
	c, err := b.Subscribe()
	require.NoError(t, err)
	defer c.Close()
	close(streamer.gate)

	assert.Equal(t, []string{"b1"}, collectN(t, c, 1))
	require.Eventually(t, func() bool { return len(streamer.calls()) >= 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "http://cdn/b.mp4", streamer.calls()[0])
}

func TestBroadcasterPersistsPosition(t *testing.T) {
	items := testItems([]string{"http://cdn/a.mp4"}, []float64{600})
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC()}
	planner := &fakePlanner{tl: NewTimeline(pos.PlayoutStartTime, items), pos: pos}
	streamer := &scriptedStreamer{scripts: []*fakeStream{
		newFakeStream(chunks("a1"), nil),
	}}
	positions := newFakePositions()

	b := NewBroadcaster(testChannel("5"), testDeps(planner, streamer, positions, nil))
	b.Start(context.Background())

	// The save interval is a nanosecond, so the first advance persists.
	require.Eventually(t, func() bool { return len(positions.recorded()) >= 1 },
		2*time.Second, 5*time.Millisecond)
	b.Stop()
	assert.Equal(t, StateIdle, b.State())
}

func TestBroadcasterEmptyTimelineAborts(t *testing.T) {
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC()}
	planner := &fakePlanner{tl: NewTimeline(pos.PlayoutStartTime, nil), pos: pos}

	b := NewBroadcaster(testChannel("5"),
		testDeps(planner, &scriptedStreamer{}, newFakePositions(), nil))
	b.Start(context.Background())

	require.Eventually(t, func() bool { return b.State() == StateIdle },
		2*time.Second, 5*time.Millisecond)
	_, err := b.Subscribe()
	assert.ErrorIs(t, err, ErrNotBroadcasting)
}

func TestBroadcasterStopClosesClients(t *testing.T) {
	items := testItems([]string{"http://cdn/a.mp4"}, []float64{600})
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC()}
	planner := &fakePlanner{tl: NewTimeline(pos.PlayoutStartTime, items), pos: pos}

	b := NewBroadcaster(testChannel("5"),
		testDeps(planner, &scriptedStreamer{}, newFakePositions(), nil))
	b.Start(context.Background())
	require.Eventually(t, func() bool { return b.State() == StateRunning },
		2*time.Second, 5*time.Millisecond)

	c, err := b.Subscribe()
	require.NoError(t, err)

	b.Stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-c.Chunks():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, b.ClientCount())
}

func TestPrewarmDrainedOnce(t *testing.T) {
	pat := make([]byte, mpegts.PacketSize)
	pat[0], pat[1], pat[2], pat[3] = 0x47, 0x40, 0x00, 0x10
	video := make([]byte, mpegts.PacketSize)
	video[0], video[1], video[2], video[3] = 0x47, 0x41, 0x00, 0x10

	items := testItems(
		[]string{"http://cdn/a.mp4", "http://cdn/b.mp4"},
		[]float64{600, 600},
	)
	pos := &models.ChannelPlaybackPosition{PlayoutStartTime: time.Now().UTC()}
	// Leading video packet before the PAT: the trimmer must cut it.
	streamer := &scriptedStreamer{scripts: []*fakeStream{
		newFakeStream([][]byte{append(append([]byte{}, video...), pat...), video}, nil),
	}}
	deps := testDeps(&fakePlanner{}, streamer, newFakePositions(), nil)
	deps.Sem = NewSemaphore(2)

	b := NewBroadcaster(testChannel("5"), deps)
	b.timeline = NewTimeline(pos.PlayoutStartTime, items)
	b.current = 0
	b.state = StateRunning

	b.prewarmNext(context.Background())

	b.mu.Lock()
	require.NotNil(t, b.prewarm)
	assert.Equal(t, 1, b.prewarm.index)
	assert.True(t, mpegts.LeadsWithPAT(b.prewarm.chunks[0]))
	b.mu.Unlock()

	// Advance into the pre-warmed item; the next subscriber drains it.
	b.mu.Lock()
	b.current = 1
	b.mu.Unlock()

	c, err := b.Subscribe()
	require.NoError(t, err)
	defer c.Close()

	first := <-c.Chunks()
	assert.True(t, mpegts.LeadsWithPAT(first))

	b.mu.Lock()
	assert.Nil(t, b.prewarm, "pre-warm buffers serve exactly one client")
	b.mu.Unlock()
}
