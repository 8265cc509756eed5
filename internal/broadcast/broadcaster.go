package broadcast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/ffmpeg"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/mpegts"
	"github.com/tgrayson/streamtv/internal/schedule"
)

const (
	// clientQueueSize bounds each client's chunk queue. A slow client
	// drops chunks instead of stalling the fan-out.
	clientQueueSize = 50

	prewarmMaxChunks = 20
	prewarmMaxBytes  = 5 << 20
	prewarmStopAfter = 10

	persistEveryItems = 5

	stopJoinTimeout = 10 * time.Second

	// minItemDuration filters out stingers too short to stream.
	minItemDuration = 5.0

	// minSeekOffset is the smallest mid-item resume worth a seek.
	minSeekOffset = 5.0

	// placeholderMarker in a URL means the item is guide filler only.
	placeholderMarker = "placeholder"

	// allSkippedBackoff is slept when a full cycle yields nothing playable.
	allSkippedBackoff = 10 * time.Second
)

// State is a broadcaster's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "IDLE"
	}
}

// Broadcaster runs one continuous channel: a single advancer goroutine
// walks the timeline, streams each item through FFmpeg, and fans chunks
// out to every attached client. Clients may attach while STARTING or
// RUNNING.
type Broadcaster struct {
	channel *models.Channel
	deps    Deps

	mu            sync.Mutex
	state         State
	clients       map[uint64]chan []byte
	nextClientID  uint64
	timeline      *Timeline
	current       int
	prewarm       *prewarmBuffer
	prewarmed     int
	cancel        context.CancelFunc
	done          chan struct{}
	itemsSince    int
	lastPersist   time.Time
	totalWatched  int64
	droppedChunks int64
}

// prewarmBuffer holds the aligned head of an upcoming item so a client
// attaching right after an item change decodes immediately.
type prewarmBuffer struct {
	index  int
	chunks [][]byte
	bytes  int
}

// NewBroadcaster constructs an idle broadcaster for a channel.
func NewBroadcaster(channel *models.Channel, deps Deps) *Broadcaster {
	return &Broadcaster{
		channel:   channel,
		deps:      deps,
		clients:   make(map[uint64]chan []byte),
		prewarmed: -1,
	}
}

// State returns the current lifecycle state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ClientCount returns the number of attached clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Snapshot returns the active timeline and the live item index. The
// timeline is nil until the broadcaster has planned.
func (b *Broadcaster) Snapshot() (*Timeline, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeline, b.current
}

// Start launches the advancer. Idempotent: a broadcaster that is already
// starting or running is left alone.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateIdle {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.state = StateStarting
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(runCtx)
}

// Stop cancels the advancer, waits for it to join, persists the position,
// and detaches every client. The playout anchor is preserved.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if b.state == StateIdle || b.state == StateStopping {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		b.deps.logger().Error("broadcaster advancer did not stop in time",
			"channel", b.channel.Number)
	}

	b.mu.Lock()
	for id, q := range b.clients {
		close(q)
		delete(b.clients, id)
	}
	b.prewarm = nil
	b.state = StateIdle
	b.mu.Unlock()
}

// Subscribe attaches a client. When a pre-warm buffer for the live item is
// waiting it is drained into the new client's queue first; pre-warm
// buffers serve exactly one client.
func (b *Broadcaster) Subscribe() (*Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateStarting && b.state != StateRunning {
		return nil, ErrNotBroadcasting
	}

	q := make(chan []byte, clientQueueSize)
	b.nextClientID++
	id := b.nextClientID
	b.clients[id] = q

	if b.prewarm != nil && b.prewarm.index == b.current {
		for _, chunk := range b.prewarm.chunks {
			q <- chunk
		}
		b.prewarm = nil
	}

	return &Client{b: b, id: id, ch: q}, nil
}

// Client is one attached viewer of a continuous channel.
type Client struct {
	b    *Broadcaster
	id   uint64
	ch   chan []byte
	once sync.Once
}

// Chunks returns the client's chunk queue. Closed on detach or stop.
func (c *Client) Chunks() <-chan []byte { return c.ch }

// Close detaches the client.
func (c *Client) Close() {
	c.once.Do(func() {
		c.b.mu.Lock()
		if _, ok := c.b.clients[c.id]; ok {
			close(c.ch)
			delete(c.b.clients, c.id)
		}
		c.b.mu.Unlock()
	})
}

func (b *Broadcaster) run(ctx context.Context) {
	logger := b.deps.logger().With("channel", b.channel.Number)
	defer func() {
		b.mu.Lock()
		if b.state != StateStopping {
			b.state = StateIdle
		}
		b.mu.Unlock()
		close(b.done)
	}()

	tl, pos, err := b.deps.Planner.Build(ctx, b.channel)
	if err != nil {
		logger.Error("building playout timeline failed", "error", err)
		return
	}
	if tl.Len() == 0 {
		logger.Error("schedule expanded to no items, broadcaster aborting")
		return
	}

	now := time.Now().UTC()
	idx, offset := tl.PositionAt(now)

	b.mu.Lock()
	b.timeline = tl
	b.current = idx
	b.totalWatched = pos.TotalItemsWatched
	b.lastPersist = now
	b.state = StateRunning
	b.mu.Unlock()

	logger.Info("broadcaster running",
		"items", tl.Len(),
		"cycle_seconds", int64(tl.TotalDuration()),
		"start_index", idx,
		"start_offset", int64(offset))

	skipped := 0
	for ctx.Err() == nil {
		b.mu.Lock()
		item := tl.Items[b.current]
		b.mu.Unlock()

		if reason := b.skipReason(item); reason != "" {
			logger.Debug("skipping item", "title", item.Media.Title, "reason", reason)
			skipped++
			if skipped >= tl.Len() {
				logger.Error("no playable items in a full cycle, backing off")
				skipped = 0
				select {
				case <-time.After(allSkippedBackoff):
				case <-ctx.Done():
					return
				}
			}
			b.advance(ctx)
			offset = 0
			continue
		}
		skipped = 0

		if err := b.streamItem(ctx, item, offset); err != nil && ctx.Err() == nil {
			logger.Error("streaming item failed, advancing",
				"title", item.Media.Title, "error", err)
		}
		offset = 0
		b.advance(ctx)
	}

	b.persist(context.WithoutCancel(ctx))
}

// skipReason reports why an item cannot play, or "" when it can.
func (b *Broadcaster) skipReason(item schedule.PlayoutItem) string {
	if strings.Contains(strings.ToLower(item.Media.URL), placeholderMarker) {
		return "placeholder URL"
	}
	if item.Media.EffectiveDuration() < minItemDuration {
		return "too short"
	}
	if filter, ok := b.deps.Config.Playout.ContentFilters[b.channel.Number]; ok && filter != "" {
		if !strings.Contains(item.Media.URL, filter) {
			return fmt.Sprintf("content filter %q", filter)
		}
	}
	return ""
}

func (b *Broadcaster) streamItem(ctx context.Context, item schedule.PlayoutItem, offset float64) error {
	if err := b.deps.Sem.Acquire(ctx); err != nil {
		return err
	}
	defer b.deps.Sem.Release()

	req, err := b.buildRequest(ctx, item)
	if err != nil {
		return err
	}
	if offset >= minSeekOffset {
		req.InputOpts = append([]string{"-ss", strconv.FormatFloat(offset, 'f', 3, 64)}, req.InputOpts...)
	}

	st, err := b.deps.Streamer.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer st.Stop()

	first := true
	for chunk := range st.Chunks() {
		b.fanOut(chunk)
		if first {
			first = false
			go b.prewarmNext(ctx)
		}
	}
	return st.Err()
}

// buildRequest resolves and probes an item into a transcode request.
func (b *Broadcaster) buildRequest(ctx context.Context, item schedule.PlayoutItem) (ffmpeg.StreamRequest, error) {
	media := &models.MediaItem{
		BaseModel: models.BaseModel{ID: item.Media.ID},
		URL:       item.Media.URL,
		Title:     item.Media.Title,
	}
	rs, err := b.deps.Resolver.Resolve(ctx, media, b.channel.Name)
	if err != nil {
		return ffmpeg.StreamRequest{}, err
	}

	var info ffmpeg.SourceInfo
	if b.deps.Prober != nil {
		info = b.deps.Prober.ProbeSource(ctx, rs.URL, rs.Headers)
	}

	return ffmpeg.StreamRequest{
		URL:       rs.URL,
		Headers:   rs.Headers,
		InputOpts: rs.InputOpts,
		Source:    rs.Source,
		Info:      info,
		Profile:   b.channel.Profile,
	}, nil
}

// fanOut delivers one chunk to every client queue, non-blocking. Full
// queues drop the chunk.
func (b *Broadcaster) fanOut(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.clients {
		select {
		case q <- chunk:
		default:
			b.droppedChunks++
		}
	}
}

// advance moves the cycle cursor and persists the position every
// persistEveryItems items or once per save interval. Stale pre-warm
// buffers are discarded so the slot can be warmed again next cycle.
func (b *Broadcaster) advance(ctx context.Context) {
	b.mu.Lock()
	b.current = (b.current + 1) % b.timeline.Len()
	b.itemsSince++
	b.totalWatched++
	if b.prewarm != nil && b.prewarm.index != b.current {
		b.prewarm = nil
	}
	if b.prewarmed != b.current {
		b.prewarmed = -1
	}
	due := b.itemsSince >= persistEveryItems ||
		time.Since(b.lastPersist) >= b.deps.Config.Playout.PositionSaveInterval
	b.mu.Unlock()

	if due {
		b.persist(ctx)
	}
}

func (b *Broadcaster) persist(ctx context.Context) {
	b.mu.Lock()
	idx := b.current
	watched := b.totalWatched
	var mediaID models.ULID
	if b.timeline != nil && b.timeline.Len() > 0 {
		mediaID = b.timeline.Items[idx].Media.ID
	}
	b.itemsSince = 0
	b.lastPersist = time.Now().UTC()
	b.mu.Unlock()

	if err := b.deps.Positions.UpdateProgress(ctx, b.channel.ID, idx, mediaID, watched); err != nil {
		b.deps.logger().Warn("persisting playout position failed",
			"channel", b.channel.Number, "error", err)
	}
}

// prewarmNext buffers the aligned head of the next playable item while the
// current one streams. Skipped when the process cap has no free slot.
func (b *Broadcaster) prewarmNext(ctx context.Context) {
	b.mu.Lock()
	tl := b.timeline
	next := (b.current + 1) % tl.Len()
	already := b.prewarmed == next || (b.prewarm != nil && b.prewarm.index == next)
	b.mu.Unlock()

	if already || tl.Len() < 2 {
		return
	}
	item := tl.Items[next]
	if b.skipReason(item) != "" {
		return
	}
	if !b.deps.Sem.TryAcquire() {
		return
	}
	defer b.deps.Sem.Release()

	logger := b.deps.logger().With("channel", b.channel.Number)

	req, err := b.buildRequest(ctx, item)
	if err != nil {
		logger.Debug("pre-warm resolve failed", "title", item.Media.Title, "error", err)
		return
	}
	st, err := b.deps.Streamer.Stream(ctx, req)
	if err != nil {
		logger.Debug("pre-warm start failed", "title", item.Media.Title, "error", err)
		return
	}
	defer st.Stop()

	var (
		aligner mpegts.Aligner
		buf     prewarmBuffer
		count   int
	)
	buf.index = next
	for chunk := range st.Chunks() {
		if aligned := aligner.Push(chunk); len(aligned) > 0 {
			buf.chunks = append(buf.chunks, aligned)
			buf.bytes += len(aligned)
		}
		count++
		for len(buf.chunks) > prewarmMaxChunks || buf.bytes > prewarmMaxBytes {
			buf.bytes -= len(buf.chunks[0])
			buf.chunks = buf.chunks[1:]
		}
		if count >= prewarmStopAfter {
			break
		}
	}
	st.Stop()

	// Late joiners must decode from the first buffered byte: trim to the
	// first PAT packet.
	for len(buf.chunks) > 0 {
		off := mpegts.FindPATOffset(buf.chunks[0])
		if off == 0 {
			break
		}
		if off > 0 {
			buf.bytes -= off
			buf.chunks[0] = buf.chunks[0][off:]
			break
		}
		buf.bytes -= len(buf.chunks[0])
		buf.chunks = buf.chunks[1:]
	}
	if len(buf.chunks) == 0 {
		return
	}

	b.mu.Lock()
	b.prewarm = &buf
	b.prewarmed = next
	b.mu.Unlock()
	logger.Debug("pre-warmed next item",
		"index", next, "chunks", len(buf.chunks), "bytes", buf.bytes)
}
