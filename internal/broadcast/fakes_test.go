package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/ffmpeg"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/resolver"
	"github.com/tgrayson/streamtv/internal/schedule"
)

type fakePlanner struct {
	tl  *Timeline
	pos *models.ChannelPlaybackPosition
	err error
}

func (f *fakePlanner) Build(context.Context, *models.Channel) (*Timeline, *models.ChannelPlaybackPosition, error) {
	return f.tl, f.pos, f.err
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, item *models.MediaItem, _ string) (*resolver.ResolvedStream, error) {
	return &resolver.ResolvedStream{URL: item.URL, Source: models.SourceUnknown}, nil
}

// fakeStream feeds pre-scripted chunks, then closes. The blocking variant
// stays live until Stop or context cancel.
type fakeStream struct {
	ch       chan []byte
	err      error
	blocking bool
	once     sync.Once
}

func newFakeStream(chunks [][]byte, err error) *fakeStream {
	st := &fakeStream{ch: make(chan []byte, len(chunks)+1), err: err}
	for _, c := range chunks {
		st.ch <- c
	}
	close(st.ch)
	return st
}

func newBlockingStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte), blocking: true}
}

func (f *fakeStream) Chunks() <-chan []byte { return f.ch }
func (f *fakeStream) Err() error            { return f.err }
func (f *fakeStream) Stop() {
	if !f.blocking {
		return
	}
	f.once.Do(func() { close(f.ch) })
}

// scriptedStreamer hands out streams per call in order; once the script is
// exhausted every further call blocks until cancelled.
type scriptedStreamer struct {
	mu      sync.Mutex
	scripts []*fakeStream
	urls    []string
	reqs    []ffmpeg.StreamRequest
	errFor  map[string]error

	// gate, when set, holds the first Stream call until the test is
	// ready (clients attached).
	gate chan struct{}
}

func (s *scriptedStreamer) Stream(ctx context.Context, req ffmpeg.StreamRequest) (MediaStream, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, req.URL)
	s.reqs = append(s.reqs, req)

	if err, ok := s.errFor[req.URL]; ok {
		return nil, err
	}

	if len(s.scripts) == 0 {
		st := newBlockingStream()
		go func() {
			<-ctx.Done()
			st.Stop()
		}()
		return st, nil
	}

	st := s.scripts[0]
	s.scripts = s.scripts[1:]
	return st, nil
}

func (s *scriptedStreamer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

func (s *scriptedStreamer) requests() []ffmpeg.StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ffmpeg.StreamRequest(nil), s.reqs...)
}

type fakePositions struct {
	mu      sync.Mutex
	rows    map[models.ULID]*models.ChannelPlaybackPosition
	updates []int
	orphans int64
}

func newFakePositions() *fakePositions {
	return &fakePositions{rows: make(map[models.ULID]*models.ChannelPlaybackPosition)}
}

func (f *fakePositions) GetByChannelID(_ context.Context, id models.ULID) (*models.ChannelPlaybackPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakePositions) GetOrCreate(_ context.Context, id models.ULID, anchor time.Time) (*models.ChannelPlaybackPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return row, nil
	}
	row := &models.ChannelPlaybackPosition{ChannelID: id, PlayoutStartTime: anchor}
	f.rows[id] = row
	return row, nil
}

func (f *fakePositions) Save(_ context.Context, pos *models.ChannelPlaybackPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[pos.ChannelID] = pos
	return nil
}

func (f *fakePositions) UpdateProgress(_ context.Context, id models.ULID, itemIndex int, mediaID models.ULID, watched int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, itemIndex)
	if row, ok := f.rows[id]; ok {
		row.LastItemIndex = itemIndex
		row.LastItemMediaID = mediaID
		row.TotalItemsWatched = watched
	}
	return nil
}

func (f *fakePositions) Delete(_ context.Context, id models.ULID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakePositions) DeleteOrphaned(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orphans, nil
}

func (f *fakePositions) recorded() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.updates...)
}

func testItems(urls []string, durations []float64) []schedule.PlayoutItem {
	items := make([]schedule.PlayoutItem, len(urls))
	for i, u := range urls {
		items[i] = schedule.PlayoutItem{Media: schedule.Item{
			ID:       models.NewULID(),
			URL:      u,
			Title:    u,
			Duration: durations[i],
		}}
	}
	return items
}
