package handlers

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/resolver"
)

// stubChannels serves a fixed channel list keyed by number.
type stubChannels struct {
	channels []*models.Channel
}

func (s *stubChannels) Create(context.Context, *models.Channel) error { return nil }
func (s *stubChannels) GetByID(_ context.Context, id models.ULID) (*models.Channel, error) {
	for _, ch := range s.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, nil
}
func (s *stubChannels) GetByNumber(_ context.Context, number string) (*models.Channel, error) {
	for _, ch := range s.channels {
		if ch.Number == number {
			return ch, nil
		}
	}
	return nil, nil
}
func (s *stubChannels) GetAll(context.Context) ([]*models.Channel, error) {
	return s.channels, nil
}
func (s *stubChannels) GetEnabled(context.Context) ([]*models.Channel, error) {
	enabled := make([]*models.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabled = append(enabled, ch)
		}
	}
	return enabled, nil
}
func (s *stubChannels) Update(context.Context, *models.Channel) error { return nil }
func (s *stubChannels) Delete(context.Context, models.ULID) error     { return nil }
func (s *stubChannels) Count(context.Context) (int64, error) {
	return int64(len(s.channels)), nil
}

// stubMedia serves media items by ID.
type stubMedia struct {
	byID map[models.ULID]*models.MediaItem
}

func (s *stubMedia) Create(context.Context, *models.MediaItem) error        { return nil }
func (s *stubMedia) CreateBatch(context.Context, []*models.MediaItem) error { return nil }
func (s *stubMedia) GetByID(_ context.Context, id models.ULID) (*models.MediaItem, error) {
	return s.byID[id], nil
}
func (s *stubMedia) GetByURL(context.Context, string) (*models.MediaItem, error) { return nil, nil }
func (s *stubMedia) GetAllPaginated(context.Context, int, int) ([]*models.MediaItem, int64, error) {
	return nil, 0, nil
}
func (s *stubMedia) Search(context.Context, string, int) ([]*models.MediaItem, error) {
	return nil, nil
}
func (s *stubMedia) Upsert(context.Context, *models.MediaItem) error { return nil }
func (s *stubMedia) Update(context.Context, *models.MediaItem) error { return nil }
func (s *stubMedia) Delete(context.Context, models.ULID) error       { return nil }

// stubSubscription feeds a fixed set of chunks then closes.
type stubSubscription struct {
	chunks    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newStubSubscription(chunks ...[]byte) *stubSubscription {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return &stubSubscription{chunks: ch, closed: make(chan struct{})}
}

func (s *stubSubscription) Chunks() <-chan []byte { return s.chunks }
func (s *stubSubscription) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// stubManager returns a canned subscription or error.
type stubManager struct {
	sub *stubSubscription
	err error
}

func (m *stubManager) Subscribe(context.Context, string) (broadcast.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sub, nil
}

// stubGuide writes a fixed document.
type stubGuide struct {
	doc string
}

func (g *stubGuide) WriteXMLTV(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, g.doc)
	return err
}

// stubResolver returns a canned resolution.
type stubResolver struct {
	resolved *resolver.ResolvedStream
	err      error
}

func (r *stubResolver) Resolve(context.Context, *models.MediaItem, string) (*resolver.ResolvedStream, error) {
	return r.resolved, r.err
}

// stubPlanner returns a canned timeline per channel number.
type stubPlanner struct {
	byNumber map[string]*broadcast.Timeline
}

func (s *stubPlanner) Build(_ context.Context, ch *models.Channel) (*broadcast.Timeline, *models.ChannelPlaybackPosition, error) {
	tl := s.byNumber[ch.Number]
	if tl == nil {
		tl = broadcast.NewTimeline(time.Now().UTC(), nil)
	}
	return tl, &models.ChannelPlaybackPosition{PlayoutStartTime: tl.Anchor}, nil
}
