package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// Subscription is a live chunk feed for one client, either a fan-out
// client on a continuous channel or a private on-demand session.
type Subscription interface {
	Chunks() <-chan []byte
	Close()
}

// Manager owns the broadcaster per continuous channel and creates
// on-demand sessions lazily. It also owns the process-wide FFmpeg cap
// shared by every advancer, on-demand client, and pre-warmer.
type Manager struct {
	channels repository.ChannelRepository
	deps     Deps
	logger   *slog.Logger

	mu           sync.RWMutex
	broadcasters map[string]*Broadcaster
	runCtx       context.Context
}

// NewManager constructs a manager. Deps.Sem is created here from the
// configured cap when the caller left it nil.
func NewManager(channels repository.ChannelRepository, deps Deps) *Manager {
	if deps.Sem == nil {
		deps.Sem = NewSemaphore(deps.Config.Playout.MaxConcurrentFFmpeg)
	}
	return &Manager{
		channels:     channels,
		deps:         deps,
		logger:       deps.logger(),
		broadcasters: make(map[string]*Broadcaster),
		runCtx:       context.Background(),
	}
}

// StartAll starts a broadcaster for every enabled continuous channel.
// Failures are logged per channel and never block the rest. On-demand
// channels stay dormant until their first client.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	chans, err := m.channels.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing enabled channels: %w", err)
	}

	started := 0
	for _, ch := range chans {
		if ch.Mode() != models.PlayoutContinuous {
			continue
		}
		b := m.ensure(ch)
		b.Start(ctx)
		started++
	}
	m.logger.Info("continuous broadcasters started", "count", started)
	return nil
}

// Subscribe attaches a client to channel number n, starting the
// broadcaster or session as needed.
func (m *Manager) Subscribe(ctx context.Context, number string) (Subscription, error) {
	ch, err := m.channels.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("loading channel %s: %w", number, err)
	}
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", number, ErrChannelNotFound)
	}
	if !ch.IsEnabled() {
		return nil, fmt.Errorf("channel %s: %w", number, ErrChannelDisabled)
	}

	if ch.Mode() == models.PlayoutOnDemand {
		return newOnDemandSession(ctx, ch, m.deps)
	}

	b := m.ensure(ch)
	m.mu.RLock()
	runCtx := m.runCtx
	m.mu.RUnlock()
	b.Start(runCtx)
	return b.Subscribe()
}

// Broadcaster returns the broadcaster for a channel number, if one exists.
func (m *Manager) Broadcaster(number string) (*Broadcaster, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.broadcasters[number]
	return b, ok
}

// BroadcasterStates returns the state of every known broadcaster keyed by
// channel number.
func (m *Manager) BroadcasterStates() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[string]State, len(m.broadcasters))
	for number, b := range m.broadcasters {
		states[number] = b.State()
	}
	return states
}

// ensure returns the broadcaster for the channel, creating it on first use.
func (m *Manager) ensure(ch *models.Channel) *Broadcaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.broadcasters[ch.Number]; ok {
		return b
	}
	b := NewBroadcaster(ch, m.deps)
	m.broadcasters[ch.Number] = b
	return b
}

// Reload rebuilds the broadcaster for a channel after its schedule
// changed on disk. A running broadcaster is stopped and replaced so the
// next timeline build picks up the new schedule; attached clients must
// reconnect. Channels that vanished or left continuous mode are retired.
func (m *Manager) Reload(ctx context.Context, number string) error {
	ch, err := m.channels.GetByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("reloading channel %s: %w", number, err)
	}
	active := ch != nil && ch.IsEnabled() && ch.Mode() == models.PlayoutContinuous

	m.mu.Lock()
	b, known := m.broadcasters[number]
	runCtx := m.runCtx
	m.mu.Unlock()

	if !known {
		if !active {
			return nil
		}
		m.ensure(ch).Start(runCtx)
		m.logger.Info("broadcaster started on schedule reload", "channel", number)
		return nil
	}

	wasRunning := b.State() != StateIdle
	b.Stop()

	m.mu.Lock()
	if !active {
		delete(m.broadcasters, number)
		m.mu.Unlock()
		m.logger.Info("broadcaster retired on schedule reload", "channel", number)
		return nil
	}
	fresh := NewBroadcaster(ch, m.deps)
	m.broadcasters[number] = fresh
	m.mu.Unlock()

	if wasRunning {
		fresh.Start(runCtx)
	}
	m.logger.Info("broadcaster reloaded", "channel", number)
	return nil
}

// SweepPositions persists every running broadcaster's cursor and removes
// position rows for channels that no longer exist.
func (m *Manager) SweepPositions(ctx context.Context) (int, int64, error) {
	m.mu.RLock()
	all := make([]*Broadcaster, 0, len(m.broadcasters))
	for _, b := range m.broadcasters {
		all = append(all, b)
	}
	m.mu.RUnlock()

	flushed := 0
	for _, b := range all {
		if b.State() != StateRunning {
			continue
		}
		b.persist(ctx)
		flushed++
	}

	removed, err := m.deps.Positions.DeleteOrphaned(ctx)
	if err != nil {
		return flushed, 0, fmt.Errorf("sweeping orphaned positions: %w", err)
	}
	return flushed, removed, nil
}

// StopAll stops every broadcaster concurrently and waits for all of them.
func (m *Manager) StopAll() {
	m.mu.RLock()
	all := make([]*Broadcaster, 0, len(m.broadcasters))
	for _, b := range m.broadcasters {
		all = append(all, b)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, b := range all {
		wg.Add(1)
		go func(b *Broadcaster) {
			defer wg.Done()
			b.Stop()
		}(b)
	}
	wg.Wait()
	m.logger.Info("all broadcasters stopped", "count", len(all))
}
