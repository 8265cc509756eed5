package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tgrayson/streamtv/internal/ffmpeg"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/schedule"
)

const (
	// failureBackoff is slept between consecutive on-demand item failures.
	failureBackoff = 2 * time.Second

	// loudFailureThreshold is when repeated failures escalate to error
	// logs. The session keeps trying regardless.
	loudFailureThreshold = 10

	// onDemandFirstChunk is the flat per-item first-chunk budget. Cold
	// sources get longer than the continuous path's default because no
	// pre-warm hides their startup.
	onDemandFirstChunk = 30 * time.Second
)

// onDemandSession streams a channel for exactly one client, resuming from
// the persisted item index. Unlike a continuous broadcaster nothing runs
// while no client watches.
type onDemandSession struct {
	channel *models.Channel
	deps    Deps
	logger  *slog.Logger

	timeline *Timeline
	index    int
	watched  int64

	ch     chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// newOnDemandSession plans the channel and starts its private advancer.
func newOnDemandSession(ctx context.Context, channel *models.Channel, deps Deps) (*onDemandSession, error) {
	tl, pos, err := deps.Planner.Build(ctx, channel)
	if err != nil {
		return nil, err
	}
	if tl.Len() == 0 {
		return nil, ErrEmptyPlayout
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &onDemandSession{
		channel:  channel,
		deps:     deps,
		logger:   deps.logger().With("channel", channel.Number, "mode", "on_demand"),
		timeline: tl,
		index:    pos.ClampIndex(tl.Len()),
		watched:  pos.TotalItemsWatched,
		ch:       make(chan []byte, clientQueueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(runCtx)
	return s, nil
}

// Chunks returns the session's chunk stream. Closed when the session ends.
func (s *onDemandSession) Chunks() <-chan []byte { return s.ch }

// Close stops the session and waits for the advancer to join.
func (s *onDemandSession) Close() {
	s.cancel()
	<-s.done
}

func (s *onDemandSession) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	failures := 0
	for ctx.Err() == nil {
		item := s.timeline.Items[s.index]

		if reason := s.skipReason(item); reason != "" {
			s.logger.Debug("skipping item", "title", item.Media.Title, "reason", reason)
			s.next(ctx)
			continue
		}

		err := s.streamItem(ctx, item)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			if failures > loudFailureThreshold {
				s.logger.Error("on-demand playback failing repeatedly, still trying",
					"consecutive_failures", failures, "title", item.Media.Title, "error", err)
			} else {
				s.logger.Warn("on-demand item failed, advancing",
					"title", item.Media.Title, "error", err)
			}
			select {
			case <-time.After(failureBackoff):
			case <-ctx.Done():
				return
			}
		} else {
			failures = 0
		}

		s.next(ctx)
	}
}

func (s *onDemandSession) skipReason(item schedule.PlayoutItem) string {
	if strings.Contains(strings.ToLower(item.Media.URL), placeholderMarker) {
		return "placeholder URL"
	}
	if item.Media.EffectiveDuration() < minItemDuration {
		return "too short"
	}
	if filter, ok := s.deps.Config.Playout.ContentFilters[s.channel.Number]; ok && filter != "" {
		if !strings.Contains(item.Media.URL, filter) {
			return fmt.Sprintf("content filter %q", filter)
		}
	}
	return ""
}

// streamItem plays one item into the session's queue. Sends block: a
// single paused client pauses its own stream, nobody else's.
func (s *onDemandSession) streamItem(ctx context.Context, item schedule.PlayoutItem) error {
	if err := s.deps.Sem.Acquire(ctx); err != nil {
		return err
	}
	defer s.deps.Sem.Release()

	media := &models.MediaItem{
		BaseModel: models.BaseModel{ID: item.Media.ID},
		URL:       item.Media.URL,
		Title:     item.Media.Title,
	}
	rs, err := s.deps.Resolver.Resolve(ctx, media, s.channel.Name)
	if err != nil {
		return err
	}

	var info ffmpeg.SourceInfo
	if s.deps.Prober != nil {
		info = s.deps.Prober.ProbeSource(ctx, rs.URL, rs.Headers)
	}

	st, err := s.deps.Streamer.Stream(ctx, ffmpeg.StreamRequest{
		URL:               rs.URL,
		Headers:           rs.Headers,
		InputOpts:         rs.InputOpts,
		Source:            rs.Source,
		Info:              info,
		Profile:           s.channel.Profile,
		FirstChunkTimeout: onDemandFirstChunk,
	})
	if err != nil {
		return err
	}
	defer st.Stop()

	for chunk := range st.Chunks() {
		select {
		case s.ch <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return st.Err()
}

// next advances the resume cursor and persists it so the following session
// picks up where this one left off.
func (s *onDemandSession) next(ctx context.Context) {
	s.index = (s.index + 1) % s.timeline.Len()
	s.watched++
	mediaID := s.timeline.Items[s.index].Media.ID
	err := s.deps.Positions.UpdateProgress(
		context.WithoutCancel(ctx), s.channel.ID, s.index, mediaID, s.watched)
	if err != nil {
		s.logger.Warn("persisting resume index failed", "error", err)
	}
}
