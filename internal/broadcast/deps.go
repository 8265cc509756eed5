// Package broadcast runs channel playout: one broadcaster per continuous
// channel fanning a single transcoded stream out to every attached client,
// plus per-client sessions for on-demand channels. The manager owns the
// broadcaster map and the process-wide FFmpeg cap.
package broadcast

import (
	"context"
	"log/slog"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/ffmpeg"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/resolver"
)

// StreamResolver resolves a catalog URL into a directly playable stream.
type StreamResolver interface {
	Resolve(ctx context.Context, item *models.MediaItem, channelNameHint string) (*resolver.ResolvedStream, error)
}

// MediaStream is one running transcode session.
type MediaStream interface {
	Chunks() <-chan []byte
	Err() error
	Stop()
}

// Streamer starts transcode sessions.
type Streamer interface {
	Stream(ctx context.Context, req ffmpeg.StreamRequest) (MediaStream, error)
}

// SourceProber inspects a resolved stream before command synthesis.
type SourceProber interface {
	ProbeSource(ctx context.Context, url string, headers map[string]string) ffmpeg.SourceInfo
}

// FFmpegStreamer adapts the concrete ffmpeg streamer to the Streamer
// interface.
type FFmpegStreamer struct {
	S *ffmpeg.Streamer
}

// Stream starts an ffmpeg session for the request.
func (f FFmpegStreamer) Stream(ctx context.Context, req ffmpeg.StreamRequest) (MediaStream, error) {
	st, err := f.S.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return st, nil
}

var _ Streamer = FFmpegStreamer{}

// TimelinePlanner builds a channel's playout timeline and position row.
type TimelinePlanner interface {
	Build(ctx context.Context, ch *models.Channel) (*Timeline, *models.ChannelPlaybackPosition, error)
}

// Deps bundles everything a broadcaster needs to run.
type Deps struct {
	Planner   TimelinePlanner
	Resolver  StreamResolver
	Streamer  Streamer
	Prober    SourceProber
	Positions repository.PlaybackPositionRepository
	Config    *config.Config
	Logger    *slog.Logger

	// Sem caps concurrent FFmpeg children process-wide: advancers,
	// on-demand clients, and pre-warmers all draw from it.
	Sem Semaphore
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Semaphore is a counting limit on concurrent FFmpeg children.
type Semaphore chan struct{}

// NewSemaphore returns a semaphore admitting n holders.
func NewSemaphore(n int) Semaphore {
	if n < 1 {
		n = 1
	}
	return make(Semaphore, n)
}

// Acquire blocks until a slot frees or the context ends.
func (s Semaphore) Acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only when one is immediately free.
func (s Semaphore) TryAcquire() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot.
func (s Semaphore) Release() {
	<-s
}
