package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/schedule"
)

// Planner builds a channel's playout timeline: it loads or creates the
// playout anchor, parses the channel's YAML schedule (falling back to the
// database-defined schedule), and expands it against the collection
// catalog. The broadcaster and the EPG generator share one planner so both
// see identical timelines.
type Planner struct {
	cfg         *config.Config
	schedules   repository.ScheduleRepository
	collections repository.CollectionRepository
	media       repository.MediaItemRepository
	positions   repository.PlaybackPositionRepository
	logger      *slog.Logger

	now func() time.Time
}

// NewPlanner constructs a planner.
func NewPlanner(
	cfg *config.Config,
	schedules repository.ScheduleRepository,
	collections repository.CollectionRepository,
	media repository.MediaItemRepository,
	positions repository.PlaybackPositionRepository,
	logger *slog.Logger,
) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		cfg:         cfg,
		schedules:   schedules,
		collections: collections,
		media:       media,
		positions:   positions,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Build expands the channel's schedule into a timeline. The position row is
// created on first call; its anchor never changes afterwards. A channel
// with no schedule yields an empty timeline, not an error.
func (p *Planner) Build(ctx context.Context, ch *models.Channel) (*Timeline, *models.ChannelPlaybackPosition, error) {
	now := p.now()

	pos, err := p.positions.GetOrCreate(ctx, ch.ID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("loading playout position for channel %s: %w", ch.Number, err)
	}

	parsed, err := p.loadSchedule(ctx, ch)
	if err != nil {
		return nil, nil, err
	}
	if parsed == nil {
		return NewTimeline(pos.PlayoutStartTime, nil), pos, nil
	}
	for _, m := range parsed.Malformed {
		p.logger.Warn("skipping malformed schedule directive",
			"channel", ch.Number, "path", m.Path, "reason", m.Reason)
	}

	items := schedule.Expand(parsed, p.lookup(ctx), schedule.ExpandOptions{
		ChannelNumber: ch.Number,
		Now:           now,
		MaxItems:      p.cfg.Playout.MaxItems,
		Logger:        p.logger.With("channel", ch.Number),
	})

	return NewTimeline(pos.PlayoutStartTime, items), pos, nil
}

// loadSchedule prefers the YAML file on disk, then the database schedule.
// Returns nil when the channel has neither.
func (p *Planner) loadSchedule(ctx context.Context, ch *models.Channel) (*schedule.ParsedSchedule, error) {
	path, err := schedule.FindScheduleFile(p.cfg.Playout.SchedulesDir, ch.Number)
	if err == nil {
		parsed, err := schedule.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("parsing schedule for channel %s: %w", ch.Number, err)
		}
		return parsed, nil
	}
	if !errors.Is(err, schedule.ErrScheduleNotFound) {
		return nil, err
	}

	stored, err := p.schedules.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule for channel %s: %w", ch.Number, err)
	}
	if stored == nil {
		return nil, nil
	}
	return schedule.FromModel(stored), nil
}

// lookup resolves schedule content keys: "media:{ulid}" keys hit the media
// repository directly, anything else is a collection name.
func (p *Planner) lookup(ctx context.Context) schedule.Lookup {
	return schedule.LookupFunc(func(name string) ([]schedule.Item, bool) {
		if id, ok := strings.CutPrefix(name, schedule.MediaKeyPrefix); ok {
			return p.mediaItem(ctx, id)
		}

		col, err := p.collections.GetByName(ctx, name)
		if err != nil || col == nil {
			return nil, false
		}
		members, err := p.collections.GetItems(ctx, col.ID)
		if err != nil {
			return nil, false
		}
		items := make([]schedule.Item, 0, len(members))
		for _, m := range members {
			items = append(items, schedule.Item{
				ID:       m.ID,
				URL:      m.URL,
				Title:    m.Title,
				Duration: m.Duration(0),
			})
		}
		return items, true
	})
}

var _ TimelinePlanner = (*Planner)(nil)

func (p *Planner) mediaItem(ctx context.Context, rawID string) ([]schedule.Item, bool) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, false
	}
	m, err := p.media.GetByID(ctx, id)
	if err != nil || m == nil {
		return nil, false
	}
	return []schedule.Item{{ID: m.ID, URL: m.URL, Title: m.Title, Duration: m.Duration(0)}}, true
}
