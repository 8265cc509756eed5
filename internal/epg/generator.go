// Package epg renders the XMLTV guide from the same expanded playout
// timelines the broadcasters run, so guide times match the audible stream
// to the second.
package epg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/schedule"
	"github.com/tgrayson/streamtv/pkg/xmltv"
)

// maxProgrammesPerChannel caps guide length per channel.
const maxProgrammesPerChannel = 200

// Generator writes the XMLTV guide for every enabled channel.
type Generator struct {
	cfg      *config.Config
	channels repository.ChannelRepository
	media    repository.MediaItemRepository
	planner  broadcast.TimelinePlanner
	logger   *slog.Logger

	now func() time.Time
}

// NewGenerator constructs a guide generator.
func NewGenerator(
	cfg *config.Config,
	channels repository.ChannelRepository,
	media repository.MediaItemRepository,
	planner broadcast.TimelinePlanner,
	logger *slog.Logger,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:      cfg,
		channels: channels,
		media:    media,
		planner:  planner,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WriteXMLTV writes the complete guide document. Channel definitions come
// first, then programmes, per the XMLTV DTD.
func (g *Generator) WriteXMLTV(ctx context.Context, w io.Writer) error {
	now := g.now()
	days := g.cfg.Playout.BuildDays
	if days < 1 {
		days = 1
	}
	windowEnd := now.Add(time.Duration(days) * 24 * time.Hour)
	base := g.cfg.Server.ResolveBaseURL()

	chans, err := g.channels.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing enabled channels: %w", err)
	}

	xw := xmltv.NewWriter(w)
	if err := xw.WriteHeader(); err != nil {
		return err
	}

	for _, ch := range chans {
		err := xw.WriteChannel(&xmltv.Channel{
			ID:          ch.Number,
			DisplayName: ch.Name,
			Icon:        LogoURL(base, ch),
		})
		if err != nil {
			return fmt.Errorf("writing channel %s: %w", ch.Number, err)
		}
	}

	for _, ch := range chans {
		if err := g.writeChannelProgrammes(ctx, xw, ch, now, windowEnd); err != nil {
			return fmt.Errorf("writing guide for channel %s: %w", ch.Number, err)
		}
	}

	return xw.WriteFooter()
}

func (g *Generator) writeChannelProgrammes(ctx context.Context, xw *xmltv.Writer, ch *models.Channel, now, windowEnd time.Time) error {
	tl, _, err := g.planner.Build(ctx, ch)
	if err != nil {
		g.logger.Warn("guide falls back to placeholder, timeline build failed",
			"channel", ch.Number, "error", err)
		tl = nil
	}

	if tl == nil || tl.Len() == 0 {
		return xw.WriteProgramme(&xmltv.Programme{
			Start:      now,
			Stop:       windowEnd,
			Channel:    ch.Number,
			Title:      ch.Name + " - Live Stream",
			Categories: []string{"General", "Live"},
			IsLive:     true,
		})
	}

	episodes := newEpisodeCache(g.media)

	// Walk from the absolute start of the item playing right now and
	// assign start times by accumulating durations.
	idx, start := tl.ItemStartAt(now)
	count := 0
	for start.Before(windowEnd) && count < maxProgrammesPerChannel {
		item := tl.Items[idx]
		stop := start.Add(time.Duration(item.Media.EffectiveDuration() * float64(time.Second)))

		if stop.After(now) {
			if err := xw.WriteProgramme(g.programme(ctx, ch, item, episodes, start, stop)); err != nil {
				return err
			}
			count++
		}

		start = stop
		idx = (idx + 1) % tl.Len()
	}
	return nil
}

func (g *Generator) programme(ctx context.Context, ch *models.Channel, item schedule.PlayoutItem, episodes *episodeCache, start, stop time.Time) *xmltv.Programme {
	title := item.CustomTitle
	if title == "" {
		title = item.Media.Title
	}
	if title == "" {
		title = ch.Name
	}

	return &xmltv.Programme{
		Start:      start,
		Stop:       stop,
		Channel:    ch.Number,
		Title:      title,
		SubTitle:   episodes.subtitle(ctx, item.Media.ID),
		Categories: categoriesFor(item),
	}
}

// categoriesFor maps a filler kind to a guide category. Rolls are
// interstitials; named filler kinds pass through.
func categoriesFor(item schedule.PlayoutItem) []string {
	switch item.FillerKind {
	case "":
		return nil
	case string(schedule.OpPreRoll), string(schedule.OpMidRoll), string(schedule.OpPostRoll):
		return []string{"Interstitial"}
	default:
		return []string{item.FillerKind}
	}
}

// episodeCache memoizes per-media episode lookups for one channel walk.
// A repeated cycle touches the same media items many times.
type episodeCache struct {
	media repository.MediaItemRepository
	seen  map[models.ULID]string
}

func newEpisodeCache(media repository.MediaItemRepository) *episodeCache {
	return &episodeCache{media: media, seen: make(map[models.ULID]string)}
}

func (c *episodeCache) subtitle(ctx context.Context, id models.ULID) string {
	if id.IsZero() || c.media == nil {
		return ""
	}
	if sub, ok := c.seen[id]; ok {
		return sub
	}

	var sub string
	if m, err := c.media.GetByID(ctx, id); err == nil && m != nil {
		if info := m.EpisodeInfo(); info != nil {
			sub = fmt.Sprintf("S%02dE%02d", info.Season, info.Episode)
		}
	}
	c.seen[id] = sub
	return sub
}
