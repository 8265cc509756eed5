package epg

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/schedule"
	"github.com/tgrayson/streamtv/pkg/xmltv"
)

var guideNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubChannels struct {
	enabled []*models.Channel
}

func (s *stubChannels) Create(context.Context, *models.Channel) error { return nil }
func (s *stubChannels) GetByID(context.Context, models.ULID) (*models.Channel, error) {
	return nil, nil
}
func (s *stubChannels) GetByNumber(context.Context, string) (*models.Channel, error) {
	return nil, nil
}
func (s *stubChannels) GetAll(context.Context) ([]*models.Channel, error) { return s.enabled, nil }
func (s *stubChannels) GetEnabled(context.Context) ([]*models.Channel, error) {
	return s.enabled, nil
}
func (s *stubChannels) Update(context.Context, *models.Channel) error { return nil }
func (s *stubChannels) Delete(context.Context, models.ULID) error     { return nil }
func (s *stubChannels) Count(context.Context) (int64, error)          { return 0, nil }

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

type stubPlanner struct {
	byNumber map[string]*broadcast.Timeline
}

func (s *stubPlanner) Build(_ context.Context, ch *models.Channel) (*broadcast.Timeline, *models.ChannelPlaybackPosition, error) {
	tl := s.byNumber[ch.Number]
	if tl == nil {
		tl = broadcast.NewTimeline(guideNow, nil)
	}
	return tl, &models.ChannelPlaybackPosition{PlayoutStartTime: tl.Anchor}, nil
}

type guideSpec struct {
	title string
	dur   float64
	kind  string
}

func guideItems(specs ...guideSpec) []schedule.PlayoutItem {
	items := make([]schedule.PlayoutItem, len(specs))
	for i, sp := range specs {
		items[i] = schedule.PlayoutItem{
			Media: schedule.Item{
				ID:       models.NewULID(),
				URL:      "http://cdn/" + sp.title + ".mp4",
				Title:    sp.title,
				Duration: sp.dur,
			},
			FillerKind: sp.kind,
		}
	}
	return items
}

func newTestGenerator(channels []*models.Channel, planner *stubPlanner, media *stubMedia) *Generator {
	cfg := &config.Config{
		Server:  config.ServerConfig{BaseURL: "http://host:8080"},
		Playout: config.PlayoutConfig{BuildDays: 1},
	}
	if media == nil {
		media = &stubMedia{}
	}
	g := NewGenerator(cfg, &stubChannels{enabled: channels}, media, planner, nil)
	g.now = func() time.Time { return guideNow }
	return g
}

func parseGuide(t *testing.T, xml []byte) ([]*xmltv.Channel, []*xmltv.Programme) {
	t.Helper()
	var (
		chans []*xmltv.Channel
		progs []*xmltv.Programme
	)
	p := &xmltv.Parser{
		OnChannel:   func(c *xmltv.Channel) error { chans = append(chans, c); return nil },
		OnProgramme: func(pr *xmltv.Programme) error { progs = append(progs, pr); return nil },
	}
	require.NoError(t, p.Parse(bytes.NewReader(xml)))
	return chans, progs
}

func TestGuideMatchesTimeline(t *testing.T) {
	// Anchor one hour back; items 45m + 30m: at noon the second item has
	// been playing for 15 minutes.
	anchor := guideNow.Add(-time.Hour)
	items := guideItems(
		guideSpec{"Morning Show", 2700, ""},
		guideSpec{"Shorts", 1800, ""},
	)
	tl := broadcast.NewTimeline(anchor, items)

	ch := &models.Channel{Number: "5", Name: "Five"}
	g := newTestGenerator([]*models.Channel{ch}, &stubPlanner{
		byNumber: map[string]*broadcast.Timeline{"5": tl},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, g.WriteXMLTV(context.Background(), &buf))

	chans, progs := parseGuide(t, buf.Bytes())
	require.Len(t, chans, 1)
	assert.Equal(t, "5", chans[0].ID)
	assert.Equal(t, "Five", chans[0].DisplayName)
	assert.Equal(t, "http://host:8080/static/channel_icons/channel_5.png", chans[0].Icon)

	require.NotEmpty(t, progs)

	// The first programme is the one on air: "Shorts", started 11:45.
	first := progs[0]
	assert.Equal(t, "Shorts", first.Title)
	assert.True(t, first.Start.Equal(guideNow.Add(-15*time.Minute)))
	assert.True(t, first.Stop.Equal(guideNow.Add(15*time.Minute)))

	// Programmes are contiguous and wrap the cycle.
	assert.Equal(t, "Morning Show", progs[1].Title)
	assert.True(t, progs[1].Start.Equal(first.Stop))
	assert.Equal(t, "Shorts", progs[2].Title)
	assert.True(t, progs[2].Start.Equal(progs[1].Stop))

	// Every programme overlaps the build window.
	for _, pr := range progs {
		assert.True(t, pr.Stop.After(guideNow))
		assert.True(t, pr.Start.Before(guideNow.Add(24*time.Hour)))
	}
}

func TestGuidePlaceholderForEmptySchedule(t *testing.T) {
	ch := &models.Channel{Number: "9", Name: "Nine"}
	g := newTestGenerator([]*models.Channel{ch}, &stubPlanner{}, nil)

	var buf bytes.Buffer
	require.NoError(t, g.WriteXMLTV(context.Background(), &buf))

	_, progs := parseGuide(t, buf.Bytes())
	require.Len(t, progs, 1)

	p := progs[0]
	assert.Equal(t, "Nine - Live Stream", p.Title)
	assert.True(t, p.Start.Equal(guideNow))
	assert.True(t, p.Stop.Equal(guideNow.Add(24*time.Hour)))
	assert.ElementsMatch(t, []string{"General", "Live"}, p.Categories)
}

func TestGuideProgrammeCap(t *testing.T) {
	// One-minute items over a 24h window would be 1440 programmes.
	items := guideItems(guideSpec{"Tiny", 60, ""})
	tl := broadcast.NewTimeline(guideNow, items)

	ch := &models.Channel{Number: "1", Name: "One"}
	g := newTestGenerator([]*models.Channel{ch}, &stubPlanner{
		byNumber: map[string]*broadcast.Timeline{"1": tl},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, g.WriteXMLTV(context.Background(), &buf))

	_, progs := parseGuide(t, buf.Bytes())
	assert.Len(t, progs, 200)
}

func TestGuideEpisodeSubtitleAndCategories(t *testing.T) {
	items := guideItems(
		guideSpec{"Pilot", 1800, ""},
		guideSpec{"Bumper", 1800, "pre_roll"},
		guideSpec{"Ad", 1800, "Commercial"},
	)
	tl := broadcast.NewTimeline(guideNow, items)

	media := &stubMedia{byID: map[models.ULID]*models.MediaItem{
		items[0].Media.ID: {
			BaseModel: models.BaseModel{ID: items[0].Media.ID},
			URL:       items[0].Media.URL,
			Metadata:  `{"season": 2, "episode": 7}`,
		},
	}}

	ch := &models.Channel{Number: "4", Name: "Four"}
	g := newTestGenerator([]*models.Channel{ch}, &stubPlanner{
		byNumber: map[string]*broadcast.Timeline{"4": tl},
	}, media)

	var buf bytes.Buffer
	require.NoError(t, g.WriteXMLTV(context.Background(), &buf))

	_, progs := parseGuide(t, buf.Bytes())
	require.GreaterOrEqual(t, len(progs), 3)

	assert.Equal(t, "S02E07", progs[0].SubTitle)
	assert.Equal(t, []string{"General"}, progs[0].Categories, "default category")
	assert.Equal(t, []string{"Interstitial"}, progs[1].Categories)
	assert.Equal(t, []string{"Commercial"}, progs[2].Categories)
}

func TestGuideChannelsPrecedeProgrammes(t *testing.T) {
	chans := []*models.Channel{
		{Number: "1", Name: "One"},
		{Number: "2", Name: "Two"},
	}
	g := newTestGenerator(chans, &stubPlanner{}, nil)

	var buf bytes.Buffer
	require.NoError(t, g.WriteXMLTV(context.Background(), &buf))

	out := buf.String()
	lastChannel := strings.LastIndex(out, "</channel>")
	firstProgramme := strings.Index(out, "<programme")
	require.Positive(t, lastChannel)
	require.Positive(t, firstProgramme)
	assert.Less(t, lastChannel, firstProgramme)
}
