package epg

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/storage"
)

func newTestCache(t *testing.T) (*Cache, *stubPlanner) {
	t.Helper()
	ch := &models.Channel{Number: "100", Name: "Cartoons"}
	ch.ID = models.NewULID()

	planner := &stubPlanner{byNumber: map[string]*broadcast.Timeline{
		"100": broadcast.NewTimeline(guideNow, guideItems(guideSpec{title: "Toons", dur: 1800})),
	}}
	gen := newTestGenerator([]*models.Channel{ch}, planner, nil)

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return NewCache(gen, sandbox), planner
}

func TestCacheRebuildWritesGuideFile(t *testing.T) {
	cache, _ := newTestCache(t)

	size, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Positive(t, size)

	data, err := cache.sandbox.ReadFile(guideFile)
	require.NoError(t, err)
	assert.Equal(t, size, int64(len(data)))
	assert.Contains(t, string(data), `channel="100"`)
}

func TestCacheServesCachedCopy(t *testing.T) {
	cache, planner := newTestCache(t)

	var first bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &first))
	assert.Contains(t, first.String(), "Toons")

	// Empty the planner: a fresh cache must keep serving the old render.
	planner.byNumber = map[string]*broadcast.Timeline{}

	var second bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &second))
	assert.Equal(t, first.String(), second.String())
}

func TestCacheInvalidateForcesRerender(t *testing.T) {
	cache, planner := newTestCache(t)

	var first bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &first))

	planner.byNumber["100"] = broadcast.NewTimeline(guideNow,
		guideItems(guideSpec{title: "Movies", dur: 3600}))
	cache.Invalidate()

	var second bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &second))
	assert.Contains(t, second.String(), "Movies")
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	cache, planner := newTestCache(t)
	cache.WithTTL(time.Nanosecond)

	var first bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &first))

	planner.byNumber["100"] = broadcast.NewTimeline(guideNow,
		guideItems(guideSpec{title: "News", dur: 900}))
	time.Sleep(time.Millisecond)

	var second bytes.Buffer
	require.NoError(t, cache.WriteXMLTV(context.Background(), &second))
	assert.Contains(t, second.String(), "News")
}
