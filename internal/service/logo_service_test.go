package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/assets"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/storage"
)

// countingClient serves the same body for every request and counts calls.
type countingClient struct {
	body   []byte
	status int
	calls  int
}

func (c *countingClient) Do(*http.Request) (*http.Response, error) {
	c.calls++
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(c.body)),
	}, nil
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestLogoService(t *testing.T, client HTTPClient) (*LogoService, *storage.IconCache) {
	t.Helper()
	cache, err := storage.NewIconCache(t.TempDir())
	require.NoError(t, err)
	svc := NewLogoService(cache, 1024*1024)
	if client != nil {
		svc = svc.WithHTTPClient(client)
	}
	return svc, cache
}

func TestLogoServiceFetchesConvertsAndCaches(t *testing.T) {
	client := &countingClient{body: testJPEG(t)}
	svc, cache := newTestLogoService(t, client)

	ch := &models.Channel{Number: "12", LogoPath: "https://example.com/logo.jpg"}

	icon := svc.ChannelIcon(context.Background(), ch)
	require.NotEmpty(t, icon)
	assert.Equal(t, []byte("\x89PNG"), icon[:4])
	assert.Equal(t, 1, client.calls)

	// Cached on disk with the source recorded.
	_, meta, err := cache.Get("12")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, ch.LogoPath, meta.SourcePath)
	assert.Equal(t, 8, meta.Width)

	// Second request is served from cache.
	again := svc.ChannelIcon(context.Background(), ch)
	assert.Equal(t, icon, again)
	assert.Equal(t, 1, client.calls)
}

func TestLogoServiceRefetchesWhenSourceChanges(t *testing.T) {
	client := &countingClient{body: testJPEG(t)}
	svc, _ := newTestLogoService(t, client)

	ch := &models.Channel{Number: "12", LogoPath: "https://example.com/a.jpg"}
	svc.ChannelIcon(context.Background(), ch)
	require.Equal(t, 1, client.calls)

	ch.LogoPath = "https://example.com/b.jpg"
	svc.ChannelIcon(context.Background(), ch)
	assert.Equal(t, 2, client.calls)
}

func TestLogoServiceDefaultIcon(t *testing.T) {
	svc, _ := newTestLogoService(t, nil)

	icon := svc.ChannelIcon(context.Background(), &models.Channel{Number: "3"})
	assert.Equal(t, assets.DefaultChannelIcon, icon)
}

func TestLogoServiceFetchFailureFallsBack(t *testing.T) {
	client := &countingClient{status: http.StatusNotFound}
	svc, _ := newTestLogoService(t, client)

	ch := &models.Channel{Number: "4", LogoPath: "https://example.com/gone.png"}
	icon := svc.ChannelIcon(context.Background(), ch)
	assert.Equal(t, assets.DefaultChannelIcon, icon)
}

func TestLogoServiceUndecodableFallsBack(t *testing.T) {
	client := &countingClient{body: []byte("not an image")}
	svc, _ := newTestLogoService(t, client)

	ch := &models.Channel{Number: "5", LogoPath: "https://example.com/logo.png"}
	icon := svc.ChannelIcon(context.Background(), ch)
	assert.Equal(t, assets.DefaultChannelIcon, icon)
}

func TestLogoServiceInvalidate(t *testing.T) {
	client := &countingClient{body: testJPEG(t)}
	svc, cache := newTestLogoService(t, client)

	ch := &models.Channel{Number: "6", LogoPath: "https://example.com/logo.jpg"}
	svc.ChannelIcon(context.Background(), ch)

	require.NoError(t, svc.Invalidate("6"))
	exists, err := cache.Exists("6")
	require.NoError(t, err)
	assert.False(t, exists)
}
