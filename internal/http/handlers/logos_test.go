package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/assets"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/service"
	"github.com/tgrayson/streamtv/internal/storage"
)

func newLogoRouter(t *testing.T, channels []*models.Channel) *chi.Mux {
	t.Helper()
	cache, err := storage.NewIconCache(t.TempDir())
	require.NoError(t, err)
	logos := service.NewLogoService(cache, 0)

	h := NewLogoHandler(&stubChannels{channels: channels}, logos, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestChannelIconDefault(t *testing.T) {
	router := newLogoRouter(t, []*models.Channel{{Number: "100", Name: "Cartoons"}})

	req := httptest.NewRequest(http.MethodGet, "/static/channel_icons/channel_100.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, assets.DefaultChannelIcon, rec.Body.Bytes())
}

func TestChannelIconUnknownChannel(t *testing.T) {
	router := newLogoRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/static/channel_icons/channel_999.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
