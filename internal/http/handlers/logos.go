package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/service"
)

// LogoHandler serves rendered channel icons. The URL shape matches what
// the playlist and guide emit for channels without an absolute logo URL.
type LogoHandler struct {
	channels repository.ChannelRepository
	logos    *service.LogoService
	logger   *slog.Logger
}

// NewLogoHandler creates a logo handler.
func NewLogoHandler(channels repository.ChannelRepository, logos *service.LogoService, logger *slog.Logger) *LogoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogoHandler{channels: channels, logos: logos, logger: logger}
}

// RegisterRoutes mounts the icon route.
func (h *LogoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/static/channel_icons/channel_{number}.png", h.ChannelIcon)
}

// ChannelIcon handles GET /static/channel_icons/channel_{number}.png.
func (h *LogoHandler) ChannelIcon(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	var ch *models.Channel
	if _, err := strconv.Atoi(number); err == nil {
		found, err := h.channels.GetByNumber(r.Context(), number)
		if err != nil {
			h.logger.Error("looking up channel for icon", slog.String("error", err.Error()))
			http.Error(w, "failed to load icon", http.StatusInternalServerError)
			return
		}
		ch = found
	}
	if ch == nil {
		http.NotFound(w, r)
		return
	}

	icon := h.logos.ChannelIcon(r.Context(), ch)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(icon)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(icon)
}
