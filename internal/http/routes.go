package http

import (
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/http/handlers"
	"github.com/tgrayson/streamtv/internal/http/middleware"

	"github.com/go-chi/chi/v5"
)

// Handlers groups everything the server mounts. Nil fields are skipped,
// which keeps partial wiring possible in tests.
type Handlers struct {
	Channels    *handlers.ChannelHandler
	Collections *handlers.CollectionHandler
	Media       *handlers.MediaHandler
	Schedules   *handlers.ScheduleHandler
	Positions   *handlers.PositionHandler
	Imports     *handlers.ImportHandler
	Health      *handlers.HealthHandler

	HDHomeRun *handlers.HDHomeRunHandler
	IPTV      *handlers.IPTVHandler
	Logos     *handlers.LogoHandler
}

// RegisterHandlers mounts the management API and the client-facing
// IPTV/HDHomeRun surface. The client surface sits behind the access token
// gate; the management API is gated by X-API-Key in the server middleware
// chain.
func (s *Server) RegisterHandlers(cfg *config.Config, h Handlers) {
	if h.Channels != nil {
		h.Channels.Register(s.api)
	}
	if h.Collections != nil {
		h.Collections.Register(s.api)
	}
	if h.Media != nil {
		h.Media.Register(s.api)
	}
	if h.Schedules != nil {
		h.Schedules.Register(s.api)
	}
	if h.Positions != nil {
		h.Positions.Register(s.api)
	}
	if h.Imports != nil {
		h.Imports.Register(s.api)
	}
	if h.Health != nil {
		h.Health.Register(s.api)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.AccessToken(cfg.Security.AccessToken))
		if h.HDHomeRun != nil {
			h.HDHomeRun.RegisterRoutes(r)
		}
		if h.IPTV != nil {
			h.IPTV.RegisterRoutes(r)
		}
		if h.Logos != nil {
			h.Logos.RegisterRoutes(r)
		}
	})
}
