package handlers

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/go-chi/chi/v5"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/epg"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/resolver"
	"github.com/tgrayson/streamtv/pkg/httpclient"
	"github.com/tgrayson/streamtv/pkg/m3u"
)

// StreamManager hands out live chunk subscriptions per channel number.
type StreamManager interface {
	Subscribe(ctx context.Context, number string) (broadcast.Subscription, error)
}

// GuideWriter writes the XMLTV document for all enabled channels.
type GuideWriter interface {
	WriteXMLTV(ctx context.Context, w io.Writer) error
}

// SegmentResolver resolves a media item to a directly playable URL.
type SegmentResolver interface {
	Resolve(ctx context.Context, item *models.MediaItem, channelNameHint string) (*resolver.ResolvedStream, error)
}

// IPTVHandler serves the playlist, guide, and streaming endpoints.
type IPTVHandler struct {
	cfg      *config.Config
	channels repository.ChannelRepository
	media    repository.MediaItemRepository
	manager  StreamManager
	planner  broadcast.TimelinePlanner
	guide    GuideWriter
	resolver SegmentResolver
	client   *httpclient.Client
	logger   *slog.Logger

	now func() time.Time
}

// NewIPTVHandler creates the IPTV handler.
func NewIPTVHandler(
	cfg *config.Config,
	channels repository.ChannelRepository,
	media repository.MediaItemRepository,
	manager StreamManager,
	planner broadcast.TimelinePlanner,
	guide GuideWriter,
	segments SegmentResolver,
	logger *slog.Logger,
) *IPTVHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPTVHandler{
		cfg:      cfg,
		channels: channels,
		media:    media,
		manager:  manager,
		planner:  planner,
		guide:    guide,
		resolver: segments,
		client:   httpclient.NewWithDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the IPTV surface.
func (h *IPTVHandler) RegisterRoutes(r chi.Router) {
	r.Get("/iptv/channels.m3u", h.Playlist)
	r.Get("/iptv/xmltv.xml", h.XMLTV)
	r.Get("/iptv/xmltv.xml.gz", h.XMLTVGz)
	r.Get("/iptv/channel/{number}.ts", h.StreamTS)
	r.Get("/iptv/channel/{number}.m3u8", h.StreamHLS)
	r.Get("/iptv/stream/{mediaID}", h.StreamMedia)
	r.Get("/hdhomerun/auto/{vnumber}", h.StreamAuto)
	if h.cfg.HDHomeRun.Enabled {
		r.Get("/auto/{vnumber}", h.StreamAuto)
	}
}

func (h *IPTVHandler) baseURL(r *http.Request) string {
	if h.cfg.Server.BaseURL != "" {
		return h.cfg.Server.ResolveBaseURL()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Playlist handles GET /iptv/channels.m3u.
func (h *IPTVHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.GetEnabled(r.Context())
	if err != nil {
		h.logger.Error("listing channels for playlist", slog.String("error", err.Error()))
		http.Error(w, "failed to build playlist", http.StatusInternalServerError)
		return
	}

	base := h.baseURL(r)
	w.Header().Set("Content-Type", "audio/x-mpegurl")

	writer := m3u.NewWriter(w)
	if err := writer.WriteHeader(); err != nil {
		return
	}
	for _, ch := range channels {
		entry := &m3u.Entry{
			TvgID:      ch.Number,
			TvgName:    ch.Name,
			TvgLogo:    epg.LogoURL(base, ch),
			GroupTitle: ch.Group,
			Title:      ch.Name,
			URL:        fmt.Sprintf("%s/iptv/channel/%s.ts", base, ch.Number),
		}
		if err := writer.WriteEntry(entry); err != nil {
			return
		}
	}
}

// XMLTV handles GET /iptv/xmltv.xml.
func (h *IPTVHandler) XMLTV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	if err := h.guide.WriteXMLTV(r.Context(), w); err != nil {
		h.logger.Error("writing XMLTV", slog.String("error", err.Error()))
	}
}

// XMLTVGz handles GET /iptv/xmltv.xml.gz.
func (h *IPTVHandler) XMLTVGz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="xmltv.xml.gz"`)

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if err := h.guide.WriteXMLTV(r.Context(), gz); err != nil {
		h.logger.Error("writing compressed XMLTV", slog.String("error", err.Error()))
	}
}

// StreamTS handles GET /iptv/channel/{number}.ts.
func (h *IPTVHandler) StreamTS(w http.ResponseWriter, r *http.Request) {
	h.serveTS(w, r, chi.URLParam(r, "number"))
}

// StreamAuto handles GET /hdhomerun/auto/v{number}, the lineup URL form.
func (h *IPTVHandler) StreamAuto(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimPrefix(chi.URLParam(r, "vnumber"), "v")
	h.serveTS(w, r, number)
}

func (h *IPTVHandler) serveTS(w http.ResponseWriter, r *http.Request, number string) {
	sub, err := h.manager.Subscribe(r.Context(), number)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, broadcast.ErrChannelNotFound):
			status = http.StatusNotFound
		case errors.Is(err, broadcast.ErrChannelDisabled),
			errors.Is(err, broadcast.ErrNotBroadcasting),
			errors.Is(err, broadcast.ErrEmptyPlayout):
			status = http.StatusServiceUnavailable
		}
		h.logger.Warn("stream subscribe failed",
			slog.String("channel", number),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, private")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			// Client gone; not an error.
			return
		case chunk, ok := <-sub.Chunks():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// StreamHLS handles GET /iptv/channel/{number}.m3u8 with an event-style
// media playlist. Segment order starts at the currently live item and the
// media sequence is the live index, so a joining player lands on air.
func (h *IPTVHandler) StreamHLS(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	ch, err := h.channels.GetByNumber(r.Context(), number)
	if err != nil {
		http.Error(w, "failed to load channel", http.StatusInternalServerError)
		return
	}
	if ch == nil || !ch.IsEnabled() {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	tl, _, err := h.planner.Build(r.Context(), ch)
	if err != nil {
		h.logger.Error("building timeline for HLS playlist",
			slog.String("channel", number),
			slog.String("error", err.Error()),
		)
		http.Error(w, "failed to build playlist", http.StatusInternalServerError)
		return
	}
	if tl.Len() == 0 {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	live, _ := tl.PositionAt(h.now())
	base := h.baseURL(r)

	target := 0
	segments := make([]*playlist.MediaSegment, 0, tl.Len())
	for i := 0; i < tl.Len(); i++ {
		item := tl.Items[(live+i)%tl.Len()]
		dur := item.Media.EffectiveDuration()
		if int(dur+0.999) > target {
			target = int(dur + 0.999)
		}
		segments = append(segments, &playlist.MediaSegment{
			Duration: time.Duration(dur * float64(time.Second)),
			Title:    item.Media.Title,
			URI:      fmt.Sprintf("%s/iptv/stream/%s", base, item.Media.ID),
		})
	}

	plType := playlist.MediaPlaylistTypeEvent
	pl := &playlist.Media{
		Version:        3,
		TargetDuration: target,
		MediaSequence:  live,
		PlaylistType:   &plType,
		Segments:       segments,
		// No Endlist: the cycle repeats.
	}

	data, err := pl.Marshal()
	if err != nil {
		http.Error(w, "failed to marshal playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

// StreamMedia handles GET /iptv/stream/{mediaID}: resolve the item and
// redirect the player at the source. Sources needing session headers are
// proxied instead, since a redirect cannot carry them.
func (h *IPTVHandler) StreamMedia(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "mediaID"))
	if err != nil {
		http.Error(w, "invalid media ID", http.StatusBadRequest)
		return
	}

	item, err := h.media.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load media item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	resolved, err := h.resolver.Resolve(r.Context(), item, "")
	if err != nil {
		h.logger.Warn("resolving media for direct stream",
			slog.String("media_id", id.String()),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if len(resolved.Headers) == 0 {
		http.Redirect(w, r, resolved.URL, http.StatusFound)
		return
	}

	h.proxyStream(w, r, resolved)
}

func (h *IPTVHandler) proxyStream(w http.ResponseWriter, r *http.Request, resolved *resolver.ResolvedStream) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, resolved.URL, nil)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	for k, v := range resolved.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
