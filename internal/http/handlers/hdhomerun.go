// Package handlers provides the streamtv HTTP API and client-facing
// IPTV/HDHomeRun endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/repository"
)

// DiscoverResponse is the HDHomeRun discovery document. Plex and other DVR
// clients key on these exact field names.
type DiscoverResponse struct {
	FriendlyName    string `json:"FriendlyName"`
	ModelNumber     string `json:"ModelNumber"`
	FirmwareName    string `json:"FirmwareName"`
	FirmwareVersion string `json:"FirmwareVersion"`
	DeviceID        string `json:"DeviceID"`
	DeviceAuth      string `json:"DeviceAuth"`
	BaseURL         string `json:"BaseURL"`
	LineupURL       string `json:"LineupURL"`
	TunerCount      int    `json:"TunerCount"`
	EPGURL          string `json:"EPGURL"`
}

// LineupEntry is one channel in the HDHomeRun lineup.
type LineupEntry struct {
	GuideNumber string `json:"GuideNumber"`
	GuideName   string `json:"GuideName"`
	URL         string `json:"URL"`
	HD          int    `json:"HD"`
}

// LineupStatus reports tuner scan state. Always idle: the lineup is
// database-driven, there is nothing to scan.
type LineupStatus struct {
	ScanInProgress int      `json:"ScanInProgress"`
	ScanPossible   int      `json:"ScanPossible"`
	Source         string   `json:"Source"`
	SourceList     []string `json:"SourceList"`
}

// HDHomeRunHandler serves the HDHomeRun emulation surface.
type HDHomeRunHandler struct {
	cfg      *config.Config
	channels repository.ChannelRepository
	version  string
	logger   *slog.Logger
}

// NewHDHomeRunHandler creates an HDHomeRun handler.
func NewHDHomeRunHandler(cfg *config.Config, channels repository.ChannelRepository, version string, logger *slog.Logger) *HDHomeRunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &HDHomeRunHandler{
		cfg:      cfg,
		channels: channels,
		version:  version,
		logger:   logger,
	}
}

// RegisterRoutes mounts the HDHomeRun surface under /hdhomerun, with
// root-level aliases when emulation is enabled (Plex probes the root).
func (h *HDHomeRunHandler) RegisterRoutes(r chi.Router) {
	r.Get("/hdhomerun/discover.json", h.Discover)
	r.Get("/hdhomerun/lineup.json", h.Lineup)
	r.Get("/hdhomerun/lineup_status.json", h.LineupStatusHandler)
	if h.cfg.HDHomeRun.Enabled {
		r.Get("/discover.json", h.Discover)
		r.Get("/lineup.json", h.Lineup)
		r.Get("/lineup_status.json", h.LineupStatusHandler)
		r.Post("/lineup.post", h.LineupPost)
		r.Get("/device.xml", h.DeviceXML)
		r.Get("/service.xml", h.ServiceXML)
	}
}

// baseURL prefers the request Host so discovery works from any interface.
func (h *HDHomeRunHandler) baseURL(r *http.Request) string {
	if h.cfg.Server.BaseURL != "" {
		return h.cfg.Server.ResolveBaseURL()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Discover handles GET /discover.json.
func (h *HDHomeRunHandler) Discover(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	firmware := fmt.Sprintf("streamtv-%s", h.version)

	resp := DiscoverResponse{
		FriendlyName:    h.cfg.HDHomeRun.FriendlyName,
		ModelNumber:     "HDTC-2US",
		FirmwareName:    firmware,
		FirmwareVersion: firmware,
		DeviceID:        h.cfg.HDHomeRun.DeviceID,
		DeviceAuth:      "streamtv",
		BaseURL:         base,
		LineupURL:       base + "/lineup.json",
		TunerCount:      h.cfg.HDHomeRun.TunerCount,
		EPGURL:          base + "/iptv/xmltv.xml",
	}

	writeJSON(w, resp)
}

// Lineup handles GET /lineup.json.
func (h *HDHomeRunHandler) Lineup(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.GetEnabled(r.Context())
	if err != nil {
		h.logger.Error("listing channels for lineup", slog.String("error", err.Error()))
		http.Error(w, "failed to build lineup", http.StatusInternalServerError)
		return
	}

	base := h.baseURL(r)
	lineup := make([]LineupEntry, 0, len(channels))
	for _, ch := range channels {
		lineup = append(lineup, LineupEntry{
			GuideNumber: ch.Number,
			GuideName:   ch.GuideName(),
			URL:         fmt.Sprintf("%s/hdhomerun/auto/v%s", base, ch.Number),
			HD:          1,
		})
	}

	writeJSON(w, lineup)
}

// LineupStatusHandler handles GET /lineup_status.json.
func (h *HDHomeRunHandler) LineupStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, LineupStatus{
		ScanInProgress: 0,
		ScanPossible:   1,
		Source:         "Antenna",
		SourceList:     []string{"Antenna", "Cable"},
	})
}

// LineupPost handles POST /lineup.post (Plex scan trigger). The scan is
// acknowledged and ignored.
func (h *HDHomeRunHandler) LineupPost(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("scan") == "start" {
		h.logger.Info("channel scan requested, lineup is database-driven")
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeviceXML handles GET /device.xml, the UPnP device description SSDP
// discovery points at.
func (h *HDHomeRunHandler) DeviceXML(w http.ResponseWriter, r *http.Request) {
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion>
    <major>1</major>
    <minor>0</minor>
  </specVersion>
  <URLBase>%s</URLBase>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>Silicondust</manufacturer>
    <modelName>HDTC-2US</modelName>
    <modelNumber>HDTC-2US</modelNumber>
    <serialNumber>%s</serialNumber>
    <UDN>uuid:%s</UDN>
  </device>
</root>`, h.baseURL(r), h.cfg.HDHomeRun.FriendlyName, h.cfg.HDHomeRun.DeviceID, h.cfg.HDHomeRun.DeviceID)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}

// ServiceXML handles GET /service.xml with an empty service description.
func (h *HDHomeRunHandler) ServiceXML(w http.ResponseWriter, _ *http.Request) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <specVersion>
    <major>1</major>
    <minor>0</minor>
  </specVersion>
  <actionList/>
  <serviceStateTable/>
</scpd>`
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
