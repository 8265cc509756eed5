package epg

import (
	"fmt"
	"path"
	"strings"

	"github.com/tgrayson/streamtv/internal/models"
)

// LogoURL resolves a channel's icon to an absolute URL. The same rule
// feeds the XMLTV icon, the M3U tvg-logo, and the lineup.
//
// Absolute URLs pass through. A `channel_<N>.png` filename is trusted only
// when N matches the channel's own number; server-relative icon paths are
// base-prefixed; everything else falls back to the conventional per-number
// icon location.
func LogoURL(baseURL string, ch *models.Channel) string {
	base := strings.TrimRight(baseURL, "/")
	logo := strings.TrimSpace(ch.LogoPath)

	if strings.HasPrefix(logo, "http://") || strings.HasPrefix(logo, "https://") {
		return logo
	}

	if logo != "" {
		name := path.Base(logo)
		if number, ok := strings.CutPrefix(name, "channel_"); ok {
			if num, ok := strings.CutSuffix(number, ".png"); ok && num == ch.Number {
				return base + "/static/channel_icons/" + name
			}
		}
		if strings.Contains(logo, "/channel_icons/") || strings.HasPrefix(logo, "/static/") {
			if !strings.HasPrefix(logo, "/") {
				logo = "/" + logo
			}
			return base + logo
		}
	}

	return fmt.Sprintf("%s/static/channel_icons/channel_%s.png", base, ch.Number)
}
