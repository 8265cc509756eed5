package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/urlutil"
)

// resolvePlex builds a tokenized library URL. The token rides in the
// query string because FFmpeg preserves query strings across redirects.
func (r *Resolver) resolvePlex(_ context.Context, item *models.MediaItem) (*ResolvedStream, error) {
	if !r.cfg.Plex.Enabled {
		return nil, fmt.Errorf("plex source disabled: %w", ErrUnsupportedSource)
	}
	if r.cfg.Plex.Token == "" {
		return nil, fmt.Errorf("plex: %w", ErrAuthRequired)
	}

	raw := item.URL
	if rest, ok := strings.CutPrefix(raw, "plex://"); ok {
		if r.cfg.Plex.BaseURL == "" {
			return nil, fmt.Errorf("plex:// url with no configured base url: %w", ErrAuthRequired)
		}
		raw = urlutil.JoinPath(urlutil.NormalizeBaseURL(r.cfg.Plex.BaseURL), rest)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing plex url: %w", err)
	}

	q := u.Query()
	if q.Get("X-Plex-Token") == "" {
		q.Set("X-Plex-Token", r.cfg.Plex.Token)
		u.RawQuery = q.Encode()
	}
	return &ResolvedStream{URL: u.String()}, nil
}
