package resolver

import (
	"net/url"
	"strings"

	"github.com/tgrayson/streamtv/internal/models"
)

// pbsHosts are HLS hosts known to serve PBS feeds.
var pbsHosts = []string{
	"pbs.org",
	"pbskids.org",
	"cloudfront.net/pbs",
	"urs.pbs.org",
}

// DetectSource classifies a media URL by host and path.
func DetectSource(raw string) models.MediaSource {
	if strings.HasPrefix(raw, "plex://") {
		return models.SourcePlex
	}

	u, err := url.Parse(raw)
	if err != nil {
		return models.SourceUnknown
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case hostIs(host, "youtube.com") || hostIs(host, "youtu.be"):
		return models.SourceYouTube
	case hostIs(host, "archive.org"):
		return models.SourceArchiveOrg
	case strings.Contains(path, "/library/metadata/"):
		return models.SourcePlex
	case isPBSHost(host, path):
		return models.SourcePBS
	}
	return models.SourceUnknown
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isPBSHost(host, path string) bool {
	if strings.Contains(host, "pbs") {
		return true
	}
	for _, known := range pbsHosts {
		if i := strings.IndexByte(known, '/'); i >= 0 {
			if strings.HasSuffix(host, known[:i]) && strings.Contains(path, known[i:]) {
				return true
			}
		} else if hostIs(host, known) {
			return true
		}
	}
	return false
}
