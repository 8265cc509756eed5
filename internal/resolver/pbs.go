package resolver

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/tgrayson/streamtv/internal/models"
)

// maxPlaylistBytes caps a fetched HLS playlist.
const maxPlaylistBytes = 2 * 1024 * 1024

// resolvePBS returns media playlists as-is. For master playlists it
// picks a variant: one matching the channel name hint when given,
// otherwise the highest bandwidth.
func (r *Resolver) resolvePBS(ctx context.Context, item *models.MediaItem, channelNameHint string) (*ResolvedStream, error) {
	if !strings.Contains(item.URL, ".m3u8") {
		return &ResolvedStream{URL: item.URL}, nil
	}

	data, err := r.fetchPlaylist(ctx, item.URL)
	if err != nil {
		return nil, err
	}

	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing HLS playlist: %w", err)
	}

	mv, ok := pl.(*playlist.Multivariant)
	if !ok {
		// Already a media playlist.
		return &ResolvedStream{URL: item.URL}, nil
	}
	if len(mv.Variants) == 0 {
		return &ResolvedStream{URL: item.URL}, nil
	}

	variants := make([]*playlist.MultivariantVariant, len(mv.Variants))
	copy(variants, mv.Variants)
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	chosen := variants[0]
	if channelNameHint != "" {
		hint := strings.ToLower(channelNameHint)
		for _, v := range variants {
			if variantMatchesHint(v, hint) {
				chosen = v
				break
			}
		}
	}

	resolved, err := absolutizeURL(item.URL, chosen.URI)
	if err != nil {
		return nil, err
	}
	return &ResolvedStream{URL: resolved}, nil
}

func variantMatchesHint(v *playlist.MultivariantVariant, hint string) bool {
	if strings.Contains(strings.ToLower(v.URI), hint) {
		return true
	}
	if v.Video != "" && strings.Contains(strings.ToLower(v.Video), hint) {
		return true
	}
	return false
}

func (r *Resolver) fetchPlaylist(ctx context.Context, u string) ([]byte, error) {
	resp, err := r.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, &ResolutionError{Status: resp.StatusCode, URL: u}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	return data, nil
}

// absolutizeURL resolves a possibly-relative playlist URI against its
// base URL.
func absolutizeURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing variant url: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
