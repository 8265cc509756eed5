// Package resolver turns stored media items into URLs FFmpeg can open
// directly, handling the per-source quirks (yt-dlp extraction,
// Archive.org session cookies, PBS variant selection, Plex tokens).
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/pkg/httpclient"
)

// DefaultCacheTTL is how long a resolved stream URL stays valid.
const DefaultCacheTTL = 15 * time.Minute

// ResolvedStream is everything the transcoder needs to open a source.
type ResolvedStream struct {
	// URL is directly openable by FFmpeg.
	URL string

	// Headers are extra HTTP headers (e.g. a session Cookie).
	Headers map[string]string

	// InputOpts are extra FFmpeg input arguments for this source.
	InputOpts []string

	// Source tags which resolver produced the stream.
	Source models.MediaSource
}

// Resolver resolves media item URLs with a short-TTL idempotency cache.
type Resolver struct {
	cfg    *config.Config
	http   *httpclient.Client
	logger *slog.Logger
	ytdlp  ytdlpRunner

	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	stream  *ResolvedStream
	expires time.Time
}

// New builds a Resolver. A nil httpClient gets the package defaults.
func New(cfg *config.Config, httpClient *httpclient.Client, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = httpclient.NewWithDefaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.Playout.ResolverCacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With("component", "resolver"),
		ytdlp:  execYtdlp{path: cfg.YouTube.YtdlpPath},
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns a stream for the item. Idempotent per
// (url, channelNameHint) within the cache TTL. No retries; the
// broadcaster owns retry policy.
func (r *Resolver) Resolve(ctx context.Context, item *models.MediaItem, channelNameHint string) (*ResolvedStream, error) {
	key := item.URL + "\x00" + channelNameHint
	if stream := r.cached(key); stream != nil {
		return stream, nil
	}

	source := DetectSource(item.URL)

	var (
		stream *ResolvedStream
		err    error
	)
	switch source {
	case models.SourceYouTube:
		stream, err = r.resolveYouTube(ctx, item)
	case models.SourceArchiveOrg:
		stream, err = r.resolveArchiveOrg(ctx, item)
	case models.SourcePBS:
		stream, err = r.resolvePBS(ctx, item, channelNameHint)
	case models.SourcePlex:
		stream, err = r.resolvePlex(ctx, item)
	default:
		return nil, fmt.Errorf("%s: %w", item.URL, ErrUnsupportedSource)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s source: %w", source, err)
	}

	stream.Source = source
	r.store(key, stream)
	r.logger.Debug("resolved media item",
		"source", source, "media_id", item.ID, "stream_url", truncateURL(stream.URL))
	return stream, nil
}

func (r *Resolver) cached(key string) *ResolvedStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || r.now().After(entry.expires) {
		delete(r.cache, key)
		return nil
	}
	return entry.stream
}

func (r *Resolver) store(key string, stream *ResolvedStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{stream: stream, expires: r.now().Add(r.ttl)}
}

// Invalidate drops any cached resolution for the URL, all hints.
func (r *Resolver) Invalidate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if strings.HasPrefix(key, url+"\x00") {
			delete(r.cache, key)
		}
	}
}

func truncateURL(u string) string {
	if len(u) > 120 {
		return u[:120] + "…"
	}
	return u
}
