package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tgrayson/streamtv/internal/assets"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/storage"
	"github.com/tgrayson/streamtv/internal/urlutil"
	"github.com/tgrayson/streamtv/pkg/httpclient"
)

// HTTPClient defines the interface for HTTP operations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// LogoService renders channel icons to PNG and caches them on disk. A
// channel whose logo_path changes is re-rendered on the next request;
// channels without a usable logo fall back to the embedded default icon.
type LogoService struct {
	cache      *storage.IconCache
	converter  *ImageConverter
	httpClient HTTPClient
	maxBytes   int64
	logger     *slog.Logger
}

// NewLogoService creates a new LogoService. maxBytes bounds a fetched
// source image; zero means unbounded.
func NewLogoService(cache *storage.IconCache, maxBytes int64) *LogoService {
	return &LogoService{
		cache:      cache,
		converter:  NewImageConverter(),
		httpClient: httpclient.NewWithDefaults(),
		maxBytes:   maxBytes,
		logger:     slog.Default(),
	}
}

// WithHTTPClient sets a custom HTTP client for testing.
func (s *LogoService) WithHTTPClient(client HTTPClient) *LogoService {
	s.httpClient = client
	return s
}

// WithLogger sets the logger for the service.
func (s *LogoService) WithLogger(logger *slog.Logger) *LogoService {
	s.logger = logger
	return s
}

// ChannelIcon returns the PNG icon for a channel. The cached copy is used
// while its recorded source matches the channel's current logo_path.
// Fetch or decode failures degrade to the default icon instead of erroring.
func (s *LogoService) ChannelIcon(ctx context.Context, ch *models.Channel) []byte {
	if cached, meta, err := s.cache.Get(ch.Number); err == nil && meta != nil && meta.SourcePath == ch.LogoPath {
		return cached
	}

	if ch.LogoPath == "" {
		return assets.DefaultChannelIcon
	}

	data, err := s.fetchSource(ctx, ch.LogoPath)
	if err != nil {
		s.logger.Warn("fetching channel logo",
			slog.String("channel", ch.Number),
			slog.String("logo_path", ch.LogoPath),
			slog.String("error", err.Error()),
		)
		return assets.DefaultChannelIcon
	}

	pngData, width, height, err := s.converter.ConvertToPNG(data)
	if err != nil {
		s.logger.Warn("converting channel logo",
			slog.String("channel", ch.Number),
			slog.String("error", err.Error()),
		)
		return assets.DefaultChannelIcon
	}

	meta := &storage.IconMetadata{
		ChannelNumber: ch.Number,
		SourcePath:    ch.LogoPath,
		Width:         width,
		Height:        height,
		FetchedAt:     time.Now().UTC(),
	}
	if err := s.cache.Store(meta, pngData); err != nil {
		// Serve the rendered icon anyway; only the cache write failed.
		s.logger.Warn("caching channel icon",
			slog.String("channel", ch.Number),
			slog.String("error", err.Error()),
		)
	}
	return pngData
}

// Invalidate drops the cached icon for a channel.
func (s *LogoService) Invalidate(number string) error {
	return s.cache.Delete(number)
}

func (s *LogoService) fetchSource(ctx context.Context, path string) ([]byte, error) {
	if urlutil.IsRemoteURL(path) {
		return s.fetchURL(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading logo file: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("logo file exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

func (s *LogoService) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating logo request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching logo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching logo: unexpected status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if s.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading logo body: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("logo exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}
