package epg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tgrayson/streamtv/internal/storage"
)

const guideFile = "epg/guide.xml"

// defaultCacheTTL bounds how long a cached guide is served before a
// request triggers a re-render. The nightly rebuild job normally
// refreshes the file well before this expires.
const defaultCacheTTL = 6 * time.Hour

// Cache keeps a rendered copy of the XMLTV guide on disk so guide
// requests do not pay for a full timeline expansion of every channel.
// The cached file survives restarts; freshness is tracked in memory, so
// the first request after a restart re-renders.
type Cache struct {
	gen     *Generator
	sandbox *storage.Sandbox
	logger  *slog.Logger

	mu      sync.Mutex
	builtAt time.Time
	ttl     time.Duration
}

// NewCache constructs a guide cache writing under the storage sandbox.
func NewCache(gen *Generator, sandbox *storage.Sandbox) *Cache {
	return &Cache{
		gen:     gen,
		sandbox: sandbox,
		logger:  slog.Default(),
		ttl:     defaultCacheTTL,
	}
}

// WithLogger sets a custom logger.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithTTL overrides the cache freshness window.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// Rebuild renders the full guide and atomically replaces the cached file.
// Returns the rendered size in bytes.
func (c *Cache) Rebuild(ctx context.Context) (int64, error) {
	var buf bytes.Buffer
	if err := c.gen.WriteXMLTV(ctx, &buf); err != nil {
		return 0, fmt.Errorf("rendering guide: %w", err)
	}
	if err := c.sandbox.AtomicWrite(guideFile, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("writing cached guide: %w", err)
	}

	c.mu.Lock()
	c.builtAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug("guide cache rebuilt", "bytes", buf.Len())
	return int64(buf.Len()), nil
}

// Invalidate forces the next request to re-render, after a schedule or
// channel edit.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.builtAt = time.Time{}
	c.mu.Unlock()
}

// WriteXMLTV streams the cached guide when it is fresh, rebuilding it
// first when stale or missing. A failed rebuild falls back to a live
// render so the guide endpoint keeps working even when the storage dir
// does not.
func (c *Cache) WriteXMLTV(ctx context.Context, w io.Writer) error {
	if !c.fresh() {
		if _, err := c.Rebuild(ctx); err != nil {
			c.logger.Warn("guide cache rebuild failed, rendering live", "error", err)
			return c.gen.WriteXMLTV(ctx, w)
		}
	}

	data, err := c.sandbox.ReadFile(guideFile)
	if err != nil {
		c.logger.Warn("reading cached guide failed, rendering live", "error", err)
		return c.gen.WriteXMLTV(ctx, w)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing guide: %w", err)
	}
	return nil
}

func (c *Cache) fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.builtAt.IsZero() {
		return false
	}
	if time.Since(c.builtAt) > c.ttl {
		return false
	}
	ok, err := c.sandbox.Exists(guideFile)
	return err == nil && ok
}
