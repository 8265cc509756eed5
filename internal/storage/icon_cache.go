package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// iconDir is the directory inside the cache sandbox holding rendered icons.
const iconDir = "channel_icons"

// IconMetadata is the sidecar record for a cached channel icon. SourcePath
// records the logo_path the icon was rendered from, so a changed logo_path
// invalidates the cache entry.
type IconMetadata struct {
	ChannelNumber string    `json:"channel_number"`
	SourcePath    string    `json:"source_path,omitempty"`
	FileSize      int64     `json:"file_size,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// IconCache stores one rendered PNG per channel at
// channel_icons/channel_{number}.png with a JSON sidecar.
type IconCache struct {
	sandbox *Sandbox
}

// NewIconCache creates an IconCache rooted at the given base directory.
func NewIconCache(baseDir string) (*IconCache, error) {
	sandbox, err := NewSandbox(baseDir)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	if err := sandbox.MkdirAll(iconDir); err != nil {
		return nil, fmt.Errorf("creating icon directory: %w", err)
	}
	return &IconCache{sandbox: sandbox}, nil
}

// ImagePath returns the sandbox-relative path for a channel's icon.
func (c *IconCache) ImagePath(number string) string {
	return filepath.Join(iconDir, "channel_"+number+".png")
}

func (c *IconCache) metadataPath(number string) string {
	return filepath.Join(iconDir, "channel_"+number+".json")
}

// Store writes the PNG and its metadata sidecar atomically. A failed
// metadata write removes the image so the cache never holds an icon
// without a source record.
func (c *IconCache) Store(meta *IconMetadata, pngData []byte) error {
	imagePath := c.ImagePath(meta.ChannelNumber)
	if err := c.sandbox.AtomicWrite(imagePath, pngData); err != nil {
		return fmt.Errorf("writing icon image: %w", err)
	}
	meta.FileSize = int64(len(pngData))

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling icon metadata: %w", err)
	}
	if err := c.sandbox.AtomicWrite(c.metadataPath(meta.ChannelNumber), metaJSON); err != nil {
		_ = c.sandbox.Remove(imagePath)
		return fmt.Errorf("writing icon metadata: %w", err)
	}
	return nil
}

// Get returns the cached PNG and its metadata for a channel. The metadata
// is nil when the sidecar is missing or unreadable.
func (c *IconCache) Get(number string) ([]byte, *IconMetadata, error) {
	data, err := c.sandbox.ReadFile(c.ImagePath(number))
	if err != nil {
		return nil, nil, fmt.Errorf("reading icon image: %w", err)
	}

	metaJSON, err := c.sandbox.ReadFile(c.metadataPath(number))
	if err != nil {
		return data, nil, nil
	}
	var meta IconMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return data, nil, nil
	}
	return data, &meta, nil
}

// Exists reports whether an icon is cached for the channel.
func (c *IconCache) Exists(number string) (bool, error) {
	return c.sandbox.Exists(c.ImagePath(number))
}

// Delete removes a channel's icon and sidecar. Missing files are not an
// error.
func (c *IconCache) Delete(number string) error {
	if err := c.sandbox.Remove(c.ImagePath(number)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting icon image: %w", err)
	}
	_ = c.sandbox.Remove(c.metadataPath(number))
	return nil
}

// BaseDir returns the absolute path to the cache base directory.
func (c *IconCache) BaseDir() string {
	return c.sandbox.BaseDir()
}
