package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tgrayson/streamtv/internal/models"
)

// ytdlpTimeout bounds a single extraction.
const ytdlpTimeout = 30 * time.Second

// ytdlpFormat prefers a single progressive file, falling back to the
// best muxed stream yt-dlp can give us without merging.
const ytdlpFormat = "best[protocol^=http][height<=1080]/best"

// ytdlpRunner abstracts the yt-dlp subprocess for tests.
type ytdlpRunner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type execYtdlp struct {
	path string
}

func (y execYtdlp) Run(ctx context.Context, args ...string) ([]byte, error) {
	path := y.path
	if path == "" {
		path = "yt-dlp"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("locating yt-dlp: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ytdlpTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, resolved, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, tail)
	}
	return stdout.Bytes(), nil
}

// resolveYouTube extracts a directly-openable stream URL via yt-dlp.
func (r *Resolver) resolveYouTube(ctx context.Context, item *models.MediaItem) (*ResolvedStream, error) {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", ytdlpFormat,
		"--get-url",
	}
	if r.cfg.YouTube.CookiesFile != "" {
		args = append(args, "--cookies", r.cfg.YouTube.CookiesFile)
	}
	args = append(args, item.URL)

	out, err := r.ytdlp.Run(ctx, args...)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") ||
			strings.Contains(err.Error(), "cookies") {
			return nil, fmt.Errorf("%s: %w", item.URL, ErrAuthRequired)
		}
		return nil, err
	}

	streamURL := firstLine(out)
	if streamURL == "" {
		return nil, fmt.Errorf("yt-dlp returned no URL for %s", item.URL)
	}
	return &ResolvedStream{URL: streamURL}, nil
}

// ProbeYouTube fetches yt-dlp's JSON metadata for an item. Used by the
// import enricher, not the playout path.
func (r *Resolver) ProbeYouTube(ctx context.Context, url string) (*YouTubeMetadata, error) {
	args := []string{"--no-playlist", "--no-warnings", "-J"}
	if r.cfg.YouTube.CookiesFile != "" {
		args = append(args, "--cookies", r.cfg.YouTube.CookiesFile)
	}
	args = append(args, url)

	out, err := r.ytdlp.Run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var meta YouTubeMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("decoding yt-dlp metadata: %w", err)
	}
	return &meta, nil
}

// YouTubeMetadata is the subset of yt-dlp's JSON probe we keep.
type YouTubeMetadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Uploader    string  `json:"uploader"`
	UploadDate  string  `json:"upload_date"`
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}
