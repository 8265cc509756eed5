// Package ffmpeg wraps the FFmpeg/FFprobe binaries: capability
// detection, stream probing, and the MPEG-TS transcode pipeline.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BinaryInfo describes the detected FFmpeg installation.
type BinaryInfo struct {
	FFmpegPath    string        `json:"ffmpeg_path"`
	FFprobePath   string        `json:"ffprobe_path"`
	Version       string        `json:"version"`
	MajorVersion  int           `json:"major_version"`
	MinorVersion  int           `json:"minor_version"`
	BuildDate     string        `json:"build_date,omitempty"`
	Configuration string        `json:"configuration,omitempty"`
	Encoders      []string      `json:"encoders,omitempty"`
	Decoders      []string      `json:"decoders,omitempty"`
	HWAccels      []HWAccelInfo `json:"hw_accels,omitempty"`
	Formats       []FormatInfo  `json:"formats,omitempty"`
}

// FormatInfo is one muxer/demuxer from ffmpeg -formats.
type FormatInfo struct {
	Name     string `json:"name"`
	LongName string `json:"long_name,omitempty"`
	CanMux   bool   `json:"can_mux"`
	CanDemux bool   `json:"can_demux"`
}

// BinaryDetector finds the FFmpeg binaries and caches their
// capabilities. Detection shells out several times, so results are
// held for the TTL.
type BinaryDetector struct {
	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector builds a detector with a 5 minute cache.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{
		cacheTTL: 5 * time.Minute,
	}
}

// WithCacheTTL overrides the capability cache TTL.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Detect locates ffmpeg and ffprobe and reads their capabilities,
// returning the cached result when fresh.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear drops the cached capabilities.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	ffmpegPath, err := findBinary("ffmpeg", "STREAMTV_FFMPEG_PATH")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	info.FFmpegPath = ffmpegPath

	// ffprobe is optional; without it sources are transcoded in full
	// instead of copied.
	if ffprobePath, err := findBinary("ffprobe", "STREAMTV_FFPROBE_PATH"); err == nil {
		info.FFprobePath = ffprobePath
	}

	version, err := d.getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version.Full
	info.MajorVersion = version.Major
	info.MinorVersion = version.Minor
	info.BuildDate = version.BuildDate
	info.Configuration = version.Configuration

	// Capability listings are best effort; a partial result is still
	// usable.
	if encoders, err := d.listCoders(ctx, ffmpegPath, "-encoders"); err == nil {
		info.Encoders = encoders
	}
	if decoders, err := d.listCoders(ctx, ffmpegPath, "-decoders"); err == nil {
		info.Decoders = decoders
	}
	if hwAccels, err := NewHWAccelDetector(ffmpegPath).Detect(ctx); err == nil {
		info.HWAccels = hwAccels
	}
	if formats, err := d.getFormats(ctx, ffmpegPath); err == nil {
		info.Formats = formats
	}

	return info, nil
}

// findBinary resolves an executable: env var override first, then the
// working directory, then PATH.
func findBinary(name, envVar string) (string, error) {
	if envPath := os.Getenv(envVar); envPath != "" && isExecutable(envPath) {
		return envPath, nil
	}
	if local := "./" + name; isExecutable(local) {
		return local, nil
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("binary %s not found", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

type versionInfo struct {
	Full          string
	Major         int
	Minor         int
	BuildDate     string
	Configuration string
}

// versionRe matches "6.0", "6.0.1", and git builds like "n6.0-2-g...".
var versionRe = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

func (d *BinaryDetector) getVersion(ctx context.Context, ffmpegPath string) (*versionInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	info := &versionInfo{}
	for _, line := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(line, "ffmpeg version"):
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				info.Full = parts[2]
				if m := versionRe.FindStringSubmatch(parts[2]); len(m) >= 3 {
					info.Major, _ = strconv.Atoi(m[1])
					info.Minor, _ = strconv.Atoi(m[2])
				}
			}
		case strings.HasPrefix(line, "built with"):
			info.BuildDate = strings.TrimPrefix(line, "built with ")
		case strings.HasPrefix(line, "configuration:"):
			info.Configuration = strings.TrimPrefix(line, "configuration: ")
		}
	}

	if info.Full == "" {
		return nil, fmt.Errorf("parsing ffmpeg version output")
	}
	return info, nil
}

// listCoders parses ffmpeg -encoders or -decoders output. Lines look
// like " V....D libx264  H.264 ..." after a ------ separator.
func (d *BinaryDetector) listCoders(ctx context.Context, ffmpegPath, flag string) ([]string, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, flag, "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var names []string
	inList := false
	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}

		line = strings.TrimLeft(line, " ")
		if len(line) < 8 {
			continue
		}
		// First flag column is the media type; anything else is a
		// header or footer line.
		if line[0] != 'V' && line[0] != 'A' && line[0] != 'S' {
			continue
		}

		fields := strings.Fields(strings.TrimSpace(line[6:]))
		if len(fields) >= 1 && fields[0] != "" {
			names = append(names, fields[0])
		}
	}
	return names, nil
}

// getFormats parses ffmpeg -formats output. The flag column carries D
// for demux and E for mux support.
func (d *BinaryDetector) getFormats(ctx context.Context, ffmpegPath string) ([]FormatInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-formats", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var formats []FormatInfo
	inList := false
	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "--") {
			inList = true
			continue
		}
		if !inList || len(line) < 4 {
			continue
		}

		flags := strings.TrimSpace(line[:3])
		parts := strings.SplitN(strings.TrimSpace(line[3:]), " ", 2)
		if len(parts) < 1 || parts[0] == "" {
			continue
		}

		format := FormatInfo{
			Name:     parts[0],
			CanDemux: strings.Contains(flags, "D"),
			CanMux:   strings.Contains(flags, "E"),
		}
		if len(parts) > 1 {
			format.LongName = strings.TrimSpace(parts[1])
		}
		formats = append(formats, format)
	}
	return formats, nil
}

// HasEncoder reports whether the encoder is available.
func (info *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(info.Encoders, name)
}

// HasDecoder reports whether the decoder is available.
func (info *BinaryInfo) HasDecoder(name string) bool {
	return slices.Contains(info.Decoders, name)
}

// HasFormat reports whether the container can be muxed.
func (info *BinaryInfo) HasFormat(name string) bool {
	for _, f := range info.Formats {
		if f.Name == name && f.CanMux {
			return true
		}
	}
	return false
}

// JSON renders the capabilities for the detect command.
func (info *BinaryInfo) JSON() string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

// SupportsMinVersion reports whether the installation meets a minimum
// FFmpeg version.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion != major {
		return info.MajorVersion > major
	}
	return info.MinorVersion >= minor
}
