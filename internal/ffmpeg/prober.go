package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultProbeTimeout = 30 * time.Second

// Prober runs ffprobe against local files and remote URLs and parses
// its JSON output.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber returns a Prober using the given ffprobe binary. An empty
// path falls back to PATH lookup.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     defaultProbeTimeout,
	}
}

// Probe inspects input and returns the parsed ffprobe result. Extra
// request headers are forwarded for remote inputs.
func (p *Prober) Probe(ctx context.Context, input string, headers map[string]string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}
	if len(headers) > 0 {
		args = append(args, "-headers", headerBlock(headers))
	}
	args = append(args, input)

	out, err := exec.CommandContext(ctx, p.ffprobePath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", input, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &result, nil
}

// ProbeResult is the ffprobe JSON document.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeFormat is the container-level section of an ffprobe result.
type ProbeFormat struct {
	Filename       string            `json:"filename"`
	NBStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// ProbeStream is a single elementary stream in an ffprobe result.
type ProbeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	PixFmt        string            `json:"pix_fmt"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	RFrameRate    string            `json:"r_frame_rate"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	BitRate       string            `json:"bit_rate"`
	Duration      string            `json:"duration"`
	Tags          map[string]string `json:"tags"`
}

// GetVideoStream returns the first video stream, or nil.
func (r *ProbeResult) GetVideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// GetAudioStream returns the first audio stream, or nil.
func (r *ProbeResult) GetAudioStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

// GetStreamsByType returns every stream of the given codec type.
func (r *ProbeResult) GetStreamsByType(codecType string) []ProbeStream {
	var streams []ProbeStream
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			streams = append(streams, s)
		}
	}
	return streams
}

// Duration returns the container duration in milliseconds, or 0 when
// the source does not report one.
func (r *ProbeResult) Duration() int64 {
	seconds, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return int64(seconds * 1000)
}

// Bitrate returns the container bitrate in bits per second, or 0.
func (r *ProbeResult) Bitrate() int {
	bitrate, err := strconv.Atoi(r.Format.BitRate)
	if err != nil {
		return 0
	}
	return bitrate
}

// Framerate returns the stream framerate in frames per second,
// preferring the average rate over the raw rate.
func (s *ProbeStream) Framerate() float64 {
	if fps := parseFramerate(s.AvgFrameRate); fps > 0 {
		return fps
	}
	return parseFramerate(s.RFrameRate)
}

// parseFramerate parses ffprobe framerate notation, either a rational
// like "30000/1001" or a plain number.
func parseFramerate(s string) float64 {
	if s == "" {
		return 0
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	fps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return fps
}
