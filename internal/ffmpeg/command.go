package ffmpeg

import (
	"fmt"
	"strings"
	"time"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
)

// StreamRequest carries everything needed to synthesize one playout
// command: the resolved input, its probe, and the channel's encode
// knobs.
type StreamRequest struct {
	// URL is the resolved, directly-openable input.
	URL string

	// Headers are extra HTTP headers (Archive.org session cookie).
	Headers map[string]string

	// InputOpts are resolver-supplied extra input arguments.
	InputOpts []string

	// Source tags the resolver that produced the URL.
	Source models.MediaSource

	// Info is the pre-stream probe; zero value transcodes everything.
	Info SourceInfo

	// Profile optionally overrides encoder knobs.
	Profile *models.FFmpegProfile

	// HWAccelHint is the channel's per-channel accel override.
	HWAccelHint string

	// DRMProtected marks HLS inputs that carry DRM tags.
	DRMProtected bool

	// FirstChunkTimeout overrides the streamer's default first-chunk
	// budget. Zero keeps the default deadline plus one retry extension;
	// a positive value is a flat budget with no extension.
	FirstChunkTimeout time.Duration
}

// StreamCommandBuilder synthesizes MPEG-TS streaming commands from the
// global FFmpeg configuration and the detected hardware capabilities.
type StreamCommandBuilder struct {
	cfg       *config.FFmpegConfig
	available map[string]bool // hwaccels present per startup detection
}

// NewStreamCommandBuilder builds a command synthesizer. availableAccels
// comes from the startup `ffmpeg -hwaccels` probe; nil means software
// only.
func NewStreamCommandBuilder(cfg *config.FFmpegConfig, availableAccels []string) *StreamCommandBuilder {
	available := make(map[string]bool, len(availableAccels))
	for _, a := range availableAccels {
		available[a] = true
	}
	return &StreamCommandBuilder{cfg: cfg, available: available}
}

// Build produces the full command for one item.
func (s *StreamCommandBuilder) Build(req StreamRequest) *Command {
	ffmpegPath := s.cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	logLevel := s.cfg.LogLevel
	if logLevel == "" {
		logLevel = "error"
	}

	b := NewCommandBuilder(ffmpegPath).
		LogLevel(logLevel).
		HideBanner()

	copyVideo := req.Info.CanCopyVideo && !s.forceEncode(req)

	accel := s.hwaccel(req, copyVideo)
	switch accel {
	case "":
	case "none":
		// The builder skips "none", but MPEG-4 sources need it spelled
		// out to stop FFmpeg auto-selecting a broken decoder.
		b.InputArgs("-hwaccel", "none")
	default:
		b.HWAccel(accel)
		if s.cfg.HWAccelDev != "" {
			b.HWAccelDevice(s.cfg.HWAccelDev)
		}
	}

	if !copyVideo && s.cfg.Threads > 0 {
		b.InputArgs("-threads", fmt.Sprintf("%d", s.cfg.Threads))
	}

	s.inputFlags(b, req)
	b.InputArgs(req.InputOpts...)
	b.Input(req.URL)

	s.videoFlags(b, req, copyVideo, accel)
	s.audioFlags(b, req)

	b.OutputArgs(
		"-f", "mpegts",
		"-muxrate", "4M",
		"-pcr_period", "20",
		"-flush_packets", "1",
		"-fflags", "+flush_packets",
		"-max_interleave_delta", "0",
	)
	b.Output("-")

	return b.Build()
}

// forceEncode reports whether profile knobs rule out a passthrough copy.
func (s *StreamCommandBuilder) forceEncode(req StreamRequest) bool {
	p := req.Profile
	if p == nil {
		return false
	}
	return p.Resolution != nil || p.Watermark != nil
}

// hwaccel picks the decode accelerator. MPEG-4 family sources break
// hardware decoders, so they get an explicit "none"; full-copy streams
// need no accel at all.
func (s *StreamCommandBuilder) hwaccel(req StreamRequest, copyVideo bool) string {
	if copyVideo {
		return ""
	}
	if req.Info.IsMPEG4Family() {
		return "none"
	}

	accel := req.HWAccelHint
	if accel == "" {
		accel = s.cfg.SourceHWAccel(string(req.Source))
	}
	if accel == "" || accel == "none" {
		return accel
	}
	if !s.available[accel] {
		return ""
	}
	return accel
}

func (s *StreamCommandBuilder) inputFlags(b *CommandBuilder, req StreamRequest) {
	isHTTP := strings.HasPrefix(req.URL, "http://") || strings.HasPrefix(req.URL, "https://")
	if isHTTP {
		timeout, reconnectMax := "30000000", "5"
		switch req.Source {
		case models.SourceArchiveOrg:
			timeout, reconnectMax = "60000000", "10"
		case models.SourcePlex:
			timeout = "60000000"
		case models.SourceYouTube:
			reconnectMax = "3"
		}
		b.InputArgs(
			"-timeout", timeout,
			"-user_agent", "Mozilla/5.0 (compatible; streamtv)",
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", reconnectMax,
			"-multiple_requests", "1",
		)
		if cookie, ok := req.Headers["Cookie"]; ok {
			b.InputArgs("-headers", "Cookie: "+cookie+"\r\n")
		}
	}

	switch {
	case isMP4Container(req):
		b.InputArgs(
			"-fflags", "+genpts+discardcorrupt+igndts",
			"-err_detect", "ignore_err",
			"-probesize", "5M",
			"-analyzeduration", "5M",
		)
	case req.DRMProtected:
		b.InputArgs(
			"-err_detect", "ignore_err",
			"-probesize", "1M",
			"-analyzeduration", "2M",
		)
	default:
		b.InputArgs(
			"-fflags", "+genpts+discardcorrupt+fastseek",
			"-flags", "+low_delay",
			"-probesize", "1M",
			"-analyzeduration", "2M",
		)
	}
}

func isMP4Container(req StreamRequest) bool {
	if strings.Contains(req.Info.Container, "mp4") {
		return true
	}
	path := req.URL
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".mp4") || strings.HasSuffix(path, ".m4v") ||
		strings.HasSuffix(path, ".mov")
}

func (s *StreamCommandBuilder) videoFlags(b *CommandBuilder, req StreamRequest, copyVideo bool, accel string) {
	if copyVideo {
		b.VideoCodec("copy")
		b.OutputArgs("-bsf:v", annexBFilter(codecFamilyOf(req.Info.VideoCodec)))
		return
	}

	if filter := buildVideoFilter(req.Profile); filter != "" {
		b.VideoFilter(filter)
	}

	if encoder := s.hardwareEncoder(req, accel); encoder != "" {
		b.VideoCodec(encoder)
		b.OutputArgs(
			"-b:v", "6M",
			"-maxrate", "6M",
			"-bufsize", "12M",
			"-profile:v", "high",
			"-pix_fmt", "yuv420p",
			"-g", "50",
			"-bsf:v", "dump_extra",
		)
		return
	}

	preset := "veryfast"
	if req.Info.IsMPEG4Family() {
		preset = "ultrafast"
	}
	crf := 23
	maxrate := "6M"
	if p := req.Profile; p != nil {
		if p.Preset != "" {
			preset = p.Preset
		}
		if p.CRF != nil {
			crf = *p.CRF
		}
		if p.VideoMaxrate != "" {
			maxrate = p.VideoMaxrate
		}
	}
	b.VideoCodec("libx264")
	b.VideoPreset(preset)
	b.OutputArgs(
		"-crf", fmt.Sprintf("%d", crf),
		"-maxrate", maxrate,
		"-bufsize", "12M",
		"-profile:v", "high",
		"-level", "4.1",
		"-g", "50",
	)
}

// hardwareEncoder resolves the per-source encoder override. Copy and
// software paths return empty.
func (s *StreamCommandBuilder) hardwareEncoder(req StreamRequest, accel string) string {
	if accel == "" || accel == "none" {
		return ""
	}
	if enc := s.cfg.SourceVideoEncoder(string(req.Source)); enc != "" {
		return enc
	}
	switch accel {
	case "cuda", "nvdec":
		return "h264_nvenc"
	case "qsv":
		return "h264_qsv"
	case "vaapi":
		return "h264_vaapi"
	case "videotoolbox":
		return "h264_videotoolbox"
	}
	return ""
}

func (s *StreamCommandBuilder) audioFlags(b *CommandBuilder, req StreamRequest) {
	if req.Info.CanCopyAudio {
		b.AudioCodec("copy")
		return
	}

	bitrate, sampleRate, channels := "192k", "48000", 2
	if p := req.Profile; p != nil {
		if p.AudioBitrate != "" {
			bitrate = p.AudioBitrate
		}
		if p.AudioSampleRate > 0 {
			sampleRate = fmt.Sprintf("%d", p.AudioSampleRate)
		}
		if p.AudioChannels > 0 {
			channels = p.AudioChannels
		}
	}
	b.AudioCodec("aac")
	b.AudioChannels(channels)
	b.OutputArgs("-b:a", bitrate, "-ar", sampleRate)
}

// buildVideoFilter renders the profile's scale and watermark overlay as
// a single filtergraph.
func buildVideoFilter(p *models.FFmpegProfile) string {
	if p == nil {
		return ""
	}

	var scale string
	if p.Resolution != nil {
		scale = fmt.Sprintf("scale=%d:%d", p.Resolution.Width, p.Resolution.Height)
	}

	if p.Watermark == nil {
		return scale
	}

	wm := p.Watermark
	opacity := wm.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}

	var g strings.Builder
	fmt.Fprintf(&g, "movie=%s,format=rgba,colorchannelmixer=aa=%.2f[wm];", wm.Path, opacity)
	if scale != "" {
		fmt.Fprintf(&g, "[in]%s[base];[base][wm]overlay=%s", scale, overlayPosition(wm))
	} else {
		fmt.Fprintf(&g, "[in][wm]overlay=%s", overlayPosition(wm))
	}
	return g.String()
}

func overlayPosition(wm *models.Watermark) string {
	m := wm.Margin
	if m <= 0 {
		m = 10
	}
	switch wm.CornerValue() {
	case models.CornerTopLeft:
		return fmt.Sprintf("%d:%d", m, m)
	case models.CornerTopRight:
		return fmt.Sprintf("main_w-overlay_w-%d:%d", m, m)
	case models.CornerBottomLeft:
		return fmt.Sprintf("%d:main_h-overlay_h-%d", m, m)
	default:
		return fmt.Sprintf("main_w-overlay_w-%d:main_h-overlay_h-%d", m, m)
	}
}
