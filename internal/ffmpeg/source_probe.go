package ffmpeg

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// sourceProbeTimeout is the hard budget for a pre-stream probe.
const sourceProbeTimeout = 10 * time.Second

// SourceInfo is the stripped-down probe the command builder needs.
// The zero value means "unknown, transcode everything".
type SourceInfo struct {
	VideoCodec   string
	AudioCodec   string
	Container    string
	CanCopyVideo bool
	CanCopyAudio bool
}

// copyableAudioCodecs pass through to MPEG-TS unchanged.
var copyableAudioCodecs = map[string]bool{
	"aac": true, "mp3": true, "mp2": true,
}

// ProbeSource probes a resolved stream URL with extra headers and
// reduces the result to codec copy decisions. Errors and timeouts are
// not propagated: an unknown source is transcoded in full.
func (p *Prober) ProbeSource(ctx context.Context, url string, headers map[string]string) SourceInfo {
	ctx, cancel := context.WithTimeout(ctx, sourceProbeTimeout)
	defer cancel()

	result, err := p.Probe(ctx, url, headers)
	if err != nil {
		return SourceInfo{}
	}

	info := SourceInfo{Container: result.Format.FormatName}
	if v := result.GetVideoStream(); v != nil {
		info.VideoCodec = strings.ToLower(v.CodecName)
		info.CanCopyVideo = info.VideoCodec == "h264"
	}
	if a := result.GetAudioStream(); a != nil {
		info.AudioCodec = strings.ToLower(a.CodecName)
		info.CanCopyAudio = copyableAudioCodecs[info.AudioCodec]
	}
	return info
}

// IsMPEG4Family reports the codecs that break hardware decoders and
// force the ultrafast software path.
func (s SourceInfo) IsMPEG4Family() bool {
	return s.VideoCodec == "mpeg4" || strings.HasPrefix(s.VideoCodec, "msmpeg4")
}

// headerBlock renders headers the way FFmpeg's -headers flag expects.
func headerBlock(headers map[string]string) string {
	var b strings.Builder
	for name, value := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}
	return b.String()
}
