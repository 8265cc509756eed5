package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not installed.
func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

// skipIfNoFFprobe skips the test if ffprobe is not installed.
func skipIfNoFFprobe(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return path
}

func TestBinaryDetectorDetect(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	info, err := detector.Detect(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.NotEmpty(t, info.FFmpegPath)
	assert.NotEmpty(t, info.FFprobePath)
	assert.NotEmpty(t, info.Version)
	assert.Greater(t, info.MajorVersion, 0)
}

func TestBinaryDetectorCaching(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector().WithCacheTTL(1 * time.Hour)

	info1, err := detector.Detect(ctx)
	require.NoError(t, err)
	info2, err := detector.Detect(ctx)
	require.NoError(t, err)

	assert.Equal(t, info1.FFmpegPath, info2.FFmpegPath)
	assert.Equal(t, info1.Version, info2.Version)

	detector.Clear()
	assert.Nil(t, detector.info)
}

func TestBinaryInfoHasEncoder(t *testing.T) {
	info := &BinaryInfo{
		Encoders: []string{"libx264", "libx265", "aac", "libmp3lame"},
	}

	assert.True(t, info.HasEncoder("libx264"))
	assert.True(t, info.HasEncoder("aac"))
	assert.False(t, info.HasEncoder("h264_nvenc"))
}

func TestBinaryInfoHasDecoder(t *testing.T) {
	info := &BinaryInfo{
		Decoders: []string{"h264", "hevc", "aac", "mp3"},
	}

	assert.True(t, info.HasDecoder("h264"))
	assert.False(t, info.HasDecoder("vp9"))
}

func TestBinaryInfoHasFormat(t *testing.T) {
	info := &BinaryInfo{
		Formats: []FormatInfo{
			{Name: "mpegts", CanMux: true, CanDemux: true},
			{Name: "hls", CanMux: true, CanDemux: true},
			{Name: "rawvideo", CanMux: false, CanDemux: true},
		},
	}

	assert.True(t, info.HasFormat("mpegts"))
	assert.False(t, info.HasFormat("rawvideo")) // demux only
	assert.False(t, info.HasFormat("nonexistent"))
}

func TestBinaryInfoSupportsMinVersion(t *testing.T) {
	info := &BinaryInfo{MajorVersion: 6, MinorVersion: 1}

	assert.True(t, info.SupportsMinVersion(5, 0))
	assert.True(t, info.SupportsMinVersion(6, 1))
	assert.False(t, info.SupportsMinVersion(6, 2))
	assert.False(t, info.SupportsMinVersion(7, 0))
}

func TestBinaryInfoJSON(t *testing.T) {
	info := &BinaryInfo{
		FFmpegPath:   "/usr/bin/ffmpeg",
		FFprobePath:  "/usr/bin/ffprobe",
		Version:      "6.0",
		MajorVersion: 6,
	}

	jsonStr := info.JSON()
	assert.Contains(t, jsonStr, "ffmpeg_path")
	assert.Contains(t, jsonStr, "/usr/bin/ffmpeg")
}

func TestCommandBuilderBuild(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		Input("input.mp4").
		VideoCodec("libx264").
		AudioCodec("aac").
		Output("-").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Contains(t, cmd.Args, "-hide_banner")
	assert.Contains(t, cmd.Args, "-i")
	assert.Contains(t, cmd.Args, "input.mp4")
	assert.Contains(t, cmd.Args, "libx264")
	assert.Contains(t, cmd.Args, "aac")
	assert.Equal(t, "-", cmd.Args[len(cmd.Args)-1])
}

func TestCommandBuilderArgOrder(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		LogLevel("warning").
		InputArgs("-probesize", "1M").
		Input("http://example.com/stream").
		VideoCodec("copy").
		Output("-").
		Build()

	str := cmd.String()
	// Input flags must come before -i, output flags after.
	assert.Less(t,
		strings.Index(str, "-probesize"),
		strings.Index(str, "-i http://example.com/stream"))
	assert.Less(t,
		strings.Index(str, "-i http://example.com/stream"),
		strings.Index(str, "-c:v copy"))
}

func TestCommandBuilderHWAccel(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		HWAccel("cuda").
		HWAccelDevice("0").
		Input("input.mp4").
		Output("-").
		Build()

	str := cmd.String()
	assert.Contains(t, str, "-hwaccel cuda")
	assert.Contains(t, str, "-hwaccel_device 0")

	// "auto" and "none" must not be passed through.
	for _, skip := range []string{"auto", "none", ""} {
		cmd := NewCommandBuilder("ffmpeg").HWAccel(skip).Input("x").Output("-").Build()
		assert.NotContains(t, cmd.String(), "-hwaccel")
	}
}

func TestCommandBuilderVideoFilter(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("input.mp4").
		VideoFilter("scale=1280:720").
		VideoFilter("fps=30").
		Output("-").
		Build()

	assert.Contains(t, cmd.String(), "-vf scale=1280:720,fps=30")
}

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30.0},
		{"25/1", 25.0},
		{"30000/1001", 29.97002997002997},
		{"60", 60.0},
		{"invalid", 0},
		{"0/0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseFramerate(tt.input)
			if tt.expected == 0 {
				assert.Equal(t, float64(0), result)
			} else {
				assert.InDelta(t, tt.expected, result, 0.001)
			}
		})
	}
}

func TestProbeResultStreams(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "audio", CodecName: "aac"},
			{Index: 1, CodecType: "video", CodecName: "h264"},
			{Index: 2, CodecType: "audio", CodecName: "mp3"},
			{Index: 3, CodecType: "subtitle", CodecName: "srt"},
		},
	}

	video := result.GetVideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "h264", video.CodecName)

	audio := result.GetAudioStream()
	require.NotNil(t, audio)
	assert.Equal(t, "aac", audio.CodecName)

	assert.Len(t, result.GetStreamsByType("audio"), 2)
	assert.Len(t, result.GetStreamsByType("data"), 0)
}

func TestProbeResultFormat(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{Duration: "123.456", BitRate: "5000000"},
	}

	assert.Equal(t, int64(123456), result.Duration())
	assert.Equal(t, 5000000, result.Bitrate())

	empty := &ProbeResult{}
	assert.Equal(t, int64(0), empty.Duration())
	assert.Equal(t, 0, empty.Bitrate())
}

func TestProbeStreamFramerate(t *testing.T) {
	stream := &ProbeStream{AvgFrameRate: "30000/1001", RFrameRate: "30/1"}
	assert.InDelta(t, 29.97, stream.Framerate(), 0.01)

	noAvg := &ProbeStream{RFrameRate: "25/1"}
	assert.InDelta(t, 25.0, noAvg.Framerate(), 0.01)
}

func TestHasHWAccel(t *testing.T) {
	info := &BinaryInfo{
		HWAccels: []HWAccelInfo{
			{Type: HWAccelNVENC, Name: "cuda", Available: true},
			{Type: HWAccelQSV, Name: "qsv", Available: false},
			{Type: HWAccelVAAPI, Name: "vaapi", Available: true},
		},
	}

	assert.True(t, info.HasHWAccel(HWAccelNVENC))
	assert.False(t, info.HasHWAccel(HWAccelQSV))
	assert.False(t, info.HasHWAccel(HWAccelVideoToolbox))
	assert.Len(t, info.GetAvailableHWAccels(), 2)
}

func TestGetRecommendedHWAccel(t *testing.T) {
	accels := []HWAccelInfo{
		{Type: HWAccelVAAPI, Name: "vaapi", Available: true},
		{Type: HWAccelNVENC, Name: "cuda", Available: true},
		{Type: HWAccelQSV, Name: "qsv", Available: false},
	}

	recommended := GetRecommendedHWAccel(accels)
	require.NotNil(t, recommended)
	assert.Equal(t, HWAccelNVENC, recommended.Type)

	vaapiOnly := []HWAccelInfo{
		{Type: HWAccelVAAPI, Name: "vaapi", Available: true},
		{Type: HWAccelQSV, Name: "qsv", Available: false},
	}
	rec := GetRecommendedHWAccel(vaapiOnly)
	require.NotNil(t, rec)
	assert.Equal(t, HWAccelVAAPI, rec.Type)

	assert.Nil(t, GetRecommendedHWAccel([]HWAccelInfo{
		{Type: HWAccelQSV, Available: false},
	}))
}
