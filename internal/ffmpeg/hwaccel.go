package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// HWAccelType identifies an FFmpeg hardware acceleration method.
type HWAccelType string

const (
	HWAccelNone         HWAccelType = "none"
	HWAccelNVDEC        HWAccelType = "nvdec"
	HWAccelNVENC        HWAccelType = "cuda"
	HWAccelQSV          HWAccelType = "qsv"
	HWAccelVAAPI        HWAccelType = "vaapi"
	HWAccelVideoToolbox HWAccelType = "videotoolbox"
	HWAccelDXVA2        HWAccelType = "dxva2"
	HWAccelD3D11VA      HWAccelType = "d3d11va"
	HWAccelVulkan       HWAccelType = "vulkan"
	HWAccelOCL          HWAccelType = "opencl"
)

// HWAccelInfo describes one accelerator reported by ffmpeg -hwaccels.
type HWAccelInfo struct {
	Type       HWAccelType `json:"type"`
	Name       string      `json:"name"`
	Available  bool        `json:"available"`
	DeviceName string      `json:"device_name,omitempty"`
	Encoders   []string    `json:"encoders,omitempty"`
	Decoders   []string    `json:"decoders,omitempty"`
}

// HWAccelDetector verifies which accelerators the local FFmpeg build
// can actually use. A name in -hwaccels only means compiled-in
// support, so each one is exercised with a short null encode.
type HWAccelDetector struct {
	ffmpegPath string
}

func NewHWAccelDetector(ffmpegPath string) *HWAccelDetector {
	return &HWAccelDetector{ffmpegPath: ffmpegPath}
}

// Detect lists the compiled-in accelerators and probes each one.
func (d *HWAccelDetector) Detect(ctx context.Context) ([]HWAccelInfo, error) {
	out, err := exec.CommandContext(ctx, d.ffmpegPath, "-hwaccels", "-hide_banner").Output()
	if err != nil {
		return nil, fmt.Errorf("listing hwaccels: %w", err)
	}

	var infos []HWAccelInfo
	for _, name := range parseHWAccelList(string(out)) {
		info := HWAccelInfo{Type: HWAccelType(name), Name: name}
		info.Available, info.DeviceName = d.verify(ctx, name)
		if info.Available {
			info.Encoders = d.coderNames(ctx, "-encoders", hwEncoderSuffixes[name])
			info.Decoders = d.coderNames(ctx, "-decoders", hwDecoderSuffixes[name])
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func parseHWAccelList(out string) []string {
	var names []string
	seen := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "Hardware acceleration methods:":
			seen = true
		case seen && line != "":
			names = append(names, line)
		}
	}
	return names
}

// verify checks that the named accelerator initializes on this host
// and returns a human-readable device name on success.
func (d *HWAccelDetector) verify(ctx context.Context, name string) (bool, string) {
	switch name {
	case "cuda", "nvdec":
		device := nvidiaDeviceName(ctx)
		if device == "" {
			return false, ""
		}
		if d.nullEncode(ctx, []string{"-hwaccel", "cuda"}, nil, "h264_nvenc") {
			return true, device
		}
		return false, ""
	case "qsv":
		setup := []string{"-init_hw_device", "qsv=hw"}
		filter := []string{"-vf", "hwupload=extra_hw_frames=64,format=qsv"}
		if d.nullEncode(ctx, setup, filter, "h264_qsv") {
			return true, "Intel Quick Sync"
		}
		return false, ""
	case "vaapi":
		if runtime.GOOS != "linux" {
			return false, ""
		}
		for _, node := range []string{"/dev/dri/renderD128", "/dev/dri/renderD129"} {
			setup := []string{"-vaapi_device", node}
			filter := []string{"-vf", "format=nv12,hwupload"}
			if d.nullEncode(ctx, setup, filter, "h264_vaapi") {
				return true, node
			}
		}
		return false, ""
	case "videotoolbox":
		if runtime.GOOS != "darwin" {
			return false, ""
		}
		if d.nullEncode(ctx, nil, nil, "h264_videotoolbox") {
			return true, "Apple VideoToolbox"
		}
		return false, ""
	case "dxva2", "d3d11va":
		if runtime.GOOS != "windows" {
			return false, ""
		}
		if d.nullEncode(ctx, []string{"-hwaccel", name}, nil, "") {
			return true, strings.ToUpper(name)
		}
		return false, ""
	case "vulkan":
		if d.nullEncode(ctx, []string{"-init_hw_device", "vulkan"}, nil, "") {
			return true, "Vulkan"
		}
		return false, ""
	default:
		// No probe recipe, trust the listing.
		return true, ""
	}
}

// nullEncode pushes a tenth of a second of nullsrc through the given
// device setup and encoder. Failure means the device did not come up.
func (d *HWAccelDetector) nullEncode(ctx context.Context, setup, filter []string, encoder string) bool {
	args := []string{"-hide_banner"}
	args = append(args, setup...)
	args = append(args, "-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1")
	args = append(args, filter...)
	if encoder != "" {
		args = append(args, "-c:v", encoder)
	}
	args = append(args, "-t", "0.01", "-f", "null", "-")
	return exec.CommandContext(ctx, d.ffmpegPath, args...).Run() == nil
}

// nvidiaDeviceName asks nvidia-smi for the first GPU name.
func nvidiaDeviceName(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(name)
}

var hwEncoderSuffixes = map[string][]string{
	"cuda":         {"_nvenc"},
	"qsv":          {"_qsv"},
	"vaapi":        {"_vaapi"},
	"videotoolbox": {"_videotoolbox"},
	"amf":          {"_amf"},
}

// cuvid decoders cover both the cuda and nvdec entries. VAAPI and
// VideoToolbox decode through the hwaccel itself, not named decoders.
var hwDecoderSuffixes = map[string][]string{
	"cuda":  {"_cuvid"},
	"nvdec": {"_cuvid"},
	"qsv":   {"_qsv"},
}

// coderNames scans ffmpeg -encoders or -decoders output for codec
// names ending in one of the accelerator's suffixes.
func (d *HWAccelDetector) coderNames(ctx context.Context, flag string, suffixes []string) []string {
	if len(suffixes) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, d.ffmpegPath, flag, "-hide_banner").Output()
	if err != nil {
		return nil
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(fields[1], suffix) {
				names = append(names, fields[1])
				break
			}
		}
	}
	return names
}

// hwAccelPriority orders accelerators by encode quality and driver
// maturity for GetRecommendedHWAccel.
var hwAccelPriority = []HWAccelType{
	HWAccelNVENC,
	HWAccelQSV,
	HWAccelVideoToolbox,
	HWAccelVAAPI,
	HWAccelD3D11VA,
	HWAccelDXVA2,
	HWAccelVulkan,
}

// GetRecommendedHWAccel returns the best available accelerator, or nil
// when none is usable.
func GetRecommendedHWAccel(accels []HWAccelInfo) *HWAccelInfo {
	for _, want := range hwAccelPriority {
		for i := range accels {
			if accels[i].Type == want && accels[i].Available {
				return &accels[i]
			}
		}
	}
	return nil
}

// HasHWAccel reports whether the given accelerator is usable.
func (info *BinaryInfo) HasHWAccel(accelType HWAccelType) bool {
	for _, accel := range info.HWAccels {
		if accel.Type == accelType && accel.Available {
			return true
		}
	}
	return false
}

// GetAvailableHWAccels filters the detected accelerators to usable ones.
func (info *BinaryInfo) GetAvailableHWAccels() []HWAccelInfo {
	var available []HWAccelInfo
	for _, accel := range info.HWAccels {
		if accel.Available {
			available = append(available, accel)
		}
	}
	return available
}
