package ffmpeg

import "strings"

// CodecFamily groups decoder and encoder names by underlying codec, so
// "libx264", "h264_nvenc" and ffprobe's "h264" all resolve the same.
type CodecFamily string

const (
	CodecFamilyH264    CodecFamily = "h264"
	CodecFamilyHEVC    CodecFamily = "hevc"
	CodecFamilyMPEG2   CodecFamily = "mpeg2"
	CodecFamilyVP9     CodecFamily = "vp9"
	CodecFamilyAV1     CodecFamily = "av1"
	CodecFamilyUnknown CodecFamily = ""
)

// codecFamilyOf resolves an ffprobe codec name or an FFmpeg encoder
// name to its family.
func codecFamilyOf(name string) CodecFamily {
	name = strings.ToLower(name)
	switch {
	case name == "h264" || name == "libx264" || strings.HasPrefix(name, "h264_"):
		return CodecFamilyH264
	case name == "hevc" || name == "h265" || name == "libx265" || strings.HasPrefix(name, "hevc_"):
		return CodecFamilyHEVC
	case name == "mpeg2video" || strings.HasPrefix(name, "mpeg2_"):
		return CodecFamilyMPEG2
	case name == "vp9" || name == "libvpx-vp9" || strings.HasPrefix(name, "vp9_"):
		return CodecFamilyVP9
	case name == "av1" || name == "libaom-av1" || name == "libsvtav1" || strings.HasPrefix(name, "av1_"):
		return CodecFamilyAV1
	default:
		return CodecFamilyUnknown
	}
}

// annexBFilter returns the -bsf:v chain a copied video stream needs in
// MPEG-TS. The mp4toannexb filters are no-ops on streams that are
// already Annex B, so applying them unconditionally is safe. dump_extra
// repeats parameter sets with each keyframe so clients joining
// mid-stream can decode.
func annexBFilter(family CodecFamily) string {
	switch family {
	case CodecFamilyH264:
		return "h264_mp4toannexb,dump_extra"
	case CodecFamilyHEVC:
		return "hevc_mp4toannexb,dump_extra"
	default:
		return "dump_extra"
	}
}
