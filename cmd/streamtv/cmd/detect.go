package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/ffmpeg"
)

var (
	detectJSON    bool
	detectTimeout time.Duration
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect FFmpeg installation and hardware acceleration",
	Long: `Probe the FFmpeg installation and report version, codecs, and
hardware accelerators that are actually usable on this host.

Use this to verify what the transcoder can work with before enabling
hardware acceleration in the config.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "output capabilities as JSON")
	detectCmd.Flags().DurationVar(&detectTimeout, "timeout", 30*time.Second, "detection timeout")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()

	info, err := ffmpeg.NewBinaryDetector().Detect(ctx)
	if err != nil {
		return fmt.Errorf("detecting ffmpeg: %w", err)
	}

	if detectJSON {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling capabilities: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("ffmpeg:   %s (version %s)\n", info.FFmpegPath, info.Version)
	fmt.Printf("ffprobe:  %s\n", info.FFprobePath)

	fmt.Println("\nHardware accelerators:")
	available := info.GetAvailableHWAccels()
	if len(available) == 0 {
		fmt.Println("  none usable, software encoding only")
	} else {
		for _, hw := range available {
			line := fmt.Sprintf("  %-14s", hw.Name)
			if hw.DeviceName != "" {
				line += " " + hw.DeviceName
			}
			fmt.Println(line)
		}
		if rec := ffmpeg.GetRecommendedHWAccel(info.HWAccels); rec != nil {
			fmt.Printf("\nRecommended: %s\n", rec.Name)
		}
	}

	for _, enc := range []string{"libx264", "aac"} {
		if !info.HasEncoder(enc) {
			fmt.Printf("\nWARNING: encoder %q missing, transcoding will fail\n", enc)
		}
	}
	return nil
}
