package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/video"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [video_file]",
	Short: "Extract audio from a video file",
	Long: `Extract the audio track from a video file and save it as a separate audio file.

This is the first stage of a dub, exposed on its own for inspecting what the
transcriber will hear.

Supports multiple output formats: wav, mp3, aac, flac.

Examples:
  revoice extract video.mp4
  revoice extract video.mp4 -o audio.mp3 -f mp3
  revoice extract video.mp4 --format wav --sample-rate 44100 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().
		StringP("format", "f", "wav", "Output audio format (wav, mp3, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", 16000, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	extractCmd.Flags().
		IntP("channels", "c", 1, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
}

var extractFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"aac":  true,
	"flac": true,
}

func extractOptions(format string, sampleRate, channels int, bitrate string) (video.ExtractAudioOptions, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if !extractFormats[format] {
		return video.ExtractAudioOptions{}, fmt.Errorf(
			"invalid format %q: supported formats are wav, mp3, aac, flac",
			format,
		)
	}
	if sampleRate <= 0 {
		return video.ExtractAudioOptions{}, fmt.Errorf("sample-rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return video.ExtractAudioOptions{}, fmt.Errorf("channels must be positive, got %d", channels)
	}
	return video.ExtractAudioOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}, nil
}

func extractOutputPath(videoPath, format string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "." + format
}

func runExtract(cmd *cobra.Command, args []string) error {
	videoPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	opts, err := extractOptions(format, sampleRate, channels, bitrate)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = extractOutputPath(videoPath, opts.Format)
	}

	logger.Infow("Extracting audio",
		"video", videoPath,
		"output", outputPath,
		"format", opts.Format,
		"sample_rate", opts.SampleRate,
		"channels", opts.Channels,
	)

	processor := video.NewProcessor()
	if err := processor.ExtractAudio(cmd.Context(), videoPath, outputPath, opts); err != nil {
		if errors.Is(err, video.ErrNoAudioStream) {
			return fmt.Errorf("%s has no audio track", videoPath)
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Audio extracted successfully: %s\n", absOutput)
	if duration, err := audio.GetDuration(cmd.Context(), outputPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Duration: %s\n", duration.Round(time.Millisecond))
	}

	return nil
}
