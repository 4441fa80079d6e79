package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/revoice/internal/ffmpeg"
)

// returned when a container carries no audio stream to extract
var ErrNoAudioStream = errors.New("no audio stream")

// video file information
type Info struct {
	Path      string
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	HasVideo  bool
	HasAudio  bool
}

// holds options for audio extraction
type ExtractAudioOptions struct {
	Format     string // Output format (wav, mp3, aac, flac)
	SampleRate int    // Sample rate in Hz (e.g., 16000, 44100, 48000)
	Channels   int    // Number of channels (1 = mono, 2 = stereo)
	Bitrate    string // Bitrate for lossy formats (e.g., "128k", "320k")
}

// returns sensible defaults for audio extraction
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

// fixed output encoding; the source codecs are never copied
type RemuxOptions struct {
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	PixelFormat  string
	Preset       string
	CRF          int
}

// H.264 + AAC in MP4 plays nearly everywhere
func DefaultRemuxOptions() RemuxOptions {
	return RemuxOptions{
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		PixelFormat:  "yuv420p",
		Preset:       "medium",
		CRF:          23,
	}
}

// default implementation using ffmpeg
type DefaultProcessor struct {
	runner ffmpegbin.Runner
}

func NewProcessor() *DefaultProcessor {
	return &DefaultProcessor{runner: ffmpegbin.ExecRunner}
}

// swaps the command runner; used by tests
func (p *DefaultProcessor) WithRunner(runner ffmpegbin.Runner) *DefaultProcessor {
	p.runner = runner
	return p
}

// extracts audio from video file
func (p *DefaultProcessor) ExtractAudio(
	ctx context.Context,
	videoPath, outputPath string,
	opts ExtractAudioOptions,
) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}

	info, err := p.GetInfo(ctx, videoPath)
	if err != nil {
		return err
	}
	if !info.HasAudio {
		return fmt.Errorf("%s: %w", filepath.Base(videoPath), ErrNoAudioStream)
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := ffmpegbin.Run(ctx, p.runner, extractArgs(videoPath, outputPath, opts)); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}

	return nil
}

func extractArgs(videoPath, outputPath string, opts ExtractAudioOptions) []string {
	kwargs := ffmpeg.KwArgs{
		"vn": "",              // No video
		"ar": opts.SampleRate, // Sample rate
		"ac": opts.Channels,   // Channels
	}

	switch opts.Format {
	case "mp3":
		kwargs["acodec"] = "libmp3lame"
		if opts.Bitrate != "" {
			kwargs["b:a"] = opts.Bitrate
		}
	case "aac":
		kwargs["acodec"] = "aac"
		if opts.Bitrate != "" {
			kwargs["b:a"] = opts.Bitrate
		}
	case "flac":
		kwargs["acodec"] = "flac"
	default:
		kwargs["acodec"] = "pcm_s16le"
	}

	return ffmpeg.Input(videoPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		GetArgs()
}

// re-encodes the video stream of videoPath together with audioPath as the
// only audio stream
func (p *DefaultProcessor) Remux(
	ctx context.Context,
	videoPath, audioPath, outputPath string,
	opts RemuxOptions,
) error {
	for _, in := range []string{videoPath, audioPath} {
		if _, err := os.Stat(in); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", in)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := ffmpegbin.Run(ctx, p.runner, remuxArgs(videoPath, audioPath, outputPath, opts)); err != nil {
		return fmt.Errorf("ffmpeg remux failed: %w", err)
	}

	return nil
}

func remuxArgs(videoPath, audioPath, outputPath string, opts RemuxOptions) []string {
	kwargs := ffmpeg.KwArgs{
		"c:v":      opts.VideoCodec,
		"c:a":      opts.AudioCodec,
		"movflags": "+faststart",
	}
	if opts.AudioBitrate != "" {
		kwargs["b:a"] = opts.AudioBitrate
	}
	if opts.PixelFormat != "" {
		kwargs["pix_fmt"] = opts.PixelFormat
	}
	if opts.Preset != "" {
		kwargs["preset"] = opts.Preset
	}
	if opts.CRF > 0 {
		kwargs["crf"] = opts.CRF
	}

	source := ffmpeg.Input(videoPath)
	voice := ffmpeg.Input(audioPath)

	return ffmpeg.Output(
		[]*ffmpeg.Stream{source.Video(), voice.Audio()},
		outputPath,
		kwargs,
	).
		OverWriteOutput().
		GetArgs()
}

// subset of ffprobe -show_streams -show_format JSON
type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// retrieves video file information
func (p *DefaultProcessor) GetInfo(
	ctx context.Context,
	videoPath string,
) (*Info, error) {
	out, err := ffmpegbin.Probe(ctx, p.runner, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		videoPath,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(out)
	if err != nil {
		return nil, err
	}
	info.Path = videoPath
	return info, nil
}

func parseProbe(raw []byte) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}
	if secs, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = parseFrameRate(s.AvgFrameRate)
		}
	}

	return info, nil
}

// "30000/1001" -> 29.97
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
