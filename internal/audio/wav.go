package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/revoice/internal/ffmpeg"
)

// sample layout of an uncompressed PCM stream
type PCMFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f PCMFormat) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	switch f.BitDepth {
	case 8, 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	}
}

// converts a frame count into playback time at this format's rate
func (f PCMFormat) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

// header facts about a WAV file, read without decoding samples
type WAVInfo struct {
	Format PCMFormat
	Frames int
}

func (i WAVInfo) Duration() time.Duration {
	return i.Format.Duration(i.Frames)
}

// reads format and exact frame count from a WAV container
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := forwardToPCM(dec); err != nil {
		return WAVInfo{}, fmt.Errorf("%s: %w", path, err)
	}

	format := PCMFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if err := format.validate(); err != nil {
		return WAVInfo{}, fmt.Errorf("%s: %w", path, err)
	}

	frameSize := format.Channels * ((format.BitDepth-1)/8 + 1)
	return WAVInfo{
		Format: format,
		Frames: int(dec.PCMLen()) / frameSize,
	}, nil
}

// decodes every sample of a WAV file into memory
func ReadWAV(path string) (*goaudio.IntBuffer, PCMFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, PCMFormat{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := forwardToPCM(dec); err != nil {
		return nil, PCMFormat{}, fmt.Errorf("%s: %w", path, err)
	}

	format := PCMFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if err := format.validate(); err != nil {
		return nil, PCMFormat{}, fmt.Errorf("%s: %w", path, err)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, PCMFormat{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, format, nil
}

// encodes buf as a PCM WAV file
func WriteWAV(path string, buf *goaudio.IntBuffer, bitDepth int) error {
	if buf == nil || buf.Format == nil {
		return errors.New("nil audio buffer")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, buf.Format.SampleRate, bitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

// transcodes any ffmpeg-readable audio into PCM WAV of the given format
func ConvertToWAV(ctx context.Context, inputPath, outputPath string, format PCMFormat) error {
	if err := format.validate(); err != nil {
		return err
	}
	if err := ffmpegbin.Run(ctx, nil, convertArgs(inputPath, outputPath, format)); err != nil {
		return fmt.Errorf("convert to wav: %w", err)
	}
	return nil
}

func convertArgs(inputPath, outputPath string, format PCMFormat) []string {
	return ffmpeg.Input(inputPath).
		Output(outputPath, ffmpeg.KwArgs{
			"vn":     "",
			"acodec": pcmCodec(format.BitDepth),
			"ar":     format.SampleRate,
			"ac":     format.Channels,
		}).
		OverWriteOutput().
		GetArgs()
}

func pcmCodec(bitDepth int) string {
	switch bitDepth {
	case 8:
		return "pcm_u8"
	case 24:
		return "pcm_s24le"
	case 32:
		return "pcm_s32le"
	default:
		return "pcm_s16le"
	}
}

// positions the decoder at the data chunk; FwdToPCM hides header errors
func forwardToPCM(dec *wav.Decoder) error {
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("read wav header: %w", err)
	}
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("locate pcm data: %w", err)
	}
	if err := dec.Err(); err != nil {
		return fmt.Errorf("locate pcm data: %w", err)
	}
	return nil
}
