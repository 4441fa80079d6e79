package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
)

// bit depth of every aligned track
const alignedBitDepth = 16

// what the aligner did to the candidate
type Alignment struct {
	Reference time.Duration
	Candidate time.Duration
	Result    time.Duration

	// frames at the reference sample rate
	ReferenceFrames int
	CandidateFrames int
	PaddedFrames    int
	TruncatedFrames int
}

func (a *Alignment) Padded() bool {
	return a.PaddedFrames > 0
}

func (a *Alignment) Truncated() bool {
	return a.TruncatedFrames > 0
}

type AlignOptions struct {
	// linear fade applied to the tail of truncated audio; zero keeps the
	// hard cut
	FadeOut time.Duration
}

// forces a candidate track to the exact length of a reference track by
// appending silence or cutting the tail
type Aligner struct {
	opts AlignOptions
}

func NewAligner(opts AlignOptions) *Aligner {
	return &Aligner{opts: opts}
}

// writes outputPath as a PCM WAV whose frame count equals the reference's.
// referencePath must be a PCM WAV; candidatePath may be anything ffmpeg decodes.
func (a *Aligner) Align(
	ctx context.Context,
	referencePath, candidatePath, outputPath string,
) (*Alignment, error) {
	ref, err := ReadWAVInfo(referencePath)
	if err != nil {
		return nil, fmt.Errorf("measure reference: %w", err)
	}

	target := PCMFormat{
		SampleRate: ref.Format.SampleRate,
		Channels:   ref.Format.Channels,
		BitDepth:   alignedBitDepth,
	}

	decodable, cleanup, err := a.normalize(ctx, candidatePath, outputPath, target)
	if err != nil {
		return nil, fmt.Errorf("normalize candidate: %w", err)
	}
	defer cleanup()

	buf, _, err := ReadWAV(decodable)
	if err != nil {
		return nil, fmt.Errorf("measure candidate: %w", err)
	}
	candidateFrames := buf.NumFrames()

	aligned, padded, truncated := FitFrames(buf, ref.Frames)
	if truncated > 0 && a.opts.FadeOut > 0 {
		FadeOut(aligned, fadeFrames(a.opts.FadeOut, target.SampleRate))
	}

	if err := WriteWAV(outputPath, aligned, alignedBitDepth); err != nil {
		return nil, fmt.Errorf("write aligned audio: %w", err)
	}

	out, err := ReadWAVInfo(outputPath)
	if err != nil {
		return nil, fmt.Errorf("measure aligned audio: %w", err)
	}
	if out.Frames != ref.Frames {
		return nil, fmt.Errorf(
			"aligned audio has %d frames, reference has %d",
			out.Frames,
			ref.Frames,
		)
	}

	return &Alignment{
		Reference:       ref.Duration(),
		Candidate:       target.Duration(candidateFrames),
		Result:          out.Duration(),
		ReferenceFrames: ref.Frames,
		CandidateFrames: candidateFrames,
		PaddedFrames:    padded,
		TruncatedFrames: truncated,
	}, nil
}

// returns a WAV path in the target format, converting through ffmpeg only
// when the candidate is not already such a file
func (a *Aligner) normalize(
	ctx context.Context,
	candidatePath, outputPath string,
	target PCMFormat,
) (string, func(), error) {
	noop := func() {}

	if info, err := ReadWAVInfo(candidatePath); err == nil && info.Format == target {
		return candidatePath, noop, nil
	}

	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	converted := base + ".candidate.wav"
	if err := ConvertToWAV(ctx, candidatePath, converted, target); err != nil {
		_ = os.Remove(converted)
		return "", noop, err
	}
	return converted, func() { _ = os.Remove(converted) }, nil
}

// returns a buffer holding exactly frames frames: the leading part of buf,
// followed by zero samples when buf is shorter. buf is not modified.
func FitFrames(buf *goaudio.IntBuffer, frames int) (out *goaudio.IntBuffer, padded, truncated int) {
	channels := buf.Format.NumChannels
	have := buf.NumFrames()

	data := make([]int, frames*channels)
	if have < frames {
		copy(data, buf.Data[:have*channels])
		padded = frames - have
	} else {
		copy(data, buf.Data[:frames*channels])
		truncated = have - frames
	}

	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  buf.Format.SampleRate,
			NumChannels: channels,
		},
		Data:           data,
		SourceBitDepth: buf.SourceBitDepth,
	}, padded, truncated
}

// ramps the last frames frames of buf linearly down to silence, in place
func FadeOut(buf *goaudio.IntBuffer, frames int) {
	channels := buf.Format.NumChannels
	total := buf.NumFrames()
	if frames > total {
		frames = total
	}
	if frames <= 0 {
		return
	}

	start := total - frames
	for i := start; i < total; i++ {
		gain := float64(total-1-i) / float64(frames)
		for c := 0; c < channels; c++ {
			idx := i*channels + c
			buf.Data[idx] = int(float64(buf.Data[idx]) * gain)
		}
	}
}

func fadeFrames(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
