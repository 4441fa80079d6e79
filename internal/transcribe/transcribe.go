package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
)

// returned when recognition succeeds but yields no speech
var ErrEmptyTranscript = errors.New("no speech recognized")

// timed piece of a transcript
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// transcription result; Text is trimmed and non-empty
type Transcript struct {
	Text     string
	Language string
	Segments []Segment
}

// interface for audio transcription constrained to one language
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Transcript, error)
}

// transcription service provider
type Provider string

const (
	ProviderWhisper Provider = "whisper"
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
)

const DefaultWhisperModel = "small"

// transcription options
type Options struct {
	Model         string // fixed for the lifetime of the transcriber
	Prompt        string
	WhisperBinary string // whisper CLI, looked up on PATH when empty
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderWhisper, "":
		return NewWhisperTranscriber(opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// providers that need no API key
func (p Provider) Offline() bool {
	return p == ProviderWhisper || p == ""
}

// builds a transcript from backend output, trimming only the ends; falls
// back to joined segment text when the backend gives no full text
func newTranscript(language, text string, segments []Segment) (*Transcript, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		parts := make([]string, 0, len(segments))
		for _, s := range segments {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, " ")
	}
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &Transcript{
		Text:     text,
		Language: language,
		Segments: segments,
	}, nil
}

func checkInput(audioPath, language string) error {
	if language == "" {
		return fmt.Errorf("language is required")
	}
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return fmt.Errorf("audio file not found: %s", audioPath)
	}
	return nil
}

// writes a small mono mp3 next to audioPath for upload to cloud APIs; the
// caller removes it
func uploadCopy(ctx context.Context, audioPath string) (string, error) {
	ext := filepath.Ext(audioPath)
	out := strings.TrimSuffix(audioPath, ext) + ".upload.mp3"

	if err := audio.CompressAudio(ctx, audioPath, out, audio.DefaultCompressionOptions()); err != nil {
		return "", fmt.Errorf("failed to prepare audio for upload: %w", err)
	}
	return out, nil
}
