package synthesize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgpai22/revoice/internal/language"
)

// returned for language codes a synthesizer cannot voice
var ErrUnsupportedLanguage = errors.New("unsupported synthesis language")

// synthesized audio written by one call
type Speech struct {
	Path     string
	Language string // code the audio was voiced in
	Text     string // exact text voiced
	Format   string
}

// interface for text-to-speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, outputPath string) (*Speech, error)
	// container/extension of the files Synthesize writes, e.g. "mp3"
	Format() string
}

// synthesis service provider
type Provider string

const (
	ProviderGTTS   Provider = "gtts"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// providers that need no API key
func (p Provider) Offline() bool {
	return p == ProviderGTTS || p == ""
}

// synthesis options
type Options struct {
	Model   string
	Voice   string
	BaseURL string // overrides the provider endpoint
}

// creates Synthesizer based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Synthesizer, error) {
	switch provider {
	case ProviderGTTS, "":
		return NewGTTSSynthesizer(opts), nil
	case ProviderOpenAI:
		return NewOpenAISynthesizer(apiKey, opts)
	case ProviderGemini:
		return NewGeminiSynthesizer(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported synthesis provider: %s", provider)
	}
}

// validates the code against the supported set
func checkLanguage(code string) (language.Language, error) {
	lang, err := language.Lookup(code)
	if err != nil {
		return language.Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return lang, nil
}

// writes data to path via a temp sibling so a failed write leaves nothing
// half-written behind
func writeFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
