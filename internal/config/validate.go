package config

import (
	"errors"
	"fmt"

	"github.com/mgpai22/revoice/internal/language"
)

// Validate ensures the configuration is usable. Missing API keys are not
// an error here; the CLI reports them only for providers actually selected.
func (c *Config) Validate() error {
	if err := c.validateLanguages(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateRemux(); err != nil {
		return err
	}
	switch c.SubtitleFormat {
	case "", "srt", "vtt":
	default:
		return fmt.Errorf("subtitle_format must be srt or vtt, got %q", c.SubtitleFormat)
	}
	return nil
}

func (c *Config) validateLanguages() error {
	if _, err := language.Lookup(c.Language); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	if c.TargetLanguage != "" {
		if _, err := language.Lookup(c.TargetLanguage); err != nil {
			return fmt.Errorf("target_language: %w", err)
		}
	}
	return nil
}

func (c *Config) validateProviders() error {
	switch c.Transcribe.Provider {
	case "whisper", "openai", "gemini":
	default:
		return fmt.Errorf("transcribe.provider must be whisper, openai or gemini, got %q", c.Transcribe.Provider)
	}
	switch c.Synthesize.Provider {
	case "gtts", "openai", "gemini":
	default:
		return fmt.Errorf("synthesize.provider must be gtts, openai or gemini, got %q", c.Synthesize.Provider)
	}
	switch c.Translate.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("translate.provider must be gemini, openai or anthropic, got %q", c.Translate.Provider)
	}
	return nil
}

func (c *Config) validateRemux() error {
	if c.Remux.CRF < 0 || c.Remux.CRF > 51 {
		return errors.New("remux.crf must be between 0 and 51")
	}
	return nil
}
