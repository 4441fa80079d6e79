package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.WorkDir) == "" {
		c.WorkDir = os.TempDir()
	}
	if c.WorkDir, err = expandPath(c.WorkDir); err != nil {
		return fmt.Errorf("work_dir: %w", err)
	}

	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.TargetLanguage = strings.ToLower(strings.TrimSpace(c.TargetLanguage))
	c.SubtitleFormat = strings.ToLower(strings.TrimSpace(c.SubtitleFormat))

	c.Transcribe.Provider = strings.ToLower(strings.TrimSpace(c.Transcribe.Provider))
	if c.Transcribe.Model == "" && c.Transcribe.Provider == "whisper" {
		c.Transcribe.Model = defaultWhisperModel
	}
	c.Synthesize.Provider = strings.ToLower(strings.TrimSpace(c.Synthesize.Provider))
	c.Translate.Provider = strings.ToLower(strings.TrimSpace(c.Translate.Provider))

	if c.Align.FadeOutDuration, err = parseDuration(c.Align.FadeOut); err != nil {
		return fmt.Errorf("align.fade_out: %w", err)
	}

	if err := c.normalizeTimeouts(); err != nil {
		return err
	}
	c.normalizeKeys()
	return nil
}

func (c *Config) normalizeTimeouts() error {
	c.Timeouts.parsed = make(map[string]time.Duration, 5)
	for name, raw := range map[string]string{
		"extract":    c.Timeouts.Extract,
		"transcribe": c.Timeouts.Transcribe,
		"synthesize": c.Timeouts.Synthesize,
		"align":      c.Timeouts.Align,
		"remux":      c.Timeouts.Remux,
	} {
		d, err := parseDuration(raw)
		if err != nil {
			return fmt.Errorf("timeouts.%s: %w", name, err)
		}
		c.Timeouts.parsed[name] = d
	}
	return nil
}

func (c *Config) normalizeKeys() {
	for provider, key := range map[string]*string{
		"gemini":    &c.Keys.Gemini,
		"openai":    &c.Keys.OpenAI,
		"anthropic": &c.Keys.Anthropic,
	} {
		*key = strings.TrimSpace(*key)
		if *key != "" {
			continue
		}
		if value, ok := os.LookupEnv(KeyEnv(provider)); ok {
			*key = strings.TrimSpace(value)
		}
	}
}

// empty and "0" mean no limit
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative: %s", raw)
	}
	return d, nil
}
