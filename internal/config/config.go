package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Transcribe selects the speech recognition backend.
type Transcribe struct {
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	WhisperBinary string `toml:"whisper_binary"`
	Prompt        string `toml:"prompt"`
}

// Synthesize selects the text-to-speech backend.
type Synthesize struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	Voice    string `toml:"voice"`
}

// Translate configures the optional translation step.
type Translate struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	Prompt   string `toml:"prompt"`
}

// Align configures duration alignment.
type Align struct {
	FadeOut string `toml:"fade_out"`

	FadeOutDuration time.Duration `toml:"-"`
}

// Remux configures the output encode.
type Remux struct {
	Preset       string `toml:"preset"`
	CRF          int    `toml:"crf"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Timeouts bounds each pipeline stage; "0" disables the limit.
type Timeouts struct {
	Extract    string `toml:"extract"`
	Transcribe string `toml:"transcribe"`
	Synthesize string `toml:"synthesize"`
	Align      string `toml:"align"`
	Remux      string `toml:"remux"`

	parsed map[string]time.Duration
}

// Keys holds provider API keys. Empty values fall back to the environment.
type Keys struct {
	Gemini    string `toml:"gemini"`
	OpenAI    string `toml:"openai"`
	Anthropic string `toml:"anthropic"`
}

// Config is the full revoice configuration.
type Config struct {
	WorkDir        string `toml:"work_dir"`
	Language       string `toml:"language"`
	TargetLanguage string `toml:"target_language"`
	SubtitleFormat string `toml:"subtitle_format"`

	Transcribe Transcribe `toml:"transcribe"`
	Synthesize Synthesize `toml:"synthesize"`
	Translate  Translate  `toml:"translate"`
	Align      Align      `toml:"align"`
	Remux      Remux      `toml:"remux"`
	Timeouts   Timeouts   `toml:"timeouts"`
	Keys       Keys       `toml:"keys"`
}

// DefaultConfigPath returns ~/.config/revoice/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/revoice/config.toml")
}

// Load reads the config at path (or the default location when empty),
// applies the environment and validates the result. It reports the
// resolved path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// StageTimeout returns the parsed limit for a stage name such as
// "transcribe"; zero means unlimited.
func (c *Config) StageTimeout(stage string) time.Duration {
	return c.Timeouts.parsed[stage]
}

// APIKey returns the key for a provider name, or "" for offline providers.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "gemini":
		return c.Keys.Gemini
	case "openai":
		return c.Keys.OpenAI
	case "anthropic":
		return c.Keys.Anthropic
	default:
		return ""
	}
}

// KeyEnv names the environment variable consulted for a provider's key.
func KeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Sample renders the defaults as TOML, suitable as a starting config file.
func Sample() (string, error) {
	cfg := Default()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode sample config: %w", err)
	}
	return string(data), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
