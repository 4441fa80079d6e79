package config

const (
	defaultLanguage     = "en"
	defaultWhisperModel = "small"
	defaultRemuxPreset  = "medium"
	defaultRemuxCRF     = 23
	defaultAudioBitrate = "192k"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Language: defaultLanguage,
		Transcribe: Transcribe{
			Provider:      "whisper",
			WhisperBinary: "whisper",
		},
		Synthesize: Synthesize{
			Provider: "gtts",
		},
		Translate: Translate{
			Provider: "gemini",
		},
		Align: Align{
			FadeOut: "0s",
		},
		Remux: Remux{
			Preset:       defaultRemuxPreset,
			CRF:          defaultRemuxCRF,
			AudioBitrate: defaultAudioBitrate,
		},
		Timeouts: Timeouts{
			Extract:    "10m",
			Transcribe: "30m",
			Synthesize: "10m",
			Align:      "5m",
			Remux:      "30m",
		},
	}
}
