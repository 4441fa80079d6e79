package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/config"
	"github.com/mgpai22/revoice/internal/language"
	"github.com/mgpai22/revoice/internal/pipeline"
	"github.com/mgpai22/revoice/internal/subtitle"
	"github.com/mgpai22/revoice/internal/synthesize"
	"github.com/mgpai22/revoice/internal/transcribe"
	"github.com/mgpai22/revoice/internal/translate"
	"github.com/mgpai22/revoice/internal/video"
	"github.com/spf13/cobra"
)

var dubCmd = &cobra.Command{
	Use:   "dub [video_file]",
	Short: "Replace the speech of a video with synthesized speech",
	Long: `Transcribe the speech of a video, synthesize the transcript again and
mux the new voice back in. The new track is padded with silence or cut so
it lasts exactly as long as the original audio.

By default transcription runs locally with the whisper CLI and speech is
synthesized with Google Translate's text-to-speech endpoint, so no API key
is needed. Cloud providers read their key from --api-key, the config file
or GEMINI_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY.

With --target-language the transcript is translated before synthesis and
the dub is voiced in that language instead.

Examples:
  revoice dub talk.mp4
  revoice dub talk.mp4 -l es -o talk.dubbed.mp4
  revoice dub talk.mp4 -l en -t hi --translator gemini
  revoice dub talk.mp4 --transcriber openai --synthesizer openai --voice nova
  revoice dub talk.mp4 --subtitles vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runDub,
}

func init() {
	rootCmd.AddCommand(dubCmd)

	dubCmd.Flags().
		StringP("target-language", "t", "", "Voice the dub in this language (translates the transcript)")
	dubCmd.Flags().
		StringP("api-key", "k", "", "API key for cloud providers (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY)")
	dubCmd.Flags().
		String("transcriber", "", "Transcription provider (whisper, openai, gemini)")
	dubCmd.Flags().
		String("synthesizer", "", "Speech synthesis provider (gtts, openai, gemini)")
	dubCmd.Flags().
		String("translator", "", "Translation provider (gemini, openai, anthropic)")
	dubCmd.Flags().
		String("voice", "", "Voice name for openai or gemini synthesis")
	dubCmd.Flags().
		String("subtitles", "", "Also write the transcript as subtitles: srt, vtt, or a .srt/.vtt path")
	dubCmd.Flags().
		String("work-dir", "", "Directory for per-run temporary files")
	dubCmd.Flags().
		Duration("fade-out", 0, "Fade the tail of cut speech over this duration (e.g. 500ms)")
}

// raw flag values of the dub command
type dubFlags struct {
	output      string
	language    string
	target      string
	apiKey      string
	transcriber string
	synthesizer string
	translator  string
	voice       string
	subtitles   string
	workDir     string
	fadeOut     time.Duration
	fadeOutSet  bool
}

func readDubFlags(cmd *cobra.Command) dubFlags {
	var f dubFlags
	f.output, _ = cmd.Flags().GetString("output")
	f.language, _ = cmd.Flags().GetString("language")
	f.target, _ = cmd.Flags().GetString("target-language")
	f.apiKey, _ = cmd.Flags().GetString("api-key")
	f.transcriber, _ = cmd.Flags().GetString("transcriber")
	f.synthesizer, _ = cmd.Flags().GetString("synthesizer")
	f.translator, _ = cmd.Flags().GetString("translator")
	f.voice, _ = cmd.Flags().GetString("voice")
	f.subtitles, _ = cmd.Flags().GetString("subtitles")
	f.workDir, _ = cmd.Flags().GetString("work-dir")
	f.fadeOut, _ = cmd.Flags().GetDuration("fade-out")
	f.fadeOutSet = cmd.Flags().Changed("fade-out")
	return f
}

// config with flag overrides applied, validated
type dubSettings struct {
	cfg          config.Config
	source       string
	output       string
	language     string
	target       string // empty when the dub keeps the spoken language
	apiKey       string
	subtitlePath string
}

func newDubSettings(base config.Config, source string, f dubFlags) (*dubSettings, error) {
	c := base

	if v := strings.TrimSpace(f.language); v != "" {
		c.Language = strings.ToLower(v)
	}
	if v := strings.TrimSpace(f.target); v != "" {
		c.TargetLanguage = strings.ToLower(v)
	}
	// a provider switch drops the previous provider's model
	if v := strings.ToLower(strings.TrimSpace(f.transcriber)); v != "" && v != c.Transcribe.Provider {
		c.Transcribe.Provider = v
		c.Transcribe.Model = ""
	}
	if v := strings.ToLower(strings.TrimSpace(f.synthesizer)); v != "" && v != c.Synthesize.Provider {
		c.Synthesize.Provider = v
		c.Synthesize.Model = ""
		c.Synthesize.Voice = ""
	}
	if v := strings.ToLower(strings.TrimSpace(f.translator)); v != "" && v != c.Translate.Provider {
		c.Translate.Provider = v
		c.Translate.Model = ""
	}
	if f.voice != "" {
		c.Synthesize.Voice = f.voice
	}
	if f.workDir != "" {
		c.WorkDir = f.workDir
	}
	if f.fadeOutSet {
		if f.fadeOut < 0 {
			return nil, fmt.Errorf("fade-out must not be negative, got %s", f.fadeOut)
		}
		c.Align.FadeOutDuration = f.fadeOut
	}

	var subtitlePath string
	if v := strings.TrimSpace(f.subtitles); v != "" {
		if format, err := subtitle.ParseFormat(v); err == nil {
			c.SubtitleFormat = string(format)
		} else if ext := strings.ToLower(filepath.Ext(v)); ext == ".srt" || ext == ".vtt" {
			subtitlePath = v
			c.SubtitleFormat = strings.TrimPrefix(ext, ".")
		} else {
			return nil, fmt.Errorf("subtitles must be srt, vtt or a .srt/.vtt path, got %q", v)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", source)
		}
		return nil, err
	}
	if audio.IsAudioFile(source) {
		return nil, fmt.Errorf("%s is an audio file; dub needs a video", source)
	}
	if !audio.IsVideoFile(source) {
		return nil, fmt.Errorf("unsupported file type: %s (expected a video file)", filepath.Ext(source))
	}

	spoken, _ := language.Lookup(c.Language)
	target := ""
	if c.TargetLanguage != "" {
		t, _ := language.Lookup(c.TargetLanguage)
		if t.Code != spoken.Code {
			target = t.Code
		}
	}

	s := &dubSettings{
		cfg:      c,
		source:   source,
		output:   f.output,
		language: spoken.Code,
		target:   target,
		apiKey:   strings.TrimSpace(f.apiKey),
	}
	if s.output == "" {
		s.output = defaultDubOutput(source, s.voiceLanguage())
	}
	if c.SubtitleFormat != "" && subtitlePath == "" {
		subtitlePath = strings.TrimSuffix(s.output, filepath.Ext(s.output)) + "." + c.SubtitleFormat
	}
	s.subtitlePath = subtitlePath

	if err := s.checkKeys(); err != nil {
		return nil, err
	}
	return s, nil
}

// language the dub is voiced in
func (s *dubSettings) voiceLanguage() string {
	if s.target != "" {
		return s.target
	}
	return s.language
}

// talk.mp4 -> talk.es.mp4 next to the source
func defaultDubOutput(source, lang string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + "." + lang + ".mp4"
}

// resolves the key for a cloud provider: flag, then config file or env
func (s *dubSettings) key(provider string) (string, error) {
	if s.apiKey != "" {
		return s.apiKey, nil
	}
	if k := s.cfg.APIKey(provider); k != "" {
		return k, nil
	}
	return "", fmt.Errorf(
		"%s API key is required: use --api-key flag or set %s environment variable",
		provider,
		config.KeyEnv(provider),
	)
}

// fails before any work when a selected cloud provider has no key
func (s *dubSettings) checkKeys() error {
	if p := transcribe.Provider(s.cfg.Transcribe.Provider); !p.Offline() {
		if _, err := s.key(string(p)); err != nil {
			return err
		}
	}
	if p := synthesize.Provider(s.cfg.Synthesize.Provider); !p.Offline() {
		if _, err := s.key(string(p)); err != nil {
			return err
		}
	}
	if s.target != "" {
		if _, err := s.key(s.cfg.Translate.Provider); err != nil {
			return err
		}
	}
	return nil
}

func (s *dubSettings) buildStages(ctx context.Context) (pipeline.Stages, error) {
	var (
		transcriber transcribe.Transcriber
		synthesizer synthesize.Synthesizer
		err         error
	)

	tp := transcribe.Provider(s.cfg.Transcribe.Provider)
	tKey, _ := s.key(string(tp))
	if tp.Offline() {
		tKey = ""
	}
	transcriber, err = transcribe.Factory(ctx, tp, tKey, transcribe.Options{
		Model:         s.cfg.Transcribe.Model,
		Prompt:        s.cfg.Transcribe.Prompt,
		WhisperBinary: s.cfg.Transcribe.WhisperBinary,
	})
	if err != nil {
		return pipeline.Stages{}, fmt.Errorf("failed to create transcriber: %w", err)
	}

	sp := synthesize.Provider(s.cfg.Synthesize.Provider)
	sKey, _ := s.key(string(sp))
	if sp.Offline() {
		sKey = ""
	}
	synthesizer, err = synthesize.Factory(ctx, sp, sKey, synthesize.Options{
		Model: s.cfg.Synthesize.Model,
		Voice: s.cfg.Synthesize.Voice,
	})
	if err != nil {
		return pipeline.Stages{}, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	if s.target != "" {
		key, err := s.key(s.cfg.Translate.Provider)
		if err != nil {
			return pipeline.Stages{}, err
		}
		translator, err := translate.Factory(ctx, translate.Provider(s.cfg.Translate.Provider), key, translate.Options{
			SourceLanguage: language.Name(s.language),
			TargetLanguage: language.Name(s.target),
			Model:          s.cfg.Translate.Model,
			Prompt:         s.cfg.Translate.Prompt,
		})
		if err != nil {
			return pipeline.Stages{}, fmt.Errorf("failed to create translator: %w", err)
		}
		synthesizer, err = synthesize.NewTranslatingSynthesizer(synthesizer, translator, s.target)
		if err != nil {
			return pipeline.Stages{}, err
		}
	}

	processor := video.NewProcessor()
	return pipeline.Stages{
		Extractor:   processor,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Aligner:     audio.NewAligner(audio.AlignOptions{FadeOut: s.cfg.Align.FadeOutDuration}),
		Remuxer:     processor,
	}, nil
}

func (s *dubSettings) runnerOptions() pipeline.Options {
	remux := video.DefaultRemuxOptions()
	if s.cfg.Remux.Preset != "" {
		remux.Preset = s.cfg.Remux.Preset
	}
	remux.CRF = s.cfg.Remux.CRF
	if s.cfg.Remux.AudioBitrate != "" {
		remux.AudioBitrate = s.cfg.Remux.AudioBitrate
	}

	return pipeline.Options{
		WorkDir: s.cfg.WorkDir,
		Timeouts: pipeline.Timeouts{
			Extract:    s.cfg.StageTimeout("extract"),
			Transcribe: s.cfg.StageTimeout("transcribe"),
			Synthesize: s.cfg.StageTimeout("synthesize"),
			Align:      s.cfg.StageTimeout("align"),
			Remux:      s.cfg.StageTimeout("remux"),
		},
		Extract: video.DefaultExtractAudioOptions(),
		Remux:   remux,
		Logger:  logger,
	}
}

func runDub(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newDubSettings(*cfg, args[0], readDubFlags(cmd))
	if err != nil {
		return err
	}

	stages, err := s.buildStages(ctx)
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(stages, s.runnerOptions())
	if err != nil {
		return err
	}

	logger.Infow("Dubbing video",
		"input", s.source,
		"output", s.output,
		"language", s.language,
		"voice_language", s.voiceLanguage(),
		"transcriber", s.cfg.Transcribe.Provider,
		"synthesizer", s.cfg.Synthesize.Provider,
	)

	out := cmd.OutOrStdout()
	progress := cmd.ErrOrStderr()
	colorize := shouldColorize(progress)

	res, runErr := runner.Run(ctx, pipeline.Request{
		SourcePath: s.source,
		Language:   s.language,
		OutputPath: s.output,
		Observer:   progressObserver(progress, colorize),
	})

	if res != nil {
		for _, w := range res.Warnings {
			fmt.Fprintln(progress, renderStatusLine("Cleanup", statusWarn, w.Error(), colorize))
		}
		if res.Transcript != nil {
			printTranscript(out, res)
		}
	}

	if runErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			return fmt.Errorf("dub failed at %s (%s): %w", strings.ToLower(stageLabel(stageErr.Stage)), stageErr.Kind, stageErr.Err)
		}
		return fmt.Errorf("dub failed: %w", runErr)
	}

	subtitlePath := ""
	if s.subtitlePath != "" {
		if err := writeSubtitles(res, s.subtitlePath); err != nil {
			// the video is already published
			logger.Warnw("Failed to write subtitles", "path", s.subtitlePath, "error", err)
		} else {
			subtitlePath = s.subtitlePath
		}
	}

	fmt.Fprintln(out, renderSummary(res, subtitlePath))

	absOutput, _ := filepath.Abs(res.OutputPath)
	fmt.Fprintf(out, "Dubbed video written: %s\n", absOutput)
	return nil
}
