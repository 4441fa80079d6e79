package cli

import (
	"context"
	"fmt"

	"github.com/mgpai22/revoice/internal/config"
	"github.com/mgpai22/revoice/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "revoice",
	Short: "Re-voice the speech of a video with synthesized speech",
	Long: `Revoice is a CLI tool that replaces the speech of a video with a
synthesized voice.

It extracts the audio track, transcribes it, synthesizes the transcript
again, pads the new speech with silence or trims it to the original
audio's length and muxes it back into the video.

Supported languages: English, Spanish, French and Hindi.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		loaded, path, exists, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logger.Debugw("Loaded config", "path", path, "exists", exists)
		return nil
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Spoken language code (en, es, fr, hi)")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default ~/.config/revoice/config.toml)")
}
