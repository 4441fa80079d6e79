package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ffmpegbin "github.com/mgpai22/revoice/internal/ffmpeg"
)

// runs the openai-whisper CLI locally; the model is loaded per call but
// chosen once at construction
type WhisperTranscriber struct {
	binary string
	model  string
	prompt string
	runner ffmpegbin.Runner
}

func NewWhisperTranscriber(opts Options) (*WhisperTranscriber, error) {
	model := opts.Model
	if model == "" {
		model = DefaultWhisperModel
	}

	binary := opts.WhisperBinary
	if binary == "" {
		binary = "whisper"
	}

	return &WhisperTranscriber{
		binary: binary,
		model:  model,
		prompt: opts.Prompt,
		runner: ffmpegbin.ExecRunner,
	}, nil
}

// swaps the command runner; used by tests
func (t *WhisperTranscriber) WithRunner(runner ffmpegbin.Runner) *WhisperTranscriber {
	t.runner = runner
	return t
}

func (t *WhisperTranscriber) Model() string {
	return t.model
}

func (t *WhisperTranscriber) Transcribe(
	ctx context.Context,
	audioPath, language string,
) (*Transcript, error) {
	if err := checkInput(audioPath, language); err != nil {
		return nil, err
	}

	binary := t.binary
	if found, err := exec.LookPath(t.binary); err == nil {
		binary = found
	}

	outDir := filepath.Dir(audioPath)
	if _, err := t.runner(ctx, binary, t.args(audioPath, language, outDir)...); err != nil {
		return nil, fmt.Errorf("whisper failed: %w", err)
	}

	// whisper names its output after the input file stem
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outDir, stem+".json")
	defer func() { _ = os.Remove(jsonPath) }()

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	text, segments, err := parseWhisperJSON(raw)
	if err != nil {
		return nil, err
	}

	return newTranscript(language, text, segments)
}

func (t *WhisperTranscriber) args(audioPath, language, outDir string) []string {
	args := []string{
		audioPath,
		"--model", t.model,
		"--language", language,
		"--task", "transcribe",
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
		"--fp16", "False",
	}
	if t.prompt != "" {
		args = append(args, "--initial_prompt", t.prompt)
	}
	return args
}
