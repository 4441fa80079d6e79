package synthesize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Synthesizer using the OpenAI Audio Speech API; the model
// infers the language from the text
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(apiKey string, opts Options) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	model := opts.Model
	if model == "" {
		model = openai.SpeechModelTTS1
	}
	voice := opts.Voice
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}

	return &OpenAISynthesizer{
		client: openai.NewClient(reqOpts...),
		model:  model,
		voice:  voice,
	}, nil
}

func (s *OpenAISynthesizer) Format() string {
	return "mp3"
}

func (s *OpenAISynthesizer) Synthesize(
	ctx context.Context,
	text, lang, outputPath string,
) (*Speech, error) {
	l, err := checkLanguage(lang)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech request failed: %s", resp.Status)
	}

	err = writeFileAtomic(outputPath, func(f *os.File) error {
		n, err := io.Copy(f, resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read speech audio: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("speech response was empty")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Speech{
		Path:     outputPath,
		Language: l.Code,
		Text:     text,
		Format:   s.Format(),
	}, nil
}
