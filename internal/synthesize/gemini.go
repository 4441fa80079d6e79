package synthesize

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"google.golang.org/genai"

	"github.com/mgpai22/revoice/internal/audio"
)

// Gemini TTS returns raw signed 16-bit little-endian mono PCM
const (
	geminiSampleRate = 24000
	geminiBitDepth   = 16
)

// implements Synthesizer using a Gemini TTS model
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiSynthesizer(ctx context.Context, apiKey string, opts Options) (*GeminiSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	voice := opts.Voice
	if voice == "" {
		voice = "Kore"
	}

	return &GeminiSynthesizer{
		client: client,
		model:  model,
		voice:  voice,
	}, nil
}

func (s *GeminiSynthesizer) Format() string {
	return "wav"
}

func (s *GeminiSynthesizer) Synthesize(
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

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: l.Tag.String(),
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: s.voice,
				},
			},
		},
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}

	pcm, rate, err := inlineAudio(result)
	if err != nil {
		return nil, err
	}

	buf := pcmToBuffer(pcm, rate)
	if err := audio.WriteWAV(outputPath, buf, geminiBitDepth); err != nil {
		return nil, fmt.Errorf("failed to write speech audio: %w", err)
	}

	return &Speech{
		Path:     outputPath,
		Language: l.Code,
		Text:     text,
		Format:   s.Format(),
	}, nil
}

// first inline audio blob of the response and its sample rate
func inlineAudio(result *genai.GenerateContentResponse) ([]byte, int, error) {
	if result == nil {
		return nil, 0, fmt.Errorf("empty response from Gemini")
	}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return part.InlineData.Data, sampleRate(part.InlineData.MIMEType), nil
		}
	}
	return nil, 0, fmt.Errorf("no audio in Gemini response")
}

// "audio/L16;codec=pcm;rate=24000" -> 24000
func sampleRate(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(key, "rate") {
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				return n
			}
		}
	}
	return geminiSampleRate
}

func pcmToBuffer(pcm []byte, rate int) *goaudio.IntBuffer {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: geminiBitDepth,
	}
}
