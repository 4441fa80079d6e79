package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/revoice/internal/language"
)

// implements Transcriber interface using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath, lang string) (*Transcript, error) {
	if err := checkInput(audioPath, lang); err != nil {
		return nil, err
	}

	upload, err := uploadCopy(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(upload) }()

	uploadedFile, err := t.client.Files.UploadFromPath(ctx, upload, &genai.UploadFileConfig{
		MIMEType: "audio/mpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(buildPrompt(lang, t.options.Prompt)),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	segments, err := parseSegments(result.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	return newTranscript(lang, "", segments)
}

// creates the prompt for transcription
func buildPrompt(lang, extra string) string {
	var sb strings.Builder

	sb.WriteString("Generate a verbatim transcript of the speech in this audio. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers). ")
	sb.WriteString(fmt.Sprintf("The speech is in %s; transcribe it in %s without translating. ", language.Name(lang), language.Name(lang)))
	sb.WriteString("If there is no speech, return an empty array. ")

	if extra != "" {
		sb.WriteString(extra)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

var codeFence = regexp.MustCompile("```(?:json)?\\s*")

// parses the model's JSON array, tolerating code fences and prose around it
func parseSegments(text string) ([]Segment, error) {
	text = strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
	text = strings.ReplaceAll(text, "```", "")
	if text == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in response: %s", truncateString(text, 200))
	}

	var raw []transcriptSegment
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w (response: %s)", err, truncateString(text, 200))
	}

	segments := make([]Segment, 0, len(raw))
	for _, ts := range raw {
		trimmed := strings.TrimSpace(ts.Text)
		if trimmed == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: seconds(ts.Start),
			End:   seconds(ts.End),
			Text:  trimmed,
		})
	}

	return segments, nil
}

// truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
