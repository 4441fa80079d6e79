package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// sends a prompt and returns the model's raw text reply
type completeFunc func(ctx context.Context, prompt string) (string, error)

var codeFence = regexp.MustCompile("```(?:json)?\\s*")

// prompt, call, parse and count-check shared by every provider
func translateBatch(
	ctx context.Context,
	opts Options,
	complete completeFunc,
	batch []Segment,
) ([]Segment, error) {
	text, err := complete(ctx, BuildPrompt(opts, batch))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return parseResponse(text, batch)
}

func parseResponse(text string, batch []Segment) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	text = cleanJSONResponse(text)

	results, err := extractSegments(text)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse JSON response: %w (response: %s)",
			err,
			truncateString(text, 200),
		)
	}

	if len(results) != len(batch) {
		return nil, fmt.Errorf("expected %d results, got %d", len(batch), len(results))
	}

	want := make(map[int]bool, len(batch))
	for _, s := range batch {
		want[s.Index] = true
	}
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if !want[r.Index] {
			return nil, fmt.Errorf("unexpected index %d in response", r.Index)
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("duplicate index %d in response", r.Index)
		}
		seen[r.Index] = true
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
	return results, nil
}

func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = codeFence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// finds the first JSON value in text that decodes to segments, either a
// bare array or an object wrapping one
func extractSegments(text string) ([]Segment, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		if results, ok := tryExtractSegments(raw); ok {
			return results, nil
		}
	}
	return nil, fmt.Errorf("no valid translation JSON found in response")
}

func tryExtractSegments(raw json.RawMessage) ([]Segment, bool) {
	var results []Segment
	if err := json.Unmarshal(raw, &results); err == nil && hasText(results) {
		return results, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	for _, key := range []string{"results", "translations", "data", "items"} {
		if fieldRaw, ok := wrapper[key]; ok {
			var fieldResults []Segment
			if err := json.Unmarshal(fieldRaw, &fieldResults); err == nil && hasText(fieldResults) {
				return fieldResults, true
			}
		}
	}

	return nil, false
}

func hasText(results []Segment) bool {
	for _, r := range results {
		if r.Text != "" {
			return true
		}
	}
	return false
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
