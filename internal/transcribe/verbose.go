package transcribe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// segment from whisper JSON, shared by the local CLI and the OpenAI
// verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

// returns the full text and the non-empty segments
func parseWhisperJSON(raw []byte) (string, []Segment, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", nil, fmt.Errorf("empty response")
	}

	var resp whisperResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  text,
		})
	}

	if len(segments) == 0 && strings.TrimSpace(resp.Text) != "" && resp.Duration > 0 {
		segments = append(segments, Segment{
			Start: 0,
			End:   seconds(resp.Duration),
			Text:  strings.TrimSpace(resp.Text),
		})
	}

	return resp.Text, segments, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
