package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/language"
	"github.com/mgpai22/revoice/internal/pipeline"
	"github.com/mgpai22/revoice/internal/subtitle"
)

func printTranscript(w io.Writer, res *pipeline.Result) {
	t := res.Transcript
	fmt.Fprintf(w, "Transcript (%s):\n%s\n", language.Name(t.Language), indent(t.Text))
	if res.Spoken != "" && res.SpokenLanguage != t.Language {
		fmt.Fprintf(w, "\nVoiced (%s):\n%s\n", language.Name(res.SpokenLanguage), indent(res.Spoken))
	}
	fmt.Fprintln(w)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func renderSummary(res *pipeline.Result, subtitlePath string) string {
	rows := [][]string{
		{"Run", res.RunID},
		{"Output", res.OutputPath},
	}
	if a := res.Alignment; a != nil {
		rows = append(rows,
			[]string{"Source audio", formatSeconds(a.Reference)},
			[]string{"Synthesized speech", formatSeconds(a.Candidate)},
			[]string{"Adjustment", describeAlignment(a)},
		)
	}
	if subtitlePath != "" {
		rows = append(rows, []string{"Subtitles", subtitlePath})
	}
	rows = append(rows, []string{"Elapsed", res.Elapsed.Round(time.Millisecond).String()})

	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func describeAlignment(a *audio.Alignment) string {
	switch {
	case a.Padded():
		return "padded " + formatSeconds(a.Result-a.Candidate) + " of silence"
	case a.Truncated():
		return "cut " + formatSeconds(a.Candidate-a.Result)
	default:
		return "none"
	}
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// writes the transcript as a subtitle track timed to the source audio
func writeSubtitles(res *pipeline.Result, path string) error {
	t := res.Transcript
	if t == nil {
		return fmt.Errorf("no transcript")
	}

	segments := make([]subtitle.Segment, 0, len(t.Segments))
	for _, seg := range t.Segments {
		segments = append(segments, subtitle.Segment{
			StartTime: seg.Start,
			EndTime:   seg.End,
			Text:      seg.Text,
		})
	}

	var duration time.Duration
	if res.Alignment != nil {
		duration = res.Alignment.Reference
	}

	sub := subtitle.NewGenerator().Generate(t.Text, segments, duration)
	sub.Language = t.Language
	if len(sub.Entries) == 0 {
		return fmt.Errorf("transcript produced no subtitle cues")
	}

	format := subtitle.FormatFromPath(path)
	if err := subtitle.Write(sub, path, format); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	logger.Infow("Subtitles written", "path", filepath.Clean(path), "entries", len(sub.Entries))
	return nil
}
