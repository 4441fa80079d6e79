package subtitle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatTimes(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	if got := formatSRTTime(d); got != "01:02:03,045" {
		t.Errorf("formatSRTTime() = %q", got)
	}
	if got := formatVTTTime(d); got != "01:02:03.045" {
		t.Errorf("formatVTTTime() = %q", got)
	}
	if got := formatSRTTime(-time.Second); got != "00:00:00,000" {
		t.Errorf("negative duration = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"srt": FormatSRT, ".VTT": FormatVTT, " vtt ": FormatVTT} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("ass"); err == nil {
		t.Error("expected error for ass")
	}
	if FormatFromPath("out.vtt") != FormatVTT || FormatFromPath("out.txt") != FormatSRT {
		t.Error("FormatFromPath() mismatch")
	}
}

func TestEncode(t *testing.T) {
	sub := &Subtitle{Entries: []Entry{
		{StartTime: 0, EndTime: 1500 * time.Millisecond, Text: "Hola."},
		{StartTime: 1500 * time.Millisecond, EndTime: 3 * time.Second, Text: "Adiós."},
	}}

	var srt bytes.Buffer
	if err := Encode(&srt, sub, FormatSRT); err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHola.\n\n2\n00:00:01,500 --> 00:00:03,000\nAdiós.\n\n"
	if srt.String() != want {
		t.Errorf("SRT =\n%q\nwant\n%q", srt.String(), want)
	}

	var vtt bytes.Buffer
	if err := Encode(&vtt, sub, FormatVTT); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(vtt.String(), "WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.500\n") {
		t.Errorf("VTT = %q", vtt.String())
	}

	if err := Encode(&bytes.Buffer{}, sub, Format("ass")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestWriteCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.srt")
	sub := &Subtitle{Entries: []Entry{{EndTime: time.Second, Text: "x"}}}
	if err := Write(sub, path, FormatSRT); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func TestGenerateSingleCueWithoutSegments(t *testing.T) {
	sub := NewGenerator().Generate("Bonjour tout le monde.", nil, 5*time.Second)
	if len(sub.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(sub.Entries))
	}
	if e := sub.Entries[0]; e.StartTime != 0 || e.EndTime != 5*time.Second {
		t.Errorf("unexpected cue timing %v-%v", e.StartTime, e.EndTime)
	}

	if empty := NewGenerator().Generate("", nil, 5*time.Second); len(empty.Entries) != 0 {
		t.Errorf("empty transcript produced %d entries", len(empty.Entries))
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator()
	segments := []Segment{
		{StartTime: 0, EndTime: 2 * time.Second, Text: " Hello. "},
		{StartTime: 2 * time.Second, EndTime: 3 * time.Second, Text: "   "},
		{StartTime: 3 * time.Second, EndTime: 20 * time.Second, Text: "A long monologue that keeps going well past the maximum cue length."},
		{StartTime: 25 * time.Second, EndTime: 30 * time.Second, Text: "Past the end."},
	}

	sub := g.Generate("", segments, 22*time.Second)
	if len(sub.Entries) < 3 {
		t.Fatalf("expected the long segment to be split, got %d entries", len(sub.Entries))
	}
	if sub.Entries[0].Text != "Hello." {
		t.Errorf("first cue = %q", sub.Entries[0].Text)
	}
	for i, e := range sub.Entries {
		if e.Index != i+1 {
			t.Errorf("entry %d has index %d", i, e.Index)
		}
		if e.EndTime > 22*time.Second {
			t.Errorf("entry %d ends after the media: %v", i, e.EndTime)
		}
		if e.EndTime-e.StartTime > g.MaxDuration {
			t.Errorf("entry %d lasts %v", i, e.EndTime-e.StartTime)
		}
	}
	if last := sub.Entries[len(sub.Entries)-1]; last.EndTime != 20*time.Second {
		t.Errorf("last cue ends at %v, want 20s", last.EndTime)
	}
}

func TestGenerateClampsSplitCuesToMedia(t *testing.T) {
	g := NewGenerator()
	text := "The speaker keeps talking long after the dubbed track has ended, " +
		"so everything that would spill over the end has to be folded into the remaining time."
	media := 10 * time.Second
	segments := []Segment{
		{StartTime: 2 * time.Second, EndTime: 30 * time.Second, Text: text},
		{StartTime: 12 * time.Second, EndTime: 14 * time.Second, Text: "Never heard."},
	}

	sub := g.Generate("", segments, media)
	if len(sub.Entries) < 2 {
		t.Fatalf("expected the segment to be split, got %d entries", len(sub.Entries))
	}

	var words []string
	prevEnd := 2 * time.Second
	for i, e := range sub.Entries {
		if e.StartTime != prevEnd {
			t.Errorf("entry %d starts at %v, want %v", i, e.StartTime, prevEnd)
		}
		if e.EndTime <= e.StartTime || e.EndTime > media {
			t.Errorf("entry %d spans %v-%v", i, e.StartTime, e.EndTime)
		}
		if e.EndTime-e.StartTime > g.MaxDuration {
			t.Errorf("entry %d lasts %v", i, e.EndTime-e.StartTime)
		}
		for _, line := range strings.Split(e.Text, "\n") {
			if n := len([]rune(line)); n > g.MaxCharsPerLine*g.MaxLinesPerSub {
				t.Errorf("entry %d has a %d character line", i, n)
			}
		}
		words = append(words, strings.Fields(e.Text)...)
		prevEnd = e.EndTime
	}
	if prevEnd != media {
		t.Errorf("last cue ends at %v, want %v", prevEnd, media)
	}
	if got := strings.Join(words, " "); got != text {
		t.Errorf("cue text = %q, want %q", got, text)
	}
}

func TestShareWordsKeepsEveryRunNonEmpty(t *testing.T) {
	words := strings.Fields("a bb ccc dddd eeeee ffffff")
	for n := 1; n <= len(words); n++ {
		runs := shareWords(words, n)
		if len(runs) != n {
			t.Fatalf("n=%d: got %d runs", n, len(runs))
		}
		var joined []string
		for i, r := range runs {
			if len(r) == 0 {
				t.Errorf("n=%d: run %d is empty", n, i)
			}
			joined = append(joined, r...)
		}
		if strings.Join(joined, " ") != strings.Join(words, " ") {
			t.Errorf("n=%d: words reordered or lost: %v", n, runs)
		}
	}
}

func TestFormatTextWrapsLongLines(t *testing.T) {
	g := NewGenerator()
	got := g.formatText("This line is definitely longer than forty two characters in total")
	if !strings.Contains(got, "\n") {
		t.Errorf("expected a line break in %q", got)
	}
	if g.formatText("short") != "short" {
		t.Error("short text should be unchanged")
	}
}
