package subtitle

import (
	"strings"
	"time"
	"unicode/utf8"
)

// turns transcript segments into display-sized cues
type Generator struct {
	MaxCharsPerLine int
	MaxLinesPerSub  int
	MaxDuration     time.Duration
}

func NewGenerator() *Generator {
	return &Generator{
		MaxCharsPerLine: 42, // Standard subtitle line length
		MaxLinesPerSub:  2,  // Most players support 2 lines
		MaxDuration:     7 * time.Second,
	}
}

// converts transcript segments to a subtitle track; when the backend gave
// no timings the whole text becomes one cue spanning duration. cues never
// run past duration, so the sidecar matches the dubbed video's length
func (g *Generator) Generate(text string, segments []Segment, duration time.Duration) *Subtitle {
	if len(segments) == 0 && strings.TrimSpace(text) != "" && duration > 0 {
		segments = []Segment{{StartTime: 0, EndTime: duration, Text: text}}
	}

	entries := []Entry{}
	for _, seg := range segments {
		if duration > 0 && seg.EndTime > duration {
			seg.EndTime = duration
		}
		if seg.EndTime <= seg.StartTime {
			continue
		}
		for _, cue := range g.cues(seg) {
			cue.Index = len(entries) + 1
			entries = append(entries, cue)
		}
	}

	return &Subtitle{Entries: entries}
}

// cuts one segment into cues that fit the display limits. words are shared
// out by character count and each cue gets the same share of the segment's
// time, so the cues tile [StartTime, EndTime] without gaps
func (g *Generator) cues(seg Segment) []Entry {
	words := strings.Fields(seg.Text)
	if len(words) == 0 {
		return nil
	}

	span := seg.EndTime - seg.StartTime
	limit := g.MaxCharsPerLine * g.MaxLinesPerSub
	n := ceilDiv(runeLen(words), limit)
	if g.MaxDuration > 0 {
		n = max(n, ceilDiv(int(span), int(g.MaxDuration)))
	}
	n = min(max(n, 1), len(words))

	var chunks [][]string
	for ; n <= len(words); n++ {
		chunks = shareWords(words, n)
		if g.MaxDuration <= 0 || longestShare(chunks, span) <= g.MaxDuration {
			break
		}
	}

	total := runeLen(words)
	entries := make([]Entry, 0, len(chunks))
	start, done := seg.StartTime, 0
	for i, chunk := range chunks {
		done += runeLen(chunk)
		end := seg.StartTime + scale(span, done, total)
		if i == len(chunks)-1 {
			end = seg.EndTime
		}
		entries = append(entries, Entry{
			StartTime: start,
			EndTime:   end,
			Text:      g.formatText(strings.Join(chunk, " ")),
		})
		start = end
	}
	return entries
}

// splits words into n runs of roughly equal character count; every run
// gets at least one word
func shareWords(words []string, n int) [][]string {
	total := runeLen(words)
	out := make([][]string, 0, n)
	from, acc := 0, 0
	for i, w := range words {
		acc += utf8.RuneCountInString(w)
		left := n - len(out) - 1
		if left == 0 {
			break
		}
		if acc*n >= total*(len(out)+1) || len(words)-i-1 == left {
			out = append(out, words[from:i+1])
			from = i + 1
		}
	}
	return append(out, words[from:])
}

// longest time any run receives when span is shared by character count
func longestShare(chunks [][]string, span time.Duration) time.Duration {
	var total int
	for _, c := range chunks {
		total += runeLen(c)
	}
	var longest time.Duration
	for _, c := range chunks {
		longest = max(longest, scale(span, runeLen(c), total))
	}
	return longest
}

func scale(span time.Duration, part, total int) time.Duration {
	return time.Duration(int64(span) * int64(part) / int64(total))
}

func runeLen(words []string) int {
	n := 0
	for _, w := range words {
		n += utf8.RuneCountInString(w)
	}
	return n
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

// wraps text onto two lines at the space nearest its middle
func (g *Generator) formatText(text string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= g.MaxCharsPerLine {
		return string(runes)
	}

	mid, cut := len(runes)/2, -1
	for i, r := range runes {
		if r == ' ' && (cut < 0 || abs(i-mid) < abs(cut-mid)) {
			cut = i
		}
	}
	if cut < 0 {
		return string(runes)
	}
	return string(runes[:cut]) + "\n" + string(runes[cut+1:])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
