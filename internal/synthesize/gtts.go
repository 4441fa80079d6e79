package synthesize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mgpai22/revoice/internal/translate"
)

const (
	gttsBaseURL = "https://translate.google.com/translate_tts"
	// the endpoint rejects longer inputs
	gttsMaxChars = 100
)

// voices text through the Google Translate TTS endpoint; needs no key
type GTTSSynthesizer struct {
	baseURL string
	client  *http.Client
}

func NewGTTSSynthesizer(opts Options) *GTTSSynthesizer {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = gttsBaseURL
	}
	return &GTTSSynthesizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *GTTSSynthesizer) Format() string {
	return "mp3"
}

// requests each chunk in order and concatenates the mp3 frames
func (s *GTTSSynthesizer) Synthesize(
	ctx context.Context,
	text, lang, outputPath string,
) (*Speech, error) {
	l, err := checkLanguage(lang)
	if err != nil {
		return nil, err
	}

	chunks := splitText(text, gttsMaxChars)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	err = writeFileAtomic(outputPath, func(f *os.File) error {
		for i, chunk := range chunks {
			if err := s.fetch(ctx, f, chunk, l.Code, i, len(chunks)); err != nil {
				return fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
			}
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

func (s *GTTSSynthesizer) fetch(ctx context.Context, w io.Writer, chunk, lang string, idx, total int) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read tts audio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tts returned no audio")
	}
	return nil
}

// packs whole sentences into chunks of at most max runes; a sentence that
// does not fit alone is split between words, and a word longer than max is
// cut
func splitText(text string, max int) []string {
	var (
		chunks []string
		cur    string
	)
	for _, sentence := range translate.SplitSentences(text) {
		for _, piece := range splitWords(sentence, max) {
			if cur != "" && runeLen(cur)+1+runeLen(piece) <= max {
				cur += " " + piece
				continue
			}
			if cur != "" {
				chunks = append(chunks, cur)
			}
			cur = piece
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

func splitWords(sentence string, max int) []string {
	var (
		pieces []string
		cur    string
	)
	for _, word := range strings.Fields(sentence) {
		for runeLen(word) > max {
			if cur != "" {
				pieces = append(pieces, cur)
				cur = ""
			}
			r := []rune(word)
			pieces = append(pieces, string(r[:max]))
			word = string(r[max:])
		}
		if cur != "" && runeLen(cur)+1+runeLen(word) > max {
			pieces = append(pieces, cur)
			cur = ""
		}
		if cur == "" {
			cur = word
		} else {
			cur += " " + word
		}
	}
	if cur != "" {
		pieces = append(pieces, cur)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
