package synthesize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"empty", "", 100, nil},
		{"short", "Hello world.", 100, []string{"Hello world."}},
		{
			"sentences packed",
			"One. Two. Three.",
			10,
			[]string{"One. Two.", "Three."},
		},
		{
			"long sentence split on words",
			"alpha beta gamma delta",
			11,
			[]string{"alpha beta", "gamma delta"},
		},
		{
			"word longer than max is cut",
			"abcdefghij",
			4,
			[]string{"abcd", "efgh", "ij"},
		},
		{
			"whitespace collapsed",
			"  a \n\t b  ",
			100,
			[]string{"a b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitText(tt.text, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("splitText() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	text := strings.Repeat("नमस्ते दुनिया। ", 40) + strings.Repeat("x", 250)
	for _, chunk := range splitText(text, gttsMaxChars) {
		if n := utf8.RuneCountInString(chunk); n > gttsMaxChars || n == 0 {
			t.Fatalf("chunk has %d runes: %q", n, chunk)
		}
	}
}

type ttsServer struct {
	mu      sync.Mutex
	queries []map[string]string
	status  int
}

func (s *ttsServer) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	s.queries = append(s.queries, map[string]string{
		"tl": q.Get("tl"), "q": q.Get("q"), "idx": q.Get("idx"), "total": q.Get("total"),
	})
	s.mu.Unlock()

	if s.status != 0 {
		http.Error(w, "rate limited", s.status)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
}

func TestGTTSSynthesize(t *testing.T) {
	srv := &ttsServer{}
	server := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer server.Close()

	s := NewGTTSSynthesizer(Options{BaseURL: server.URL})
	out := filepath.Join(t.TempDir(), "speech.mp3")

	text := strings.Repeat("This sentence is about forty characters. ", 5)
	speech, err := s.Synthesize(context.Background(), text, "es-MX", out)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if speech.Language != "es" || speech.Format != "mp3" || speech.Path != out {
		t.Errorf("unexpected speech %+v", speech)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	n := len(srv.queries)
	if n < 2 {
		t.Fatalf("expected several chunk requests, got %d", n)
	}
	var want strings.Builder
	for i := 0; i < n; i++ {
		want.WriteString("[" + srv.queries[i]["idx"] + "]")
		if srv.queries[i]["tl"] != "es" {
			t.Errorf("request %d tl = %q, want es", i, srv.queries[i]["tl"])
		}
	}
	if string(data) != want.String() {
		t.Errorf("output = %q, want chunks concatenated in order %q", data, want.String())
	}
}

func TestGTTSSynthesizeHTTPError(t *testing.T) {
	srv := &ttsServer{status: http.StatusTooManyRequests}
	server := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer server.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "speech.mp3")
	_, err := NewGTTSSynthesizer(Options{BaseURL: server.URL}).Synthesize(context.Background(), "Hola.", "es", out)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("Synthesize() error = %v, want 429", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed synthesis left files behind: %v", entries)
	}
}

func TestGTTSUnsupportedLanguage(t *testing.T) {
	srv := &ttsServer{}
	server := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer server.Close()

	_, err := NewGTTSSynthesizer(Options{BaseURL: server.URL}).
		Synthesize(context.Background(), "Hallo.", "de", filepath.Join(t.TempDir(), "x.mp3"))
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("Synthesize() error = %v, want ErrUnsupportedLanguage", err)
	}
	if len(srv.queries) != 0 {
		t.Errorf("no requests expected, got %d", len(srv.queries))
	}
}

func TestGTTSEmptyText(t *testing.T) {
	_, err := NewGTTSSynthesizer(Options{BaseURL: "http://127.0.0.1:0"}).
		Synthesize(context.Background(), "   ", "en", filepath.Join(t.TempDir(), "x.mp3"))
	if err == nil {
		t.Error("expected error for empty text")
	}
}
