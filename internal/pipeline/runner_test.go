package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/transcribe"
)

func TestRunAlignsToSourceDuration(t *testing.T) {
	tests := []struct {
		name          string
		speech        time.Duration
		wantPadded    bool
		wantTruncated bool
	}{
		{"shorter speech is padded", 7 * time.Second, true, false},
		{"longer speech is truncated", 12 * time.Second, false, true},
		{"equal length is untouched", 10 * time.Second, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10*time.Second, tt.speech)
			res, err := h.runner(t, Timeouts{}).Run(context.Background(), h.request())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if res.State != StateDone {
				t.Fatalf("State = %s, want done", res.State)
			}
			if res.Transcript.Text != "Hello there, friends." {
				t.Errorf("transcript not trimmed: %q", res.Transcript.Text)
			}
			if res.Spoken != "Hello there, friends." || res.SpokenLanguage != "en" {
				t.Errorf("Spoken = %q (%s)", res.Spoken, res.SpokenLanguage)
			}
			if h.synth.gotLang != "en" {
				t.Errorf("synthesized in %q, want en", h.synth.gotLang)
			}

			a := res.Alignment
			if a == nil {
				t.Fatal("missing alignment report")
			}
			if a.Result != 10*time.Second || a.Reference != 10*time.Second {
				t.Errorf("alignment = %+v, want 10s result", a)
			}
			if a.Padded() != tt.wantPadded || a.Truncated() != tt.wantTruncated {
				t.Errorf("padded=%v truncated=%v, want %v/%v", a.Padded(), a.Truncated(), tt.wantPadded, tt.wantTruncated)
			}

			info, err := audio.ReadWAVInfo(h.output)
			if err != nil {
				t.Fatalf("published output unreadable: %v", err)
			}
			if info.Duration() != 10*time.Second {
				t.Errorf("output duration = %v, want exactly 10s", info.Duration())
			}
			if res.OutputPath != h.output {
				t.Errorf("OutputPath = %q, want %q", res.OutputPath, h.output)
			}

			want := []string{"extract", "transcribe", "synthesize", "align", "remux"}
			if got := h.log.list(); !slices.Equal(got, want) {
				t.Errorf("calls = %v, want %v", got, want)
			}
			if len(res.Warnings) != 0 {
				t.Errorf("unexpected cleanup warnings %v", res.Warnings)
			}
			h.assertClean(t)
		})
	}
}

func TestRunFailsFast(t *testing.T) {
	order := []string{"extract", "transcribe", "synthesize", "align", "remux"}
	tests := []struct {
		failAt string
		stage  State
		kind   Kind
	}{
		{"extract", StateExtracting, KindMediaDecode},
		{"transcribe", StateTranscribing, KindTranscription},
		{"synthesize", StateSynthesizing, KindSynthesis},
		{"align", StateAligning, KindAudioAlign},
		{"remux", StateRemuxing, KindRemux},
	}

	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			h := newHarness(t, 2*time.Second, time.Second)
			switch tt.failAt {
			case "extract":
				h.extractor.err = errBoom
			case "transcribe":
				h.transcriber.err = errBoom
			case "synthesize":
				h.synth.err = errBoom
			case "align":
				h.aligner.err = errBoom
			case "remux":
				h.remuxer.err = errBoom
			}

			res, err := h.runner(t, Timeouts{}).Run(context.Background(), h.request())

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Run() error = %v, want *StageError", err)
			}
			if !errors.Is(err, errBoom) {
				t.Errorf("cause not wrapped: %v", err)
			}
			if stageErr.Stage != tt.stage || stageErr.Kind != tt.kind || stageErr.Timeout {
				t.Errorf("StageError = %+v, want %s/%s", stageErr, tt.stage, tt.kind)
			}
			if res == nil || res.State != StateFailed || res.FailedStage != tt.stage || res.FailedKind != tt.kind {
				t.Fatalf("Result = %+v", res)
			}

			failIdx := slices.Index(order, tt.failAt)
			for i, name := range order {
				want := 0
				if i <= failIdx {
					want = 1
				}
				if got := h.log.count(name); got != want {
					t.Errorf("%s called %d times, want %d", name, got, want)
				}
			}

			if _, err := os.Stat(h.output); !os.IsNotExist(err) {
				t.Error("output must not be published on failure")
			}
			h.assertClean(t)
		})
	}
}

func TestRunEmptySpeechShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"sentinel", "", transcribe.ErrEmptyTranscript},
		{"whitespace text", " \n\t ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2*time.Second, time.Second)
			h.transcriber.text = tt.text
			h.transcriber.err = tt.err

			res, err := h.runner(t, Timeouts{}).Run(context.Background(), h.request())
			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Kind != KindEmptyTranscript {
				t.Fatalf("Run() error = %v, want EmptyTranscriptError", err)
			}
			if res.FailedKind != KindEmptyTranscript || res.FailedStage != StateTranscribing {
				t.Errorf("Result = %+v", res)
			}
			if n := h.log.count("synthesize"); n != 0 {
				t.Errorf("synthesizer called %d times after empty transcript", n)
			}
			h.assertClean(t)
		})
	}
}

func TestRunStageTimeout(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	h.transcriber.block = true

	res, err := h.runner(t, Timeouts{Transcribe: 20 * time.Millisecond}).Run(context.Background(), h.request())

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Run() error = %v, want *StageError", err)
	}
	if !stageErr.Timeout || stageErr.Kind != KindTranscription || stageErr.Stage != StateTranscribing {
		t.Errorf("StageError = %+v, want transcription timeout", stageErr)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause should be DeadlineExceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("message should mention the timeout: %v", err)
	}
	if res.State != StateFailed {
		t.Errorf("State = %s", res.State)
	}
	h.assertClean(t)
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner(t, Timeouts{Extract: time.Minute}).Run(ctx, h.request())
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Run() error = %v, want *StageError", err)
	}
	if stageErr.Stage != StateExtracting || stageErr.Timeout {
		t.Errorf("StageError = %+v, want non-timeout extraction failure", stageErr)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cause should be Canceled, got %v", err)
	}
	if n := h.log.count("extract"); n != 0 {
		t.Errorf("extractor called %d times with a cancelled context", n)
	}
	h.assertClean(t)
}

func TestRunMaterializesSourceStream(t *testing.T) {
	h := newHarness(t, 3*time.Second, 2*time.Second)
	payload := []byte("uploaded video bytes")

	req := Request{
		Source:     bytes.NewReader(payload),
		SourceName: "holiday.MOV",
		Language:   "fr",
		OutputPath: h.output,
	}
	res, err := h.runner(t, Timeouts{}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if filepath.Base(h.extractor.gotPath) != "source.mov" {
		t.Errorf("extractor got %q, want run-scoped source.mov", h.extractor.gotPath)
	}
	if !strings.Contains(h.extractor.gotPath, runDirPrefix+res.RunID) {
		t.Errorf("source not inside run directory: %q", h.extractor.gotPath)
	}
	if !bytes.Equal(h.extractor.gotData, payload) {
		t.Errorf("materialized source = %q", h.extractor.gotData)
	}
	if res.Transcript.Language != "fr" {
		t.Errorf("transcribed in %q, want fr", res.Transcript.Language)
	}
	h.assertClean(t)
}

func TestRunRemovesStageHelperFiles(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	h.synth.helper = true

	if _, err := h.runner(t, Timeouts{}).Run(context.Background(), h.request()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	h.assertClean(t)
}

// fails to delete the aligned track once, leaving every other removal alone
func failAlignedRemoval(path string) error {
	if filepath.Base(path) == alignedName {
		return errors.New("device or resource busy")
	}
	return os.Remove(path)
}

func TestRunCleanupFailureIsOnlyAWarning(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	r := h.runner(t, Timeouts{})
	r.remove = failAlignedRemoval

	res, err := r.Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Run() error = %v, want success despite cleanup failure", err)
	}
	if res.State != StateDone {
		t.Errorf("State = %s, want done", res.State)
	}
	if len(res.Warnings) != 1 || filepath.Base(res.Warnings[0].Path) != alignedName {
		t.Fatalf("Warnings = %v, want one for %s", res.Warnings, alignedName)
	}
	if !strings.Contains(res.Warnings[0].Error(), string(KindCleanupWarning)) {
		t.Errorf("warning message = %q", res.Warnings[0].Error())
	}
	if _, err := os.Stat(h.output); err != nil {
		t.Errorf("output not published: %v", err)
	}
	h.assertClean(t)
}

func TestRunCleanupFailureKeepsStageError(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	h.remuxer.err = errBoom
	r := h.runner(t, Timeouts{})
	r.remove = failAlignedRemoval

	res, err := r.Run(context.Background(), h.request())

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Run() error = %v, want *StageError", err)
	}
	if stageErr.Kind != KindRemux || !errors.Is(err, errBoom) {
		t.Errorf("StageError = %+v, want remux failure wrapping the cause", stageErr)
	}
	if res.FailedKind != KindRemux || res.State != StateFailed {
		t.Errorf("Result = %+v", res)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", res.Warnings)
	}
	h.assertClean(t)
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t, time.Second, time.Second)
	tests := []struct {
		name string
		req  Request
	}{
		{"no source", Request{Language: "en", OutputPath: h.output}},
		{"both sources", Request{SourcePath: h.source, Source: strings.NewReader("x"), Language: "en", OutputPath: h.output}},
		{"missing file", Request{SourcePath: h.source + ".missing", Language: "en", OutputPath: h.output}},
		{"directory source", Request{SourcePath: h.workDir, Language: "en", OutputPath: h.output}},
		{"unsupported language", Request{SourcePath: h.source, Language: "de", OutputPath: h.output}},
		{"empty language", Request{SourcePath: h.source, OutputPath: h.output}},
		{"no output", Request{SourcePath: h.source, Language: "en"}},
		{"output overwrites source", Request{SourcePath: h.source, Language: "en", OutputPath: h.source}},
	}

	r := h.runner(t, Timeouts{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("Run() error = %v, want ErrInvalidRequest", err)
			}
			if res != nil {
				t.Errorf("no result expected for invalid request, got %+v", res)
			}
		})
	}

	if calls := h.log.list(); len(calls) != 0 {
		t.Errorf("stages invoked for invalid requests: %v", calls)
	}
	h.assertClean(t)
}

func TestRunObserverSeesEveryTransition(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	var events []Event
	req := h.request()
	req.Observer = func(e Event) { events = append(events, e) }

	res, err := h.runner(t, Timeouts{}).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	want := []State{StateExtracting, StateTranscribing, StateSynthesizing, StateAligning, StateRemuxing, StateDone}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	prev := StateIdle
	for i, e := range events {
		if e.From != prev || e.To != want[i] || e.RunID != res.RunID {
			t.Errorf("event %d = %s -> %s, want %s -> %s", i, e.From, e.To, prev, want[i])
		}
		prev = e.To
	}
}

func TestRunObserverSeesFailure(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	h.synth.err = errBoom
	var last Event
	req := h.request()
	req.Observer = func(e Event) { last = e }

	_, _ = h.runner(t, Timeouts{}).Run(context.Background(), req)

	if last.To != StateFailed || last.From != StateSynthesizing {
		t.Fatalf("last event = %s -> %s", last.From, last.To)
	}
	if last.Err == nil || last.Err.Kind != KindSynthesis {
		t.Errorf("failure event carries %+v", last.Err)
	}
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	h := newHarness(t, 2*time.Second, time.Second)
	r := h.runner(t, Timeouts{})

	const n = 4
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := h.request()
			req.OutputPath = filepath.Join(filepath.Dir(h.output), "dub", string(rune('a'+i))+".mp4")
			res, err := r.Run(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[res.RunID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent run failed: %v", err)
	}
	if len(ids) != n {
		t.Errorf("got %d distinct run ids, want %d", len(ids), n)
	}
	h.assertClean(t)
}

func TestNewRunnerRequiresStages(t *testing.T) {
	if _, err := NewRunner(Stages{}, Options{}); err == nil {
		t.Error("expected error for missing stages")
	}
}

func TestPublishReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "nested", "dst.mp4")
	if err := os.WriteFile(src, []byte("new"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := publish(src, dst); err != nil {
		t.Fatalf("publish() error = %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "new" {
		t.Errorf("dst = %q, want new", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Errorf("temporary files left next to output: %d entries", len(entries))
	}
}
