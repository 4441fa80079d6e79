package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/synthesize"
	"github.com/mgpai22/revoice/internal/transcribe"
	"github.com/mgpai22/revoice/internal/video"
)

const fakeRate = 8000

// the ffmpeg-backed processor is what the CLI wires into both stages
var (
	_ Extractor = (*video.DefaultProcessor)(nil)
	_ Remuxer   = (*video.DefaultProcessor)(nil)
)

// records stage invocations across fakes
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.list() {
		if c == name {
			n++
		}
	}
	return n
}

func writeSilence(path string, d time.Duration) error {
	frames := int(d.Seconds() * fakeRate)
	data := make([]int, frames)
	for i := range data {
		data[i] = (i % 50) - 25
	}
	return audio.WriteWAV(path, &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: fakeRate},
		Data:           data,
		SourceBitDepth: 16,
	}, 16)
}

type fakeExtractor struct {
	log      *callLog
	mu       sync.Mutex
	duration time.Duration
	err      error
	gotPath  string
	gotData  []byte
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, videoPath, outputPath string, opts video.ExtractAudioOptions) error {
	f.log.add("extract")
	data, _ := os.ReadFile(videoPath)
	f.mu.Lock()
	f.gotPath, f.gotData = videoPath, data
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if opts.Format != "wav" {
		return fmt.Errorf("unexpected format %q", opts.Format)
	}
	return writeSilence(outputPath, f.duration)
}

type fakeTranscriber struct {
	log   *callLog
	text  string
	err   error
	block bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, lang string) (*transcribe.Transcript, error) {
	f.log.add("transcribe")
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, err
	}
	return &transcribe.Transcript{Text: f.text, Language: lang}, nil
}

type fakeSynthesizer struct {
	log      *callLog
	mu       sync.Mutex
	duration time.Duration
	err      error
	helper   bool // leave an extra file in the run directory
	gotText  string
	gotLang  string
}

func (f *fakeSynthesizer) Format() string { return "wav" }

func (f *fakeSynthesizer) Synthesize(_ context.Context, text, lang, outputPath string) (*synthesize.Speech, error) {
	f.log.add("synthesize")
	f.mu.Lock()
	f.gotText, f.gotLang = text, lang
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.helper {
		if err := os.WriteFile(outputPath+".part0", []byte("x"), 0o644); err != nil {
			return nil, err
		}
	}
	if err := writeSilence(outputPath, f.duration); err != nil {
		return nil, err
	}
	return &synthesize.Speech{Path: outputPath, Language: lang, Text: text, Format: "wav"}, nil
}

// wraps the real aligner so call order is recorded
type loggingAligner struct {
	log   *callLog
	inner *audio.Aligner
	err   error
}

func (a *loggingAligner) Align(ctx context.Context, ref, cand, out string) (*audio.Alignment, error) {
	a.log.add("align")
	if a.err != nil {
		return nil, a.err
	}
	return a.inner.Align(ctx, ref, cand, out)
}

// "muxes" by copying the aligned track, so the output duration can be
// checked with the WAV reader
type fakeRemuxer struct {
	log *callLog
	err error
}

func (f *fakeRemuxer) Remux(_ context.Context, videoPath, audioPath, outputPath string, opts video.RemuxOptions) error {
	f.log.add("remux")
	if f.err != nil {
		return f.err
	}
	if opts.VideoCodec != "libx264" || opts.AudioCodec != "aac" {
		return fmt.Errorf("unexpected codecs %s/%s", opts.VideoCodec, opts.AudioCodec)
	}
	in, err := os.Open(audioPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type harness struct {
	log         *callLog
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	synth       *fakeSynthesizer
	aligner     *loggingAligner
	remuxer     *fakeRemuxer
	workDir     string
	source      string
	output      string
}

func newHarness(t *testing.T, ref, speech time.Duration) *harness {
	t.Helper()
	log := &callLog{}
	dir := t.TempDir()

	source := dir + "/input.mp4"
	if err := os.WriteFile(source, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	workDir := dir + "/work"
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatal(err)
	}

	return &harness{
		log:         log,
		extractor:   &fakeExtractor{log: log, duration: ref},
		transcriber: &fakeTranscriber{log: log, text: "  Hello there, friends.  "},
		synth:       &fakeSynthesizer{log: log, duration: speech},
		aligner:     &loggingAligner{log: log, inner: audio.NewAligner(audio.AlignOptions{})},
		remuxer:     &fakeRemuxer{log: log},
		workDir:     workDir,
		source:      source,
		output:      dir + "/out/dubbed.mp4",
	}
}

func (h *harness) runner(t *testing.T, timeouts Timeouts) *Runner {
	t.Helper()
	r, err := NewRunner(Stages{
		Extractor:   h.extractor,
		Transcriber: h.transcriber,
		Synthesizer: h.synth,
		Aligner:     h.aligner,
		Remuxer:     h.remuxer,
	}, Options{WorkDir: h.workDir, Timeouts: timeouts})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func (h *harness) request() Request {
	return Request{SourcePath: h.source, Language: "en", OutputPath: h.output}
}

// the work dir must be empty after every run
func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("artifacts left behind: %v", names)
	}
}

var errBoom = errors.New("boom")
