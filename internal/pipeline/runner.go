package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/revoice/internal/audio"
	"github.com/mgpai22/revoice/internal/language"
	"github.com/mgpai22/revoice/internal/logging"
	"github.com/mgpai22/revoice/internal/synthesize"
	"github.com/mgpai22/revoice/internal/transcribe"
	"github.com/mgpai22/revoice/internal/video"
)

// artifact names inside a run directory
const (
	sourceName  = "source"
	audioName   = "audio.wav"
	speechName  = "speech"
	alignedName = "aligned.wav"
	outputName  = "output.mp4"
)

type Extractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputPath string, opts video.ExtractAudioOptions) error
}

type Aligner interface {
	Align(ctx context.Context, referencePath, candidatePath, outputPath string) (*audio.Alignment, error)
}

type Remuxer interface {
	Remux(ctx context.Context, videoPath, audioPath, outputPath string, opts video.RemuxOptions) error
}

// the five collaborators a run drives, in call order
type Stages struct {
	Extractor   Extractor
	Transcriber transcribe.Transcriber
	Synthesizer synthesize.Synthesizer
	Aligner     Aligner
	Remuxer     Remuxer
}

func (s Stages) validate() error {
	switch {
	case s.Extractor == nil:
		return errors.New("extractor is required")
	case s.Transcriber == nil:
		return errors.New("transcriber is required")
	case s.Synthesizer == nil:
		return errors.New("synthesizer is required")
	case s.Aligner == nil:
		return errors.New("aligner is required")
	case s.Remuxer == nil:
		return errors.New("remuxer is required")
	}
	return nil
}

// per-stage limits; zero means unlimited
type Timeouts struct {
	Extract    time.Duration
	Transcribe time.Duration
	Synthesize time.Duration
	Align      time.Duration
	Remux      time.Duration
}

func (t Timeouts) For(stage State) time.Duration {
	switch stage {
	case StateExtracting:
		return t.Extract
	case StateTranscribing:
		return t.Transcribe
	case StateSynthesizing:
		return t.Synthesize
	case StateAligning:
		return t.Align
	case StateRemuxing:
		return t.Remux
	default:
		return 0
	}
}

type Options struct {
	WorkDir  string // parent of run directories, os.TempDir() when empty
	Timeouts Timeouts
	Extract  video.ExtractAudioOptions
	Remux    video.RemuxOptions
	Logger   *logging.Logger
}

// state transition notification
type Event struct {
	RunID string
	From  State
	To    State
	Err   *StageError // set when To is StateFailed
	At    time.Time
}

type Observer func(Event)

// one dubbing job; exactly one of SourcePath and Source is set
type Request struct {
	SourcePath string
	Source     io.Reader
	SourceName string // original file name of Source, used for its extension
	Language   string
	OutputPath string
	Observer   Observer
}

type Result struct {
	RunID          string
	State          State
	Transcript     *transcribe.Transcript
	Spoken         string // text actually voiced
	SpokenLanguage string
	OutputPath     string
	Alignment      *audio.Alignment
	FailedStage    State
	FailedKind     Kind
	Warnings       []CleanupWarning
	Elapsed        time.Duration
}

// executes dubbing runs; safe for concurrent use since each run owns its
// directory and the Runner holds no per-run state
type Runner struct {
	stages   Stages
	workDir  string
	timeouts Timeouts
	extract  video.ExtractAudioOptions
	remux    video.RemuxOptions
	logger   *logging.Logger

	// deletes one artifact; nil means os.Remove
	remove func(string) error
}

func NewRunner(stages Stages, opts Options) (*Runner, error) {
	if err := stages.validate(); err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	extract := opts.Extract
	if extract.SampleRate == 0 {
		extract = video.DefaultExtractAudioOptions()
	}
	// the aligner measures the reference as PCM WAV
	extract.Format = "wav"

	remux := opts.Remux
	if remux.VideoCodec == "" {
		remux = video.DefaultRemuxOptions()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Runner{
		stages:   stages,
		workDir:  workDir,
		timeouts: opts.Timeouts,
		extract:  extract,
		remux:    remux,
		logger:   logger,
	}, nil
}

// in-flight state of one Run call
type run struct {
	*Runner
	req       Request
	lang      language.Language
	files     *artifacts
	result    *Result
	state     State
	observer  Observer
	sourceExt string
}

// Run executes the pipeline once. Invalid requests fail with
// ErrInvalidRequest before anything is created. Otherwise a Result is
// always returned; on failure it is accompanied by a *StageError.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	lang, ext, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	files, err := newArtifacts(r.workDir)
	if err != nil {
		return nil, err
	}
	if r.remove != nil {
		files.remove = r.remove
	}

	rn := &run{
		Runner:    r,
		req:       req,
		lang:      lang,
		files:     files,
		result:    &Result{RunID: files.runID, State: StateIdle},
		state:     StateIdle,
		observer:  req.Observer,
		sourceExt: ext,
	}

	started := time.Now()
	log := r.logger.With("run", files.runID)
	log.Infow("Starting dub", "language", lang.Code, "output", req.OutputPath)

	// cleanup also runs if a stage panics
	runErr := func() error {
		defer func() { rn.result.Warnings = files.cleanup() }()
		return rn.execute(ctx)
	}()

	for _, w := range rn.result.Warnings {
		log.Warnw("Cleanup failed", "path", w.Path, "error", w.Err)
	}
	rn.result.Elapsed = time.Since(started)

	if runErr != nil {
		var stageErr *StageError
		if errors.As(runErr, &stageErr) {
			log.Errorw("Dub failed", "stage", stageErr.Stage, "kind", stageErr.Kind, "error", stageErr.Err)
			return rn.result, stageErr
		}
		return rn.result, runErr
	}

	log.Infow("Dub complete", "output", rn.result.OutputPath, "elapsed", rn.result.Elapsed.Round(time.Millisecond))
	return rn.result, nil
}

func validateRequest(req Request) (language.Language, string, error) {
	hasPath := strings.TrimSpace(req.SourcePath) != ""
	switch {
	case hasPath && req.Source != nil:
		return language.Language{}, "", invalid("set either a source path or a source stream, not both")
	case !hasPath && req.Source == nil:
		return language.Language{}, "", invalid("no source video")
	}

	ext := ""
	if hasPath {
		info, err := os.Stat(req.SourcePath)
		if err != nil {
			return language.Language{}, "", invalid("source video: %v", err)
		}
		if info.IsDir() {
			return language.Language{}, "", invalid("source video %s is a directory", req.SourcePath)
		}
	} else {
		ext = strings.ToLower(filepath.Ext(req.SourceName))
		if ext == "" {
			ext = ".mp4"
		}
	}

	lang, err := language.Lookup(req.Language)
	if err != nil {
		return language.Language{}, "", invalid("%v", err)
	}

	if strings.TrimSpace(req.OutputPath) == "" {
		return language.Language{}, "", invalid("no output path")
	}
	if hasPath {
		src, _ := filepath.Abs(req.SourcePath)
		out, _ := filepath.Abs(req.OutputPath)
		if src == out {
			return language.Language{}, "", invalid("output path would overwrite the source video")
		}
	}

	return lang, ext, nil
}

func (rn *run) execute(ctx context.Context) error {
	var (
		sourcePath string
		transcript *transcribe.Transcript
		speech     *synthesize.Speech
		alignedWAV string
		audioWAV   = rn.files.path(audioName)
	)

	err := rn.stage(ctx, StateExtracting, func(ctx context.Context) error {
		sourcePath = rn.req.SourcePath
		if rn.req.Source != nil {
			p, err := rn.files.materialize(sourceName+rn.sourceExt, rn.req.Source)
			if err != nil {
				return fmt.Errorf("store source video: %w", err)
			}
			sourcePath = p
		}
		return rn.stages.Extractor.ExtractAudio(ctx, sourcePath, audioWAV, rn.extract)
	})
	if err != nil {
		return err
	}

	err = rn.stage(ctx, StateTranscribing, func(ctx context.Context) error {
		t, err := rn.stages.Transcriber.Transcribe(ctx, audioWAV, rn.lang.Code)
		if err != nil {
			return err
		}
		if t == nil || strings.TrimSpace(t.Text) == "" {
			return transcribe.ErrEmptyTranscript
		}
		t.Text = strings.TrimSpace(t.Text)
		transcript = t
		rn.result.Transcript = t
		return nil
	})
	if err != nil {
		return err
	}

	err = rn.stage(ctx, StateSynthesizing, func(ctx context.Context) error {
		out := rn.files.path(speechName + "." + rn.stages.Synthesizer.Format())
		s, err := rn.stages.Synthesizer.Synthesize(ctx, transcript.Text, rn.lang.Code, out)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("synthesizer returned no audio")
		}
		speech = s
		rn.result.Spoken = s.Text
		rn.result.SpokenLanguage = s.Language
		return nil
	})
	if err != nil {
		return err
	}

	err = rn.stage(ctx, StateAligning, func(ctx context.Context) error {
		alignedWAV = rn.files.path(alignedName)
		a, err := rn.stages.Aligner.Align(ctx, audioWAV, speech.Path, alignedWAV)
		if err != nil {
			return err
		}
		rn.result.Alignment = a
		return nil
	})
	if err != nil {
		return err
	}

	err = rn.stage(ctx, StateRemuxing, func(ctx context.Context) error {
		muxed := rn.files.path(outputName)
		if err := rn.stages.Remuxer.Remux(ctx, sourcePath, alignedWAV, muxed, rn.remux); err != nil {
			return err
		}
		if err := publish(muxed, rn.req.OutputPath); err != nil {
			return fmt.Errorf("publish output: %w", err)
		}
		rn.result.OutputPath = rn.req.OutputPath
		return nil
	})
	if err != nil {
		return err
	}

	return rn.advance(StateDone, nil)
}

// runs fn as the given stage, with the stage's deadline, classifying any
// failure
func (rn *run) stage(ctx context.Context, stage State, fn func(context.Context) error) error {
	if err := rn.advance(stage, nil); err != nil {
		return err
	}

	stageCtx := ctx
	if limit := rn.timeouts.For(stage); limit > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	started := time.Now()
	err := ctx.Err()
	if err == nil {
		err = fn(stageCtx)
	}
	if err == nil {
		rn.logger.Debugw("Stage finished", "run", rn.files.runID, "stage", stage, "elapsed", time.Since(started).Round(time.Millisecond))
		return nil
	}

	stageErr := &StageError{
		Stage: stage,
		Kind:  kindFor(stage),
		Err:   err,
	}
	if stage == StateTranscribing && errors.Is(err, transcribe.ErrEmptyTranscript) {
		stageErr.Kind = KindEmptyTranscript
	}
	if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		stageErr.Timeout = true
	}

	rn.result.FailedStage = stage
	rn.result.FailedKind = stageErr.Kind
	if advErr := rn.advance(StateFailed, stageErr); advErr != nil {
		return advErr
	}
	return stageErr
}

// moves the state machine; only the happy-path successor or Failed from a
// working state are legal
func (rn *run) advance(to State, stageErr *StageError) error {
	from := rn.state
	next, ok := from.Next()
	legal := ok && to == next
	if to == StateFailed {
		legal = !from.Terminal() && from != StateIdle
	}
	if !legal {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	rn.state = to
	rn.result.State = to
	if rn.observer != nil {
		rn.observer(Event{
			RunID: rn.files.runID,
			From:  from,
			To:    to,
			Err:   stageErr,
			At:    time.Now(),
		})
	}
	return nil
}

// copies src next to dst under a temporary name, then renames it into
// place so readers never see a partial file
func publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
