package pipeline

import (
	"errors"
	"fmt"
)

// rejected before any stage runs or any file is created
var ErrInvalidRequest = errors.New("invalid request")

// failure classification surfaced to callers
type Kind string

const (
	KindMediaDecode     Kind = "MediaDecodeError"
	KindTranscription   Kind = "TranscriptionError"
	KindEmptyTranscript Kind = "EmptyTranscriptError"
	KindSynthesis       Kind = "SynthesisError"
	KindAudioAlign      Kind = "AudioAlignError"
	KindRemux           Kind = "RemuxError"
	KindCleanupWarning  Kind = "CleanupWarning"
)

// failure kind reported when the stage itself fails
func kindFor(stage State) Kind {
	switch stage {
	case StateExtracting:
		return KindMediaDecode
	case StateTranscribing:
		return KindTranscription
	case StateSynthesizing:
		return KindSynthesis
	case StateAligning:
		return KindAudioAlign
	case StateRemuxing:
		return KindRemux
	default:
		return ""
	}
}

// failure of one stage; wraps the cause
type StageError struct {
	Stage   State
	Kind    Kind
	Timeout bool
	Err     error
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s failed (%s, timed out): %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// artifact that could not be removed; never fails a run
type CleanupWarning struct {
	Path string
	Err  error
}

func (w CleanupWarning) Error() string {
	return fmt.Sprintf("%s: could not remove %s: %v", KindCleanupWarning, w.Path, w.Err)
}

func (w CleanupWarning) Unwrap() error {
	return w.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
