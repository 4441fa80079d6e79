package pipeline

import "fmt"

// position of a run in the dubbing state machine
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateTranscribing
	StateSynthesizing
	StateAligning
	StateRemuxing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateExtracting:   "extracting",
	StateTranscribing: "transcribing",
	StateSynthesizing: "synthesizing",
	StateAligning:     "aligning",
	StateRemuxing:     "remuxing",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// successor on the happy path; terminal states have none
func (s State) Next() (State, bool) {
	if s < StateIdle || s >= StateDone {
		return s, false
	}
	return s + 1, true
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// the five working states, in order
func Stages() []State {
	return []State{StateExtracting, StateTranscribing, StateSynthesizing, StateAligning, StateRemuxing}
}
