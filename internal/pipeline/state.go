package pipeline

import "fmt"

// State is a step of a job's lifecycle.
type State int

const (
	StateInit State = iota
	StateSegmenting
	StateCached
	StateTranscribing
	StateReassembling
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:         "init",
	StateSegmenting:   "segmenting",
	StateCached:       "cached",
	StateTranscribing: "transcribing",
	StateReassembling: "reassembling",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}
