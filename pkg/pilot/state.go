package pilot

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateIdle State = iota
	StateHandshaking
	StateRunning
	StateRetraining
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateRunning:
		return "RUNNING"
	case StateRetraining:
		return "RETRAINING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateTerminated; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown loop state %q", text)
}

// Active reports whether the loop is processing observations.
func (s State) Active() bool {
	return s == StateRunning || s == StateRetraining
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State {
	return State(b.v.Load())
}

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
}
