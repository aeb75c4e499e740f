package live

import (
	"sync"
)

// AgentState tracks what the remote agent is doing in the current turn.
type AgentState int

const (
	// AgentIdle means no agent turn is in progress; user input is permitted.
	AgentIdle AgentState = iota
	// AgentSpeaking means an agent turn is in progress; user submissions are
	// rejected until the turn completes or is interrupted.
	AgentSpeaking
	// AgentInterrupted means the user suspended the agent turn; it is left
	// only through an explicit resume.
	AgentInterrupted
)

// String returns a human-readable agent state.
func (s AgentState) String() string {
	switch s {
	case AgentIdle:
		return "idle"
	case AgentSpeaking:
		return "speaking"
	case AgentInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// TurnState is the agent speaking state machine. It gates user submissions
// and tracks turn boundaries driven by server events and user actions.
type TurnState struct {
	mu       sync.Mutex
	state    AgentState
	onChange func(AgentState)
}

// NewTurnState creates a state machine in AgentIdle. onChange, when non-nil,
// fires after every state transition (never under the internal lock).
func NewTurnState(onChange func(AgentState)) *TurnState {
	return &TurnState{state: AgentIdle, onChange: onChange}
}

// State returns the current agent state.
func (t *TurnState) State() AgentState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CanSubmit reports whether user text submission or recording start is
// permitted right now.
func (t *TurnState) CanSubmit() bool {
	return t.State() != AgentSpeaking
}

// BeginTurn marks the start of an agent turn, triggered by the first inbound
// content event. It only transitions out of AgentIdle: content arriving while
// interrupted does not un-interrupt the session.
func (t *TurnState) BeginTurn() bool {
	return t.transition(AgentIdle, AgentSpeaking)
}

// EndTurn marks the agent turn complete, triggered by the server's turn
// completion signal.
func (t *TurnState) EndTurn() bool {
	return t.transition(AgentSpeaking, AgentIdle)
}

// Interrupt records a user interrupt. It is legal only while the agent is
// speaking.
func (t *TurnState) Interrupt() bool {
	return t.transition(AgentSpeaking, AgentInterrupted)
}

// Resume records a user resume. It is legal only while interrupted.
func (t *TurnState) Resume() bool {
	return t.transition(AgentInterrupted, AgentIdle)
}

// ForceIdle unconditionally returns to AgentIdle. Used when a transport
// error lands mid-turn so the UI never believes the agent is still talking.
func (t *TurnState) ForceIdle() {
	t.mu.Lock()
	if t.state == AgentIdle {
		t.mu.Unlock()
		return
	}
	t.state = AgentIdle
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(AgentIdle)
	}
}

func (t *TurnState) transition(from, to AgentState) bool {
	t.mu.Lock()
	if t.state != from {
		t.mu.Unlock()
		return false
	}
	t.state = to
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(to)
	}
	return true
}
