package live

import (
	"testing"
)

func TestTurnState_SubmissionGate(t *testing.T) {
	t.Parallel()

	ts := NewTurnState(nil)
	if !ts.CanSubmit() {
		t.Fatalf("idle state must permit submission")
	}

	ts.BeginTurn()
	if ts.CanSubmit() {
		t.Fatalf("speaking state must reject submission")
	}

	ts.Interrupt()
	if !ts.CanSubmit() {
		t.Fatalf("interrupted state must permit submission")
	}

	ts.Resume()
	if !ts.CanSubmit() {
		t.Fatalf("idle after resume must permit submission")
	}
}

func TestTurnState_TransitionGuards(t *testing.T) {
	t.Parallel()

	ts := NewTurnState(nil)

	if ts.EndTurn() {
		t.Fatalf("EndTurn from idle must be rejected")
	}
	if ts.Interrupt() {
		t.Fatalf("Interrupt from idle must be rejected")
	}
	if ts.Resume() {
		t.Fatalf("Resume from idle must be rejected")
	}

	if !ts.BeginTurn() {
		t.Fatalf("BeginTurn from idle must succeed")
	}
	if ts.BeginTurn() {
		t.Fatalf("BeginTurn while speaking must be rejected")
	}
	if ts.Resume() {
		t.Fatalf("Resume while speaking must be rejected")
	}

	if !ts.Interrupt() {
		t.Fatalf("Interrupt while speaking must succeed")
	}
	// Content arriving while interrupted does not restart the turn.
	if ts.BeginTurn() {
		t.Fatalf("BeginTurn while interrupted must be rejected")
	}
	if ts.State() != AgentInterrupted {
		t.Fatalf("state=%v, want %v", ts.State(), AgentInterrupted)
	}

	if !ts.Resume() {
		t.Fatalf("Resume while interrupted must succeed")
	}
	if ts.State() != AgentIdle {
		t.Fatalf("state=%v, want %v", ts.State(), AgentIdle)
	}
}

func TestTurnState_ForceIdle(t *testing.T) {
	t.Parallel()

	for _, setup := range []func(*TurnState){
		func(ts *TurnState) {},
		func(ts *TurnState) { ts.BeginTurn() },
		func(ts *TurnState) { ts.BeginTurn(); ts.Interrupt() },
	} {
		ts := NewTurnState(nil)
		setup(ts)
		ts.ForceIdle()
		if ts.State() != AgentIdle {
			t.Fatalf("state=%v after ForceIdle, want %v", ts.State(), AgentIdle)
		}
	}
}

func TestTurnState_NotifiesOnTransitions(t *testing.T) {
	t.Parallel()

	var seen []AgentState
	ts := NewTurnState(func(st AgentState) { seen = append(seen, st) })

	ts.BeginTurn()
	ts.Interrupt()
	ts.Resume()
	ts.BeginTurn()
	ts.EndTurn()
	ts.ForceIdle() // already idle, no notification

	want := []AgentState{AgentSpeaking, AgentInterrupted, AgentIdle, AgentSpeaking, AgentIdle}
	if len(seen) != len(want) {
		t.Fatalf("notifications=%v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notifications=%v, want %v", seen, want)
		}
	}
}
