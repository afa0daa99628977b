// Package flow declares the phase graph for a session: which phase
// transitions are legal, how a finished step is routed, and what each
// phase suggests as its default successor.
//
// Node logic decides what happened; Route decides where to go. Keeping
// the two apart makes the graph a declarative table that tests can
// exercise exhaustively.
package flow

import (
	"github.com/parlorgames/mysterium/internal/game/domain/state"
)

// Decision names the outcome of routing one completed step.
type Decision string

const (
	DecisionMonologue     Decision = "monologue"
	DecisionQnA           Decision = "qna"
	DecisionMissionSubmit Decision = "mission_submit"
	DecisionFinalChoice   Decision = "final_choice"
	DecisionCompleted     Decision = "completed"
	// DecisionError aborts the step: an error entry is logged and the
	// phase does not move. The caller may retry.
	DecisionError Decision = "error"
	// DecisionEnd is the fallback when no table edge matches. It is a bug
	// sentinel, not a business outcome.
	DecisionEnd Decision = "end"
)

// edges is the legal transition table. COMPLETED is terminal.
var edges = map[state.GamePhase][]state.GamePhase{
	state.PhaseInitialization: {state.PhaseMonologue, state.PhaseQnA},
	state.PhaseMonologue:      {state.PhaseQnA, state.PhaseMissionSubmit, state.PhaseFinalChoice, state.PhaseCompleted},
	state.PhaseQnA:            {state.PhaseQnA, state.PhaseMonologue, state.PhaseMissionSubmit, state.PhaseFinalChoice, state.PhaseCompleted},
	state.PhaseMissionSubmit:  {state.PhaseQnA, state.PhaseFinalChoice, state.PhaseCompleted},
	state.PhaseFinalChoice:    {state.PhaseCompleted},
	state.PhaseCompleted:      {},
	state.PhasePaused:         {state.PhaseMonologue, state.PhaseQnA, state.PhaseMissionSubmit, state.PhaseFinalChoice},
}

// AllowedTransition reports whether the edge table permits moving from
// one phase to another. The administrative phase override deliberately
// bypasses this check.
func AllowedTransition(from, to state.GamePhase) bool {
	for _, candidate := range edges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// decisionFor maps a phase to its routing decision label.
var decisionFor = map[state.GamePhase]Decision{
	state.PhaseMonologue:     DecisionMonologue,
	state.PhaseQnA:           DecisionQnA,
	state.PhaseMissionSubmit: DecisionMissionSubmit,
	state.PhaseFinalChoice:   DecisionFinalChoice,
	state.PhaseCompleted:     DecisionCompleted,
}

// Route is a pure function of the step triple. An error always routes to
// the error handler; a legal edge routes to the requested phase; anything
// else falls through to DecisionEnd.
func Route(current, next state.GamePhase, hasError bool) Decision {
	if hasError {
		return DecisionError
	}
	if AllowedTransition(current, next) {
		if decision, ok := decisionFor[next]; ok {
			return decision
		}
	}
	return DecisionEnd
}

// Signal is the player intent that steers a phase's default successor.
type Signal string

const (
	SignalNone          Signal = ""
	SignalAdvanceAct    Signal = "advance_act"
	SignalSubmitMission Signal = "submit_mission"
)

// NextAfterInitialization suggests the opening phase: introductions when
// the script provided characters, otherwise straight to questioning.
func NextAfterInitialization(s *state.GameState) state.GamePhase {
	if len(s.Characters) > 0 {
		return state.PhaseMonologue
	}
	return state.PhaseQnA
}

// NextAfterQnA applies the questioning phase's default policy. An
// advance-act signal moves to the next act's introductions, or to the
// final choice when the last act is done; a mission signal opens the
// submission phase; otherwise the session stays in questioning.
// Advancing an act mutates the state's act counter.
func NextAfterQnA(s *state.GameState, signal Signal) state.GamePhase {
	switch signal {
	case SignalAdvanceAct:
		if s.CurrentAct >= s.MaxActs {
			return state.PhaseFinalChoice
		}
		s.CurrentAct++
		return state.PhaseMonologue
	case SignalSubmitMission:
		return state.PhaseMissionSubmit
	default:
		return state.PhaseQnA
	}
}

// NextAfterMissionSubmit returns to questioning unless the session is in
// its last act, in which case the final choice follows.
func NextAfterMissionSubmit(s *state.GameState) state.GamePhase {
	if s.CurrentAct >= s.MaxActs {
		return state.PhaseFinalChoice
	}
	return state.PhaseQnA
}

// Step carries one action's worth of routing context through the engine:
// the state under mutation, the pending error if any, and the phase hint
// the node logic produced.
type Step struct {
	State     *state.GameState
	ErrorMsg  string
	NextPhase state.GamePhase
}

// Failed reports whether the step hit a recoverable fault.
func (s *Step) Failed() bool {
	return s.ErrorMsg != ""
}
