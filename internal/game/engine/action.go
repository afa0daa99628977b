package engine

import (
	"github.com/parlorgames/mysterium/internal/game/domain/state"
)

// ActionType is the closed set of player actions the engine dispatches
// on. ProcessAction matches it exhaustively; anything outside the set is
// rejected with an unsupported-action failure before dispatch.
type ActionType string

const (
	ActionMonologue     ActionType = "monologue"
	ActionQnA           ActionType = "qna"
	ActionMissionSubmit ActionType = "mission_submit"
	ActionAdvancePhase  ActionType = "advance_phase"
	ActionAdvanceAct    ActionType = "advance_act"
)

// ParseActionType validates a wire-level action type string.
func ParseActionType(value string) (ActionType, bool) {
	switch ActionType(value) {
	case ActionMonologue, ActionQnA, ActionMissionSubmit, ActionAdvancePhase, ActionAdvanceAct:
		return ActionType(value), true
	}
	return "", false
}

// Action is one request against a session. Which optional fields matter
// depends on the action type.
type Action struct {
	Type        ActionType `json:"action_type"`
	PlayerID    string     `json:"player_id,omitempty"`
	CharacterID string     `json:"character_id,omitempty"`
	Question    string     `json:"question,omitempty"`
	Content     string     `json:"content,omitempty"`
	MissionType string     `json:"mission_type,omitempty"`
	TargetPhase string     `json:"target_phase,omitempty"`
	ModelName   string     `json:"model_name,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	IsPublic    bool       `json:"is_public,omitempty"`
}

// user resolves the identity handed to the AI provider.
func (a Action) user() string {
	if a.UserID != "" {
		return a.UserID
	}
	if a.PlayerID != "" {
		return a.PlayerID
	}
	return "system"
}

// Result is the successful outcome of one processed action.
type Result struct {
	ActionType ActionType `json:"action_type"`

	// Text carries the AI output for monologue and Q&A actions.
	Text string `json:"text,omitempty"`

	QnAEntryID   string `json:"qna_entry_id,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`

	// RemainingQuestions is the character's quota left in the current act
	// after a Q&A action.
	RemainingQuestions int `json:"remaining_questions,omitempty"`

	CurrentAct int             `json:"current_act"`
	Phase      state.GamePhase `json:"current_phase"`
	// NextPhase is the flow graph's default successor, a hint for the
	// caller rather than a commitment.
	NextPhase state.GamePhase `json:"next_phase,omitempty"`
}
