package state

import (
	"fmt"
	"strings"
)

// GamePhase labels the stage of play a session is currently in.
type GamePhase string

const (
	PhaseInitialization GamePhase = "initialization"
	PhaseMonologue      GamePhase = "monologue"
	PhaseQnA            GamePhase = "qna"
	PhaseMissionSubmit  GamePhase = "mission_submit"
	PhaseFinalChoice    GamePhase = "final_choice"
	PhaseCompleted      GamePhase = "completed"
	PhasePaused         GamePhase = "paused"
)

// ErrInvalidPhase indicates a phase label outside the known set.
var ErrInvalidPhase = fmt.Errorf("invalid game phase")

// ParseGamePhase canonicalizes a phase label.
func ParseGamePhase(value string) (GamePhase, error) {
	switch GamePhase(strings.ToLower(strings.TrimSpace(value))) {
	case PhaseInitialization:
		return PhaseInitialization, nil
	case PhaseMonologue:
		return PhaseMonologue, nil
	case PhaseQnA:
		return PhaseQnA, nil
	case PhaseMissionSubmit:
		return PhaseMissionSubmit, nil
	case PhaseFinalChoice:
		return PhaseFinalChoice, nil
	case PhaseCompleted:
		return PhaseCompleted, nil
	case PhasePaused:
		return PhasePaused, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, value)
	}
}

// PlayerRole describes how a participant takes part in the session.
type PlayerRole string

const (
	RolePlayer     PlayerRole = "player"
	RoleGameMaster PlayerRole = "game_master"
	RoleObserver   PlayerRole = "observer"
)

// ParsePlayerRole canonicalizes a role label, defaulting empty input to
// the ordinary player role.
func ParsePlayerRole(value string) (PlayerRole, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return RolePlayer, nil
	}
	switch PlayerRole(trimmed) {
	case RolePlayer:
		return RolePlayer, nil
	case RoleGameMaster:
		return RoleGameMaster, nil
	case RoleObserver:
		return RoleObserver, nil
	default:
		return "", fmt.Errorf("invalid player role: %q", value)
	}
}

// MissionStatus tracks the review lifecycle of a mission submission.
type MissionStatus string

const (
	MissionPending   MissionStatus = "pending"
	MissionSubmitted MissionStatus = "submitted"
	MissionReviewed  MissionStatus = "reviewed"
	MissionAccepted  MissionStatus = "accepted"
	MissionRejected  MissionStatus = "rejected"
)
