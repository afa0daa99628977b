package state

import "fmt"

// Progress summarizes how far a session has advanced.
type Progress struct {
	Overall          float64 `json:"overall_progress"`
	Act              float64 `json:"act_progress"`
	QnA              float64 `json:"qna_progress"`
	CurrentAct       int     `json:"current_act"`
	TotalActs        int     `json:"total_acts"`
	CurrentPhase     string  `json:"current_phase"`
	QnACurrentAct    int     `json:"total_qna_current_act"`
	MaxQnACurrentAct int     `json:"max_qna_current_act"`
}

// phaseWeights approximate how much of a session each phase represents.
var phaseWeights = map[GamePhase]float64{
	PhaseInitialization: 5,
	PhaseMonologue:      15,
	PhaseQnA:            60,
	PhaseMissionSubmit:  15,
	PhaseFinalChoice:    5,
	PhaseCompleted:      100,
}

// CalculateProgress derives progress percentages from acts, phase, and
// question usage in the current act.
func (s *GameState) CalculateProgress() Progress {
	actProgress := float64(s.CurrentAct-1) / float64(s.MaxActs) * 100

	maxQnA := len(s.Characters) * s.MaxQnAPerCharacterPerAct
	currentQnA := 0
	for characterID := range s.Characters {
		currentQnA += s.QnACount(characterID, s.CurrentAct)
	}
	qnaProgress := 0.0
	if maxQnA > 0 {
		qnaProgress = float64(currentQnA) / float64(maxQnA) * 100
	}

	overall := actProgress + qnaProgress*0.6 + phaseWeights[s.CurrentPhase]
	if overall > 100 {
		overall = 100
	}

	return Progress{
		Overall:          overall,
		Act:              actProgress,
		QnA:              qnaProgress,
		CurrentAct:       s.CurrentAct,
		TotalActs:        s.MaxActs,
		CurrentPhase:     string(s.CurrentPhase),
		QnACurrentAct:    currentQnA,
		MaxQnACurrentAct: maxQnA,
	}
}

// minQuestionsBeforeActAdvance is the per-character threshold used when
// suggesting act advancement.
const minQuestionsBeforeActAdvance = 2

// ShouldAdvanceAct reports whether every character has been questioned
// enough times in the current act to suggest moving on.
func (s *GameState) ShouldAdvanceAct() bool {
	for characterID := range s.Characters {
		if s.QnACount(characterID, s.CurrentAct) < minQuestionsBeforeActAdvance {
			return false
		}
	}
	return true
}

// AvailableAction describes one action a player could take right now.
type AvailableAction struct {
	ActionType         string `json:"action_type"`
	CharacterID        string `json:"character_id,omitempty"`
	TargetPhase        string `json:"target_phase,omitempty"`
	RemainingQuestions int    `json:"remaining_questions,omitempty"`
	Description        string `json:"description"`
}

// AvailableActions lists the legal action menu for the current phase.
func (s *GameState) AvailableActions() []AvailableAction {
	actions := []AvailableAction{}

	switch s.CurrentPhase {
	case PhaseInitialization:
		actions = append(actions, AvailableAction{
			ActionType:  "advance_phase",
			TargetPhase: string(PhaseMonologue),
			Description: "begin character introductions",
		})

	case PhaseMonologue:
		for characterID := range s.Characters {
			actions = append(actions, AvailableAction{
				ActionType:  "monologue",
				CharacterID: characterID,
				Description: fmt.Sprintf("ask %s to introduce themselves", characterID),
			})
		}
		actions = append(actions, AvailableAction{
			ActionType:  "advance_phase",
			TargetPhase: string(PhaseQnA),
			Description: "open the questioning round",
		})

	case PhaseQnA:
		for characterID := range s.Characters {
			remaining := s.MaxQnAPerCharacterPerAct - s.QnACount(characterID, s.CurrentAct)
			if remaining > 0 {
				actions = append(actions, AvailableAction{
					ActionType:         "qna",
					CharacterID:        characterID,
					RemainingQuestions: remaining,
					Description:        fmt.Sprintf("question %s (%d left)", characterID, remaining),
				})
			}
		}
		actions = append(actions, AvailableAction{
			ActionType:  "mission_submit",
			Description: "submit evidence or an accusation",
		})
		if s.CurrentAct < s.MaxActs {
			actions = append(actions, AvailableAction{
				ActionType:  "advance_act",
				Description: fmt.Sprintf("move on to act %d", s.CurrentAct+1),
			})
		} else {
			actions = append(actions, AvailableAction{
				ActionType:  "advance_phase",
				TargetPhase: string(PhaseFinalChoice),
				Description: "move to the final choice",
			})
		}

	case PhaseMissionSubmit:
		actions = append(actions, AvailableAction{
			ActionType:  "advance_phase",
			TargetPhase: string(PhaseQnA),
			Description: "return to questioning",
		})
		if s.CurrentAct >= s.MaxActs {
			actions = append(actions, AvailableAction{
				ActionType:  "advance_phase",
				TargetPhase: string(PhaseFinalChoice),
				Description: "move to the final choice",
			})
		}

	case PhaseFinalChoice:
		actions = append(actions, AvailableAction{
			ActionType:  "advance_phase",
			TargetPhase: string(PhaseCompleted),
			Description: "end the game",
		})
	}

	return actions
}
