// Package state holds the structured game state for a script-murder
// session: progression, players, characters, history, and quota tracking.
package state

import (
	"strconv"
	"time"
)

// Default limits applied when a session does not configure its own.
const (
	DefaultMaxActs          = 3
	DefaultMaxQnAPerCharAct = 3
)

// CharacterState tracks one scripted character over the life of a session.
type CharacterState struct {
	CharacterID      string            `json:"character_id"`
	Name             string            `json:"name"`
	Avatar           string            `json:"avatar"`
	Description      string            `json:"description"`
	IsAlive          bool              `json:"is_alive"`
	SuspicionLevel   int               `json:"suspicion_level"`
	SecretsRevealed  []string          `json:"secrets_revealed"`
	Relationships    map[string]string `json:"relationships"`
	CustomAttributes map[string]any    `json:"custom_attributes"`
}

// NewCharacterState builds a character with defaulted collections.
func NewCharacterState(characterID, name, avatar, description string) *CharacterState {
	return &CharacterState{
		CharacterID:      characterID,
		Name:             name,
		Avatar:           avatar,
		Description:      description,
		IsAlive:          true,
		SecretsRevealed:  []string{},
		Relationships:    map[string]string{},
		CustomAttributes: map[string]any{},
	}
}

// SetSuspicionLevel stores a suspicion value clamped to the 0-100 scale.
func (c *CharacterState) SetSuspicionLevel(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	c.SuspicionLevel = level
}

// PlayerState tracks one participant. The Q&A counters mirror the
// session-level quota bookkeeping per questioner; they are a convenience
// cache, not the authoritative count.
type PlayerState struct {
	PlayerID           string     `json:"player_id"`
	CharacterID        string     `json:"character_id,omitempty"`
	Role               PlayerRole `json:"role"`
	IsActive           bool       `json:"is_active"`
	QnACountCurrentAct int        `json:"qna_count_current_act"`
	TotalQnACount      int        `json:"total_qna_count"`
	MissionSubmissions []string   `json:"mission_submissions"`
	Notes              string     `json:"notes"`
	LastActivity       time.Time  `json:"last_activity"`
}

// NewPlayerState builds an active player with defaulted fields.
func NewPlayerState(playerID, characterID string, now time.Time) *PlayerState {
	return &PlayerState{
		PlayerID:           playerID,
		CharacterID:        characterID,
		Role:               RolePlayer,
		IsActive:           true,
		MissionSubmissions: []string{},
		LastActivity:       now.UTC(),
	}
}

// QnAEntry records one question put to a character and the answer given.
// The act number is fixed at creation time.
type QnAEntry struct {
	ID                string    `json:"id"`
	QuestionerID      string    `json:"questioner_id"`
	TargetCharacterID string    `json:"target_character_id"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	ActNumber         int       `json:"act_number"`
	Timestamp         time.Time `json:"timestamp"`
	IsPublic          bool      `json:"is_public"`
}

// MissionSubmission records a player-authored artifact such as an
// accusation or an evidence note.
type MissionSubmission struct {
	ID          string        `json:"id"`
	PlayerID    string        `json:"player_id"`
	MissionType string        `json:"mission_type"`
	Content     string        `json:"content"`
	Status      MissionStatus `json:"status"`
	ActNumber   int           `json:"act_number"`
	Timestamp   time.Time     `json:"timestamp"`
	ReviewNotes string        `json:"review_notes"`
}

// PublicLogEntry is one line of the shared session log.
type PublicLogEntry struct {
	ID                 string    `json:"id"`
	EntryType          string    `json:"entry_type"`
	Content            string    `json:"content"`
	ActNumber          int       `json:"act_number"`
	Timestamp          time.Time `json:"timestamp"`
	RelatedPlayerID    string    `json:"related_player_id,omitempty"`
	RelatedCharacterID string    `json:"related_character_id,omitempty"`
}

// GameState is the root aggregate for one play session. All mutation goes
// through the engine facade; the manager owns the single canonical copy
// between requests.
type GameState struct {
	GameID    string `json:"game_id"`
	ScriptID  string `json:"script_id"`
	SessionID string `json:"session_id"`

	CurrentAct   int       `json:"current_act"`
	CurrentPhase GamePhase `json:"current_phase"`
	MaxActs      int       `json:"max_acts"`

	Players          map[string]*PlayerState    `json:"players"`
	Characters       map[string]*CharacterState `json:"characters"`
	TurnOrder        []string                   `json:"turn_order"`
	CurrentTurnIndex int                        `json:"current_turn_index"`

	PublicLog          []PublicLogEntry    `json:"public_log"`
	QnAHistory         []QnAEntry          `json:"qna_history"`
	MissionSubmissions []MissionSubmission `json:"mission_submissions"`

	MaxQnAPerCharacterPerAct int                       `json:"max_qna_per_character_per_act"`
	QnACounts                map[string]map[string]int `json:"qna_counts"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CustomData map[string]any `json:"custom_data"`
}

// NewGameState builds a fresh session aggregate in the initialization
// phase with defaulted limits and empty collections.
func NewGameState(gameID, scriptID, sessionID string, now time.Time) *GameState {
	created := now.UTC()
	return &GameState{
		GameID:                   gameID,
		ScriptID:                 scriptID,
		SessionID:                sessionID,
		CurrentAct:               1,
		CurrentPhase:             PhaseInitialization,
		MaxActs:                  DefaultMaxActs,
		Players:                  map[string]*PlayerState{},
		Characters:               map[string]*CharacterState{},
		TurnOrder:                []string{},
		PublicLog:                []PublicLogEntry{},
		QnAHistory:               []QnAEntry{},
		MissionSubmissions:       []MissionSubmission{},
		MaxQnAPerCharacterPerAct: DefaultMaxQnAPerCharAct,
		QnACounts:                map[string]map[string]int{},
		CreatedAt:                created,
		UpdatedAt:                created,
		CustomData:               map[string]any{},
	}
}

// Touch refreshes the last-mutation timestamp.
func (s *GameState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// CurrentPlayer returns the player whose turn is current, or nil when the
// turn order is empty or the index points past it.
func (s *GameState) CurrentPlayer() *PlayerState {
	if len(s.TurnOrder) == 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
		return nil
	}
	return s.Players[s.TurnOrder[s.CurrentTurnIndex]]
}

// AdvanceTurn moves to the next turn slot, wrapping around the order.
func (s *GameState) AdvanceTurn() {
	if len(s.TurnOrder) > 0 {
		s.CurrentTurnIndex = (s.CurrentTurnIndex + 1) % len(s.TurnOrder)
	}
}

// AddPlayer inserts or overwrites a player. Re-joining with the same id
// replaces the previous entry without adding a second turn slot.
func (s *GameState) AddPlayer(player *PlayerState) {
	if player == nil {
		return
	}
	_, rejoining := s.Players[player.PlayerID]
	s.Players[player.PlayerID] = player
	if !rejoining {
		s.TurnOrder = append(s.TurnOrder, player.PlayerID)
	}
}

// QnACount reports how many questions the character has answered in the
// given act.
func (s *GameState) QnACount(characterID string, act int) int {
	return s.QnACounts[characterID][actKey(act)]
}

// IncrementQnACount bumps the per-character-per-act question counter.
func (s *GameState) IncrementQnACount(characterID string, act int) {
	if s.QnACounts == nil {
		s.QnACounts = map[string]map[string]int{}
	}
	if s.QnACounts[characterID] == nil {
		s.QnACounts[characterID] = map[string]int{}
	}
	s.QnACounts[characterID][actKey(act)]++
}

// CanAskQuestion reports whether the per-character-per-act quota still
// has room. A count equal to the limit blocks the next attempt.
func (s *GameState) CanAskQuestion(characterID string, act int) bool {
	return s.QnACount(characterID, act) < s.MaxQnAPerCharacterPerAct
}

// AppendLogEntry adds a completed entry to the public log.
func (s *GameState) AppendLogEntry(entry PublicLogEntry) {
	s.PublicLog = append(s.PublicLog, entry)
}

// AppendQnAEntry records an exchange and applies the quota bookkeeping:
// the history row, the per-character count, and the questioner's cached
// counters move together.
func (s *GameState) AppendQnAEntry(entry QnAEntry) {
	s.QnAHistory = append(s.QnAHistory, entry)
	s.IncrementQnACount(entry.TargetCharacterID, entry.ActNumber)
	if player, ok := s.Players[entry.QuestionerID]; ok {
		player.QnACountCurrentAct++
		player.TotalQnACount++
	}
}

// AppendMissionSubmission records a submission and cross-links it into
// the submitting player's list.
func (s *GameState) AppendMissionSubmission(submission MissionSubmission) {
	s.MissionSubmissions = append(s.MissionSubmissions, submission)
	if player, ok := s.Players[submission.PlayerID]; ok {
		player.MissionSubmissions = append(player.MissionSubmissions, submission.ID)
	}
}

// actKey renders act numbers the way the stored document keys them.
func actKey(act int) string {
	return strconv.Itoa(act)
}
