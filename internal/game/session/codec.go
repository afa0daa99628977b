// Package session mediates between the in-memory game state and its
// persisted document form.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parlorgames/mysterium/internal/game/domain/state"
)

// Codec converts a GameState to and from its stored JSON document. The
// mapping is bijective: Decode(Encode(s)) reproduces every field of s.
type Codec struct{}

// Encode renders the state as a JSON document. Timestamps, including any
// held inside free-form maps, serialize as ISO-8601 with UTC offset.
func (Codec) Encode(s *state.GameState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("game state is required")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal game state: %w", err)
	}
	return payload, nil
}

// Decode parses a stored document back into a GameState, applying
// defaults for fields older documents may lack and reviving
// timestamp-shaped strings inside the free-form maps.
func (Codec) Decode(document []byte) (*state.GameState, error) {
	var s state.GameState
	if err := json.Unmarshal(document, &s); err != nil {
		return nil, fmt.Errorf("unmarshal game state: %w", err)
	}
	applyDefaults(&s)
	s.CustomData = reviveMap(s.CustomData)
	for _, character := range s.Characters {
		character.CustomAttributes = reviveMap(character.CustomAttributes)
	}
	return &s, nil
}

// DecodeOrDefault decodes a stored document, synthesizing a fresh default
// state when the document is missing or predates the structured format
// (no root game id). Sessions created before this format existed keep
// working instead of failing to load.
func (c Codec) DecodeOrDefault(document []byte, sessionID, scriptID string, now time.Time) (*state.GameState, error) {
	if !hasGameID(document) {
		return state.NewGameState("game_"+sessionID, scriptID, sessionID, now), nil
	}
	s, err := c.Decode(document)
	if err != nil {
		return nil, err
	}
	if s.SessionID == "" {
		s.SessionID = sessionID
	}
	if s.ScriptID == "" {
		s.ScriptID = scriptID
	}
	return s, nil
}

func hasGameID(document []byte) bool {
	if len(document) == 0 {
		return false
	}
	var probe struct {
		GameID string `json:"game_id"`
	}
	if err := json.Unmarshal(document, &probe); err != nil {
		return false
	}
	return probe.GameID != ""
}

func applyDefaults(s *state.GameState) {
	if s.CurrentAct < 1 {
		s.CurrentAct = 1
	}
	if s.CurrentPhase == "" {
		s.CurrentPhase = state.PhaseInitialization
	}
	if s.MaxActs < 1 {
		s.MaxActs = state.DefaultMaxActs
	}
	if s.MaxQnAPerCharacterPerAct < 1 {
		s.MaxQnAPerCharacterPerAct = state.DefaultMaxQnAPerCharAct
	}
	if s.Players == nil {
		s.Players = map[string]*state.PlayerState{}
	}
	if s.Characters == nil {
		s.Characters = map[string]*state.CharacterState{}
	}
	if s.TurnOrder == nil {
		s.TurnOrder = []string{}
	}
	if s.PublicLog == nil {
		s.PublicLog = []state.PublicLogEntry{}
	}
	if s.QnAHistory == nil {
		s.QnAHistory = []state.QnAEntry{}
	}
	if s.MissionSubmissions == nil {
		s.MissionSubmissions = []state.MissionSubmission{}
	}
	if s.QnACounts == nil {
		s.QnACounts = map[string]map[string]int{}
	}
	if s.CustomData == nil {
		s.CustomData = map[string]any{}
	}
}

// reviveMap walks a decoded free-form map and converts timestamp-shaped
// strings back into time.Time values.
func reviveMap(value map[string]any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	revived := make(map[string]any, len(value))
	for key, item := range value {
		revived[key] = reviveValue(item)
	}
	return revived
}

func reviveValue(value any) any {
	switch typed := value.(type) {
	case string:
		if parsed, ok := parseTimestamp(typed); ok {
			return parsed
		}
		return typed
	case map[string]any:
		return reviveMap(typed)
	case []any:
		revived := make([]any, len(typed))
		for i, item := range typed {
			revived[i] = reviveValue(item)
		}
		return revived
	default:
		return value
	}
}

// parseTimestamp recognizes ISO-8601 strings carrying an explicit UTC
// offset or Z suffix. Plain strings pass through untouched.
func parseTimestamp(value string) (time.Time, bool) {
	if !strings.Contains(value, "T") {
		return time.Time{}, false
	}
	if !strings.HasSuffix(value, "Z") && !strings.Contains(value[max(0, len(value)-6):], "+") && !strings.Contains(value[max(0, len(value)-6):], "-") {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
