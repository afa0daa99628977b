package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/parlorgames/mysterium/internal/game/domain/state"
	"github.com/parlorgames/mysterium/internal/game/storage"
)

// Summary is the cheap status view of a session: scalar fields only,
// read without decoding the state document.
type Summary struct {
	GameID         string    `json:"game_id"`
	ScriptID       string    `json:"script_id"`
	SessionID      string    `json:"session_id"`
	CurrentAct     int       `json:"current_act"`
	CurrentPhase   string    `json:"current_phase"`
	PlayerCount    int       `json:"player_count"`
	CharacterCount int       `json:"character_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Manager owns the load/mutate/save cycle for session state. Storage and
// codec failures never escape: reads report absence, writes report a
// boolean, and the cause is logged with the session id.
type Manager struct {
	store storage.SessionStore
	codec Codec
	now   func() time.Time
}

// NewManager builds a manager over the given session store.
func NewManager(store storage.SessionStore, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now}
}

// Save upserts the state document keyed by session id, refreshing the
// last-mutation timestamp. Returns false when encoding or the write
// fails.
func (m *Manager) Save(ctx context.Context, s *state.GameState) bool {
	if s == nil {
		return false
	}
	s.Touch(m.now())

	document, err := m.codec.Encode(s)
	if err != nil {
		log.Printf("session %s: encode state: %v", s.SessionID, err)
		return false
	}

	record := storage.SessionRecord{
		SessionID:      s.SessionID,
		GameID:         s.GameID,
		ScriptID:       s.ScriptID,
		CurrentAct:     s.CurrentAct,
		CurrentPhase:   string(s.CurrentPhase),
		PlayerCount:    len(s.Players),
		CharacterCount: len(s.Characters),
		Document:       document,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if err := m.store.PutSession(ctx, record); err != nil {
		log.Printf("session %s: save state: %v", s.SessionID, err)
		return false
	}
	return true
}

// Load fetches and decodes the state for a session. A missing session,
// or any storage or codec failure, yields nil. Documents that predate
// the structured format decode as a fresh default state. Loading never
// bumps the last-mutation timestamp.
func (m *Manager) Load(ctx context.Context, sessionID string) *state.GameState {
	record, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("session %s: load state: %v", sessionID, err)
		}
		return nil
	}

	s, err := m.codec.DecodeOrDefault(record.Document, record.SessionID, record.ScriptID, m.now())
	if err != nil {
		log.Printf("session %s: decode state: %v", sessionID, err)
		return nil
	}
	return s
}

// Delete removes the persisted session document.
func (m *Manager) Delete(ctx context.Context, sessionID string) bool {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("session %s: delete state: %v", sessionID, err)
		}
		return false
	}
	return true
}

// UpdateFields loads the state, overwrites the named fields, and saves.
// Unknown field names are logged and skipped rather than treated as
// errors. Numeric values may arrive as float64 from decoded JSON.
func (m *Manager) UpdateFields(ctx context.Context, sessionID string, updates map[string]any) bool {
	s := m.Load(ctx, sessionID)
	if s == nil {
		return false
	}

	for field, value := range updates {
		if !applyFieldUpdate(s, field, value) {
			log.Printf("session %s: state field %q not applied", sessionID, field)
		}
	}

	return m.Save(ctx, s)
}

// Summary reads the scalar session columns for cheap status polling.
func (m *Manager) Summary(ctx context.Context, sessionID string) (Summary, bool) {
	record, err := m.store.GetSessionSummary(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("session %s: load summary: %v", sessionID, err)
		}
		return Summary{}, false
	}
	return Summary{
		GameID:         record.GameID,
		ScriptID:       record.ScriptID,
		SessionID:      record.SessionID,
		CurrentAct:     record.CurrentAct,
		CurrentPhase:   record.CurrentPhase,
		PlayerCount:    record.PlayerCount,
		CharacterCount: record.CharacterCount,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, true
}

// applyFieldUpdate overwrites one named document field on the model.
// Only fields that exist on the model are writable.
func applyFieldUpdate(s *state.GameState, field string, value any) bool {
	switch field {
	case "current_act":
		if act, ok := asInt(value); ok && act >= 1 {
			s.CurrentAct = act
			return true
		}
	case "current_phase":
		if label, ok := value.(string); ok {
			if phase, err := state.ParseGamePhase(label); err == nil {
				s.CurrentPhase = phase
				return true
			}
		}
	case "max_acts":
		if acts, ok := asInt(value); ok && acts >= 1 {
			s.MaxActs = acts
			return true
		}
	case "max_qna_per_character_per_act":
		if limit, ok := asInt(value); ok && limit >= 1 {
			s.MaxQnAPerCharacterPerAct = limit
			return true
		}
	case "current_turn_index":
		if index, ok := asInt(value); ok && index >= 0 {
			s.CurrentTurnIndex = index
			return true
		}
	case "turn_order":
		if order, ok := asStringSlice(value); ok {
			s.TurnOrder = order
			return true
		}
	case "custom_data":
		if data, ok := value.(map[string]any); ok {
			s.CustomData = reviveMap(data)
			return true
		}
	}
	return false
}

func asInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

func asStringSlice(value any) ([]string, bool) {
	switch typed := value.(type) {
	case []string:
		return typed, true
	case []any:
		order := make([]string, 0, len(typed))
		for _, item := range typed {
			id, ok := item.(string)
			if !ok {
				return nil, false
			}
			order = append(order, id)
		}
		return order, true
	default:
		return nil, false
	}
}
