package engine

import (
	"context"
	"log"
	"time"

	"github.com/parlorgames/mysterium/internal/game/domain/state"
)

// broadcastTimeout bounds the out-of-band memory fan-out.
const broadcastTimeout = 10 * time.Second

// broadcastExchange shares a public Q&A with every other character's
// memory so they can react to what they overheard. It runs after the
// primary response has been persisted, on its own manager, and its
// failures are logged, never surfaced to the player.
func (e *Engine) broadcastExchange(sessionID string, entry state.QnAEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	st := e.broadcast.Load(ctx, sessionID)
	if st == nil {
		log.Printf("session %s: exchange broadcast skipped, session gone", sessionID)
		return
	}

	record := map[string]any{
		"questioner_id": entry.QuestionerID,
		"character_id":  entry.TargetCharacterID,
		"question":      entry.Question,
		"answer":        entry.Answer,
		"act_number":    entry.ActNumber,
	}
	for characterID, character := range st.Characters {
		if characterID == entry.TargetCharacterID {
			continue
		}
		if character.CustomAttributes == nil {
			character.CustomAttributes = map[string]any{}
		}
		overheard, _ := character.CustomAttributes["overheard"].([]any)
		character.CustomAttributes["overheard"] = append(overheard, record)
	}

	if !e.broadcast.Save(ctx, st) {
		log.Printf("session %s: exchange broadcast not persisted", sessionID)
	}
}
