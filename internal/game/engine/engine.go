// Package engine is the public facade over the session core. It composes
// the state manager, the script catalog, the phase flow graph, and the
// AI workflow provider into the operations callers see.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parlorgames/mysterium/internal/game/domain/flow"
	"github.com/parlorgames/mysterium/internal/game/domain/state"
	"github.com/parlorgames/mysterium/internal/game/script"
	"github.com/parlorgames/mysterium/internal/game/session"
	"github.com/parlorgames/mysterium/internal/game/storage"
	"github.com/parlorgames/mysterium/internal/game/workflow"
	"github.com/parlorgames/mysterium/internal/platform/id"
)

// Config wires the engine's collaborators. Store, Scripts, and AI are
// required; the rest default to production implementations.
type Config struct {
	Store   storage.SessionStore
	Scripts script.Lookup
	AI      workflow.Provider

	// Now is injectable for deterministic tests; nil means time.Now.
	Now func() time.Time
	// NewID is injectable for deterministic tests; nil means the
	// platform id generator.
	NewID func(prefix string) string
	// Spawn runs the best-effort background fan-out; nil means a plain
	// goroutine. Tests substitute a synchronous runner.
	Spawn func(func())
}

// Engine is the error boundary for game logic: every operation returns
// typed failures or absence values, never raw storage or network errors.
type Engine struct {
	sessions *session.Manager
	// broadcast is a second manager over the same store, used only by the
	// out-of-band fan-out so it never contends with the request path's
	// load/mutate/save cycle.
	broadcast *session.Manager
	scripts   script.Lookup
	ai        workflow.Provider
	now       func() time.Time
	newID     func(prefix string) string
	spawn     func(func())
	tracer    trace.Tracer
}

// New builds the engine, validating required collaborators.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Scripts == nil {
		return nil, errors.New("script lookup is required")
	}
	if cfg.AI == nil {
		return nil, errors.New("workflow provider is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = defaultNewID
	}
	if cfg.Spawn == nil {
		cfg.Spawn = func(fn func()) { go fn() }
	}
	return &Engine{
		sessions:  session.NewManager(cfg.Store, cfg.Now),
		broadcast: session.NewManager(cfg.Store, cfg.Now),
		scripts:   cfg.Scripts,
		ai:        cfg.AI,
		now:       cfg.Now,
		newID:     cfg.NewID,
		spawn:     cfg.Spawn,
		tracer:    otel.Tracer("mysterium/engine"),
	}, nil
}

func defaultNewID(prefix string) string {
	value, _ := id.NewPrefixedID(prefix)
	return value
}

// StartNewGame creates a session seeded from a catalog script: fresh
// ids, the script's character roster, phase set to initialization, and a
// creation log entry. Nothing is persisted unless every step succeeds.
func (e *Engine) StartNewGame(ctx context.Context, scriptID, userID string) (*state.GameState, error) {
	ctx, span := e.tracer.Start(ctx, "engine.StartNewGame",
		trace.WithAttributes(attribute.String("script.id", scriptID)))
	defer span.End()

	scr, err := e.scripts.GetScript(ctx, scriptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, failf(CodeScriptNotFound, "script %s not found", scriptID)
		}
		return nil, failf(CodePersistFailure, "script %s could not be read", scriptID)
	}

	now := e.now()
	gameID := e.newID("game_")
	sessionID := e.newID("session_")

	st := state.NewGameState(gameID, scriptID, sessionID, now)
	if scr.MaxActs > 0 {
		st.MaxActs = scr.MaxActs
	}
	for _, character := range scr.Characters {
		st.Characters[character.CharacterID] = state.NewCharacterState(
			character.CharacterID, character.Name, character.Avatar, character.Description)
	}
	st.AppendLogEntry(state.PublicLogEntry{
		ID:              e.newID("log_"),
		EntryType:       "game_created",
		Content:         fmt.Sprintf("game created from script %s", scriptID),
		ActNumber:       st.CurrentAct,
		Timestamp:       now.UTC(),
		RelatedPlayerID: userID,
	})

	if !e.sessions.Save(ctx, st) {
		return nil, failf(CodePersistFailure, "session %s could not be persisted", sessionID)
	}
	return st, nil
}

// LoadGame returns the session state, or nil when the session does not
// exist. Absence is a valid outcome, never an error.
func (e *Engine) LoadGame(ctx context.Context, sessionID string) *state.GameState {
	ctx, span := e.tracer.Start(ctx, "engine.LoadGame",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	return e.sessions.Load(ctx, sessionID)
}

// AddPlayer joins a player to the session. Re-joining with the same id
// overwrites the player record without duplicating their turn slot.
// Returns false when the session is absent or the write fails.
func (e *Engine) AddPlayer(ctx context.Context, sessionID, playerID, characterID string) bool {
	ctx, span := e.tracer.Start(ctx, "engine.AddPlayer",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	st := e.sessions.Load(ctx, sessionID)
	if st == nil || playerID == "" {
		return false
	}

	now := e.now()
	st.AddPlayer(state.NewPlayerState(playerID, characterID, now))
	st.AppendLogEntry(state.PublicLogEntry{
		ID:                 e.newID("log_"),
		EntryType:          "player_joined",
		Content:            fmt.Sprintf("player %s joined", playerID),
		ActNumber:          st.CurrentAct,
		Timestamp:          now.UTC(),
		RelatedPlayerID:    playerID,
		RelatedCharacterID: characterID,
	})
	return e.sessions.Save(ctx, st)
}

// DeleteGame removes the persisted session document.
func (e *Engine) DeleteGame(ctx context.Context, sessionID string) bool {
	ctx, span := e.tracer.Start(ctx, "engine.DeleteGame",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	return e.sessions.Delete(ctx, sessionID)
}

// ProcessAction is the single mutation entry point. The state document
// is persisted only when the handler succeeds; a failed action leaves
// the stored session untouched.
func (e *Engine) ProcessAction(ctx context.Context, sessionID string, action Action) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ProcessAction",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("action.type", string(action.Type)),
		))
	defer span.End()

	if _, ok := ParseActionType(string(action.Type)); !ok {
		return nil, failf(CodeUnsupportedAction, "Unknown action type: %s", action.Type)
	}

	st := e.sessions.Load(ctx, sessionID)
	if st == nil {
		return nil, failf(CodeSessionNotFound, "session %s not found", sessionID)
	}

	var (
		result *Result
		fail   *Failure
	)
	switch action.Type {
	case ActionMonologue:
		result, fail = e.handleMonologue(ctx, st, action)
	case ActionQnA:
		result, fail = e.handleQnA(ctx, st, action)
	case ActionMissionSubmit:
		result, fail = e.handleMissionSubmit(st, action)
	case ActionAdvancePhase:
		result, fail = e.handleAdvancePhase(st, action)
	case ActionAdvanceAct:
		result, fail = e.handleAdvanceAct(st)
	}
	if fail != nil {
		return nil, fail
	}

	if !e.sessions.Save(ctx, st) {
		return nil, failf(CodePersistFailure, "session %s could not be persisted", sessionID)
	}

	if action.Type == ActionQnA && action.IsPublic && result.QnAEntryID != "" {
		entry := st.QnAHistory[len(st.QnAHistory)-1]
		e.spawn(func() { e.broadcastExchange(st.SessionID, entry) })
	}

	result.CurrentAct = st.CurrentAct
	result.Phase = st.CurrentPhase
	result.NextPhase = suggestNextPhase(st)
	return result, nil
}

// handleMonologue asks the AI provider for a character introduction and
// records it in the public log.
func (e *Engine) handleMonologue(ctx context.Context, st *state.GameState, action Action) (*Result, *Failure) {
	if action.CharacterID == "" {
		return nil, failf(CodeValidation, "monologue requires a character id")
	}
	if _, ok := st.Characters[action.CharacterID]; !ok {
		return nil, failf(CodeValidation, "character %s is not in this session", action.CharacterID)
	}

	text := e.ai.GenerateMonologue(ctx, action.CharacterID, st.CurrentAct, action.ModelName, action.user())
	st.AppendLogEntry(state.PublicLogEntry{
		ID:                 e.newID("log_"),
		EntryType:          "monologue",
		Content:            text,
		ActNumber:          st.CurrentAct,
		Timestamp:          e.now().UTC(),
		RelatedCharacterID: action.CharacterID,
	})
	return &Result{ActionType: ActionMonologue, Text: text}, nil
}

// handleQnA enforces the per-character-per-act quota before any AI call,
// then records the exchange. The history row, the quota count, and the
// public log line land together after the answer is in hand.
func (e *Engine) handleQnA(ctx context.Context, st *state.GameState, action Action) (*Result, *Failure) {
	switch {
	case action.CharacterID == "":
		return nil, failf(CodeValidation, "qna requires a character id")
	case action.Question == "":
		return nil, failf(CodeValidation, "qna requires a question")
	case action.PlayerID == "":
		return nil, failf(CodeValidation, "qna requires a questioner id")
	}
	if _, ok := st.Characters[action.CharacterID]; !ok {
		return nil, failf(CodeValidation, "character %s is not in this session", action.CharacterID)
	}
	if !st.CanAskQuestion(action.CharacterID, st.CurrentAct) {
		return nil, quotaFail(action.CharacterID, st.CurrentAct, st.MaxQnAPerCharacterPerAct)
	}

	answer := e.ai.AnswerQuestion(ctx, action.CharacterID, st.CurrentAct, action.Question, action.ModelName, action.user())

	now := e.now().UTC()
	entry := state.QnAEntry{
		ID:                e.newID("qna_"),
		QuestionerID:      action.PlayerID,
		TargetCharacterID: action.CharacterID,
		Question:          action.Question,
		Answer:            answer,
		ActNumber:         st.CurrentAct,
		Timestamp:         now,
		IsPublic:          action.IsPublic,
	}
	st.AppendQnAEntry(entry)
	if action.IsPublic {
		st.AppendLogEntry(state.PublicLogEntry{
			ID:                 e.newID("log_"),
			EntryType:          "qna",
			Content:            fmt.Sprintf("Q: %s\nA: %s", action.Question, answer),
			ActNumber:          st.CurrentAct,
			Timestamp:          now,
			RelatedPlayerID:    action.PlayerID,
			RelatedCharacterID: action.CharacterID,
		})
	}

	remaining := st.MaxQnAPerCharacterPerAct - st.QnACount(action.CharacterID, st.CurrentAct)
	return &Result{
		ActionType:         ActionQnA,
		Text:               answer,
		QnAEntryID:         entry.ID,
		RemainingQuestions: remaining,
	}, nil
}

// handleMissionSubmit records a player-authored submission and logs it.
func (e *Engine) handleMissionSubmit(st *state.GameState, action Action) (*Result, *Failure) {
	if action.PlayerID == "" {
		return nil, failf(CodeValidation, "mission_submit requires a player id")
	}
	if action.Content == "" {
		return nil, failf(CodeValidation, "mission_submit requires content")
	}
	missionType := action.MissionType
	if missionType == "" {
		missionType = "general"
	}

	now := e.now().UTC()
	submission := state.MissionSubmission{
		ID:          e.newID("mission_"),
		PlayerID:    action.PlayerID,
		MissionType: missionType,
		Content:     action.Content,
		Status:      state.MissionSubmitted,
		ActNumber:   st.CurrentAct,
		Timestamp:   now,
	}
	st.AppendMissionSubmission(submission)
	st.AppendLogEntry(state.PublicLogEntry{
		ID:              e.newID("log_"),
		EntryType:       "mission_submitted",
		Content:         fmt.Sprintf("player %s submitted a %s mission", action.PlayerID, missionType),
		ActNumber:       st.CurrentAct,
		Timestamp:       now,
		RelatedPlayerID: action.PlayerID,
	})
	return &Result{ActionType: ActionMissionSubmit, SubmissionID: submission.ID}, nil
}

// handleAdvancePhase applies the administrative phase override. The
// target must parse as a known phase, but the move deliberately bypasses
// the flow graph's edge table.
func (e *Engine) handleAdvancePhase(st *state.GameState, action Action) (*Result, *Failure) {
	target, err := state.ParseGamePhase(action.TargetPhase)
	if err != nil {
		return nil, failf(CodeInvalidPhase, "invalid phase %q", action.TargetPhase)
	}

	now := e.now().UTC()
	previous := st.CurrentPhase
	st.CurrentPhase = target
	if previous == state.PhaseInitialization && st.StartedAt == nil {
		st.StartedAt = &now
	}
	if target == state.PhaseCompleted && st.CompletedAt == nil {
		st.CompletedAt = &now
	}
	st.AppendLogEntry(state.PublicLogEntry{
		ID:        e.newID("log_"),
		EntryType: "phase_change",
		Content:   fmt.Sprintf("phase changed from %s to %s", previous, target),
		ActNumber: st.CurrentAct,
		Timestamp: now,
	})
	return &Result{ActionType: ActionAdvancePhase}, nil
}

// handleAdvanceAct applies the questioning phase's advance-act policy:
// the next act opens with introductions, or the final choice follows
// when the last act is done. Per-act player counters reset on advance.
func (e *Engine) handleAdvanceAct(st *state.GameState) (*Result, *Failure) {
	if st.CurrentPhase != state.PhaseQnA {
		return nil, failf(CodeValidation, "advance_act is only available during questioning")
	}

	previousAct := st.CurrentAct
	next := flow.NextAfterQnA(st, flow.SignalAdvanceAct)
	st.CurrentPhase = next
	if st.CurrentAct != previousAct {
		for _, player := range st.Players {
			player.QnACountCurrentAct = 0
		}
	}
	st.AppendLogEntry(state.PublicLogEntry{
		ID:        e.newID("log_"),
		EntryType: "act_advanced",
		Content:   fmt.Sprintf("act %d closed, moving to %s", previousAct, next),
		ActNumber: st.CurrentAct,
		Timestamp: e.now().UTC(),
	})
	return &Result{ActionType: ActionAdvanceAct}, nil
}

// suggestNextPhase reads the flow graph's default successor for the
// session's current phase without mutating the state.
func suggestNextPhase(st *state.GameState) state.GamePhase {
	switch st.CurrentPhase {
	case state.PhaseInitialization:
		return flow.NextAfterInitialization(st)
	case state.PhaseMonologue:
		return state.PhaseQnA
	case state.PhaseQnA:
		return flow.NextAfterQnA(st, flow.SignalNone)
	case state.PhaseMissionSubmit:
		return flow.NextAfterMissionSubmit(st)
	case state.PhaseFinalChoice:
		return state.PhaseCompleted
	default:
		return st.CurrentPhase
	}
}

// Status is the caller-facing view of a session: the cheap summary plus
// live counts and guidance that require the full state document.
type Status struct {
	session.Summary

	TurnOrder        []string        `json:"turn_order"`
	CurrentTurnIndex int             `json:"current_turn_index"`
	CurrentPlayerID  string          `json:"current_player_id,omitempty"`
	PublicLogCount   int             `json:"public_log_count"`
	QnACount         int             `json:"qna_count"`
	MissionCount     int             `json:"mission_count"`
	SuggestedPhase   state.GamePhase `json:"suggested_phase"`

	Progress         state.Progress          `json:"progress"`
	AvailableActions []state.AvailableAction `json:"available_actions"`
}

// GetGameStatus composes the scalar summary with counts pulled from a
// full load. Returns false when the session does not exist.
func (e *Engine) GetGameStatus(ctx context.Context, sessionID string) (*Status, bool) {
	ctx, span := e.tracer.Start(ctx, "engine.GetGameStatus",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	summary, ok := e.sessions.Summary(ctx, sessionID)
	if !ok {
		return nil, false
	}
	st := e.sessions.Load(ctx, sessionID)
	if st == nil {
		return nil, false
	}

	status := &Status{
		Summary:          summary,
		TurnOrder:        st.TurnOrder,
		CurrentTurnIndex: st.CurrentTurnIndex,
		PublicLogCount:   len(st.PublicLog),
		QnACount:         len(st.QnAHistory),
		MissionCount:     len(st.MissionSubmissions),
		SuggestedPhase:   suggestNextPhase(st),
		Progress:         st.CalculateProgress(),
		AvailableActions: st.AvailableActions(),
	}
	if player := st.CurrentPlayer(); player != nil {
		status.CurrentPlayerID = player.PlayerID
	}
	return status, true
}
