// Package httpapi exposes the game engine over a small JSON surface.
// It is plumbing only: every route decodes a request, calls one engine
// operation, and encodes the outcome.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/parlorgames/mysterium/internal/game/engine"
)

// Handler serves the /api/v1/games routes.
type Handler struct {
	engine *engine.Engine
}

// NewHandler builds the route handler.
func NewHandler(e *engine.Engine) (*Handler, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}
	return &Handler{engine: e}, nil
}

// Register wires the game routes into the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(http.MethodPost+" /api/v1/games", h.handleCreate)
	mux.HandleFunc(http.MethodGet+" /api/v1/games/{sessionID}", h.handleGet)
	mux.HandleFunc(http.MethodDelete+" /api/v1/games/{sessionID}", h.handleDelete)
	mux.HandleFunc(http.MethodPost+" /api/v1/games/{sessionID}/players", h.handleAddPlayer)
	mux.HandleFunc(http.MethodPost+" /api/v1/games/{sessionID}/actions", h.handleAction)
	mux.HandleFunc(http.MethodGet+" /api/v1/games/{sessionID}/status", h.handleStatus)
}

type createGameRequest struct {
	ScriptID string `json:"script_id"`
	UserID   string `json:"user_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ScriptID) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "script_id is required")
		return
	}

	st, err := h.engine.StartNewGame(r.Context(), req.ScriptID, req.UserID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	st := h.engine.LoadGame(r.Context(), sessionID)
	if st == nil {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	if !h.engine.DeleteGame(r.Context(), sessionID) {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addPlayerRequest struct {
	PlayerID    string `json:"player_id"`
	CharacterID string `json:"character_id"`
}

func (h *Handler) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	var req addPlayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "player_id is required")
		return
	}

	if !h.engine.AddPlayer(r.Context(), sessionID, req.PlayerID, req.CharacterID) {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"joined": true, "player_id": req.PlayerID})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	var action engine.Action
	if !decodeBody(w, r, &action) {
		return
	}

	result, err := h.engine.ProcessAction(r.Context(), sessionID, action)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	status, ok := h.engine.GetGameStatus(r.Context(), sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// decodeBody reads a JSON request body, answering 400 on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return false
	}
	return true
}

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	CharacterID string `json:"character_id,omitempty"`
	Act         int    `json:"act,omitempty"`
}

// writeFailure maps an engine failure onto an HTTP status and body.
func writeFailure(w http.ResponseWriter, err error) {
	var failure *engine.Failure
	if !errors.As(err, &failure) {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch failure.Code {
	case engine.CodeSessionNotFound, engine.CodeScriptNotFound:
		status = http.StatusNotFound
	case engine.CodeValidation, engine.CodeInvalidPhase, engine.CodeUnsupportedAction:
		status = http.StatusBadRequest
	case engine.CodeQuotaExceeded:
		status = http.StatusConflict
	case engine.CodeAIUnavailable:
		status = http.StatusBadGateway
	case engine.CodePersistFailure:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorBody{
		Code:        string(failure.Code),
		Message:     failure.Message,
		CharacterID: failure.CharacterID,
		Act:         failure.Act,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
