package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parlorgames/mysterium/internal/game/domain/state"
	"github.com/parlorgames/mysterium/internal/game/engine"
	"github.com/parlorgames/mysterium/internal/game/script"
	"github.com/parlorgames/mysterium/internal/game/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]storage.SessionRecord
}

func (m *memoryStore) PutSession(_ context.Context, record storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.SessionID] = record
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, sessionID string) (storage.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[sessionID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryStore) GetSessionSummary(ctx context.Context, sessionID string) (storage.SessionSummary, error) {
	record, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionSummary{}, err
	}
	return storage.SessionSummary{
		SessionID:      record.SessionID,
		GameID:         record.GameID,
		ScriptID:       record.ScriptID,
		CurrentAct:     record.CurrentAct,
		CurrentPhase:   record.CurrentPhase,
		PlayerCount:    record.PlayerCount,
		CharacterCount: record.CharacterCount,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}

func (m *memoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[sessionID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.records, sessionID)
	return nil
}

type fakeScripts struct{}

func (fakeScripts) GetScript(_ context.Context, scriptID string) (script.Script, error) {
	if scriptID != "manor-murder" {
		return script.Script{}, storage.ErrNotFound
	}
	return script.Script{
		ID:      "manor-murder",
		Title:   "Murder at the Manor",
		MaxActs: 3,
		Characters: []script.Character{
			{CharacterID: "butler", Name: "The Butler"},
		},
	}, nil
}

type fakeAI struct{}

func (fakeAI) GenerateMonologue(_ context.Context, characterID string, _ int, _, _ string) string {
	return "I am " + characterID + "."
}

func (fakeAI) AnswerQuestion(_ context.Context, characterID string, _ int, _, _, _ string) string {
	return characterID + " says nothing useful."
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	eng, err := engine.New(engine.Config{
		Store:   &memoryStore{records: map[string]storage.SessionRecord{}},
		Scripts: fakeScripts{},
		AI:      fakeAI{},
		Now:     func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
		Spawn:   func(fn func()) { fn() },
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	handler, err := NewHandler(eng)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	mux := http.NewServeMux()
	handler.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createGame(t *testing.T, mux *http.ServeMux) state.GameState {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/games", `{"script_id":"manor-murder","user_id":"host"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var st state.GameState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode created game: %v", err)
	}
	return st
}

func TestCreateGame(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)

	if st.SessionID == "" || st.GameID == "" {
		t.Errorf("created game missing ids: %+v", st)
	}
	if st.CurrentPhase != state.PhaseInitialization {
		t.Errorf("CurrentPhase = %q, want %q", st.CurrentPhase, state.PhaseInitialization)
	}
}

func TestCreateGameUnknownScript(t *testing.T) {
	mux := newTestMux(t)
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/games", `{"script_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "SCRIPT_NOT_FOUND" {
		t.Errorf("error code = %q, want SCRIPT_NOT_FOUND", body.Code)
	}
}

func TestCreateGameMalformedBody(t *testing.T) {
	mux := newTestMux(t)
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/games", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddPlayerAndStatus(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)
	base := "/api/v1/games/" + st.SessionID

	rec := doJSON(t, mux, http.MethodPost, base+"/players", `{"player_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add player status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, base+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	var status engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.PlayerCount != 1 {
		t.Errorf("PlayerCount = %d, want 1", status.PlayerCount)
	}
	if status.SuggestedPhase != state.PhaseMonologue {
		t.Errorf("SuggestedPhase = %q, want %q", status.SuggestedPhase, state.PhaseMonologue)
	}
}

func TestActionRoute(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)
	base := "/api/v1/games/" + st.SessionID

	rec := doJSON(t, mux, http.MethodPost, base+"/actions", `{"action_type":"monologue","character_id":"butler"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("action status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Text == "" {
		t.Error("action result has no text")
	}
}

func TestActionRouteFailures(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)
	base := "/api/v1/games/" + st.SessionID

	cases := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown action type",
			path:       base + "/actions",
			body:       `{"action_type":"unknown_action"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_ACTION",
		},
		{
			name:       "invalid phase target",
			path:       base + "/actions",
			body:       `{"action_type":"advance_phase","target_phase":"intermission"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PHASE",
		},
		{
			name:       "missing session",
			path:       "/api/v1/games/session_missing/actions",
			body:       `{"action_type":"monologue","character_id":"butler"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "SESSION_NOT_FOUND",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != tc.wantCode {
				t.Errorf("error code = %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}

func TestQuotaConflictStatus(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)
	base := "/api/v1/games/" + st.SessionID
	doJSON(t, mux, http.MethodPost, base+"/players", `{"player_id":"alice"}`)

	ask := `{"action_type":"qna","player_id":"alice","character_id":"butler","question":"well?"}`
	for i := 0; i < state.DefaultMaxQnAPerCharAct; i++ {
		rec := doJSON(t, mux, http.MethodPost, base+"/actions", ask)
		if rec.Code != http.StatusOK {
			t.Fatalf("question %d status = %d, body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, mux, http.MethodPost, base+"/actions", ask)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.CharacterID != "butler" || body.Act != 1 {
		t.Errorf("quota context = (%q, %d), want (butler, 1)", body.CharacterID, body.Act)
	}
}

func TestGetAndDeleteGame(t *testing.T) {
	mux := newTestMux(t)
	st := createGame(t, mux)
	base := "/api/v1/games/" + st.SessionID

	rec := doJSON(t, mux, http.MethodGet, base, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodDelete, base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, base, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodDelete, base, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
