package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler, sleeps *[]time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		HTTPClient:  srv.Client(),
		BackoffUnit: time.Second,
		Sleep: func(d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
	})
	return client, srv
}

func outputsResponse(t *testing.T, w http.ResponseWriter, outputs map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{"outputs": outputs},
	}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCallWorkflowSuccess(t *testing.T) {
	var sleeps []time.Duration
	var gotAuth string
	var gotBody workflowRequest

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		outputsResponse(t, w, map[string]any{"answer": "I was in the library."})
	}), &sleeps)

	outputs, err := client.CallWorkflow(context.Background(), KindQnA, map[string]any{"char_id": "butler"}, "player_1")
	if err != nil {
		t.Fatalf("CallWorkflow() error = %v", err)
	}
	if outputs["answer"] != "I was in the library." {
		t.Errorf("outputs[answer] = %v", outputs["answer"])
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.ResponseMode != "blocking" {
		t.Errorf("response_mode = %q, want blocking", gotBody.ResponseMode)
	}
	if gotBody.User != "player_1" {
		t.Errorf("user = %q", gotBody.User)
	}
	if len(sleeps) != 0 {
		t.Errorf("slept %v on a first-attempt success", sleeps)
	}
}

func TestCallWorkflowRetriesTransientFailures(t *testing.T) {
	var sleeps []time.Duration
	var calls atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		outputsResponse(t, w, map[string]any{"answer": "third time lucky"})
	}), &sleeps)

	outputs, err := client.CallWorkflow(context.Background(), KindMonologue, nil, "player_1")
	if err != nil {
		t.Fatalf("CallWorkflow() error = %v", err)
	}
	if outputs["answer"] != "third time lucky" {
		t.Errorf("outputs[answer] = %v", outputs["answer"])
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestCallWorkflowExhaustsRetries(t *testing.T) {
	var sleeps []time.Duration
	var calls atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), &sleeps)

	_, err := client.CallWorkflow(context.Background(), KindQnA, nil, "player_1")
	if err == nil {
		t.Fatal("CallWorkflow() err = nil, want service error")
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("CallWorkflow() err = %T, want *ServiceError", err)
	}
	if svcErr.Kind != KindQnA {
		t.Errorf("ServiceError.Kind = %q, want %q", svcErr.Kind, KindQnA)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestCallWorkflowMissingOutputsRetried(t *testing.T) {
	var sleeps []time.Duration
	var calls atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			if _, err := w.Write([]byte(`{"data":{}}`)); err != nil {
				t.Errorf("write response: %v", err)
			}
			return
		}
		outputsResponse(t, w, map[string]any{"result": "recovered"})
	}), &sleeps)

	outputs, err := client.CallWorkflow(context.Background(), KindQnA, nil, "player_1")
	if err != nil {
		t.Fatalf("CallWorkflow() error = %v", err)
	}
	if outputs["result"] != "recovered" {
		t.Errorf("outputs[result] = %v", outputs["result"])
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestCallWorkflowClientErrorAbortsImmediately(t *testing.T) {
	var sleeps []time.Duration
	var calls atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), &sleeps)

	_, err := client.CallWorkflow(context.Background(), KindQnA, nil, "player_1")
	if err == nil {
		t.Fatal("CallWorkflow() err = nil, want service error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
	if len(sleeps) != 0 {
		t.Errorf("slept %v before aborting", sleeps)
	}
}

func TestExtractAnswer(t *testing.T) {
	cases := []struct {
		name    string
		outputs map[string]any
		want    string
	}{
		{
			name:    "priority key wins",
			outputs: map[string]any{"text": "lower", "answer": "first"},
			want:    "first",
		},
		{
			name:    "empty priority key skipped",
			outputs: map[string]any{"answer": "  ", "result": "fallthrough"},
			want:    "fallthrough",
		},
		{
			name:    "first scalar by sorted key",
			outputs: map[string]any{"zeta": "late", "alpha": "early", "nested": map[string]any{"x": 1}},
			want:    "early",
		},
		{
			name:    "numeric scalar",
			outputs: map[string]any{"score": float64(42)},
			want:    "42",
		},
		{
			name:    "nothing usable",
			outputs: map[string]any{"nested": map[string]any{"answer": "buried"}},
			want:    answerFallback,
		},
		{
			name:    "empty outputs",
			outputs: map[string]any{},
			want:    answerFallback,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractAnswer(tc.outputs); got != tc.want {
				t.Errorf("ExtractAnswer() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenerateMonologueDegradesToApology(t *testing.T) {
	var sleeps []time.Duration
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), &sleeps)

	got := client.GenerateMonologue(context.Background(), "butler", 1, "", "player_1")
	if !strings.Contains(got, "butler") {
		t.Errorf("GenerateMonologue() = %q, want apology naming the character", got)
	}
}

func TestAnswerQuestionReturnsAnswer(t *testing.T) {
	var sleeps []time.Duration
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Inputs["query"] != "where were you?" {
			t.Errorf("inputs[query] = %v", req.Inputs["query"])
		}
		if req.Inputs["model_name"] != DefaultModel {
			t.Errorf("inputs[model_name] = %v, want default model", req.Inputs["model_name"])
		}
		outputsResponse(t, w, map[string]any{"answer": "in the cellar"})
	}), &sleeps)

	got := client.AnswerQuestion(context.Background(), "maid", 2, "where were you?", "", "player_1")
	if got != "in the cellar" {
		t.Errorf("AnswerQuestion() = %q", got)
	}
}
