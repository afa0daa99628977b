// Package workflow calls the external AI provider that voices the
// scripted characters. Each provider workflow is specialized for one
// task: monologue generation or question answering.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Kind identifies a provider workflow endpoint.
type Kind string

const (
	KindMonologue Kind = "monologue"
	KindQnA       Kind = "qna"
)

// DefaultModel is used when an action does not name a model.
const DefaultModel = "gpt-3.5-turbo"

// answerFallback is returned when a structured response carries nothing
// usable. It keeps the outer contract total: callers always get text.
const answerFallback = "(the response could not be parsed)"

// ServiceError reports that a workflow call exhausted its retries or
// failed outright.
type ServiceError struct {
	Kind Kind
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("workflow %s: %v", e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// errInvalidShape marks a response without the expected outputs object.
// It counts as a failed attempt and is retried like a network fault.
var errInvalidShape = errors.New("workflow response missing outputs")

// Config configures the workflow client's endpoint and retry behavior.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// MaxRetries bounds attempts per call; zero means the default of 3.
	MaxRetries int
	// Timeout bounds each attempt; zero means the default of 30s.
	Timeout time.Duration
	// BackoffUnit scales the exponential backoff; zero means 1s.
	BackoffUnit time.Duration
	// Sleep is injectable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Client invokes provider workflows over HTTP with retry and response
// validation. CallWorkflow is fallible; the monologue and Q&A entry
// points are total and only ever return text.
type Client struct {
	cfg Config
}

// NewClient builds a workflow client, filling config defaults.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Client{cfg: cfg}
}

// workflowRequest is the provider wire format.
type workflowRequest struct {
	Inputs         map[string]any `json:"inputs"`
	User           string         `json:"user"`
	ResponseMode   string         `json:"response_mode"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

type workflowResponse struct {
	Data struct {
		Outputs map[string]any `json:"outputs"`
	} `json:"data"`
}

// CallWorkflow runs one provider workflow to completion. Network faults,
// timeouts, and malformed response shapes are retried with exponential
// backoff (attempt k waits 2^k backoff units); unexpected errors abort
// immediately since they are assumed non-transient.
func (c *Client) CallWorkflow(ctx context.Context, kind Kind, inputs map[string]any, user string) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.cfg.Sleep(c.cfg.BackoffUnit << (attempt - 1))
		}

		outputs, err := c.invoke(ctx, kind, inputs, user)
		if err == nil {
			return outputs, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, &ServiceError{Kind: kind, Err: err}
		}
	}
	return nil, &ServiceError{Kind: kind, Err: fmt.Errorf("exhausted %d attempts: %w", c.cfg.MaxRetries, lastErr)}
}

// invoke performs a single blocking workflow request.
func (c *Client) invoke(ctx context.Context, kind Kind, inputs map[string]any, user string) (map[string]any, error) {
	payload, err := json.Marshal(workflowRequest{
		Inputs:       inputs,
		User:         user,
		ResponseMode: "blocking",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workflow request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/workflows/" + url.PathEscape(string(kind)) + "/run"
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build workflow request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call workflow: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read workflow response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("workflow status %d: %w", resp.StatusCode, errTransientStatus)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("workflow status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded workflowResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode workflow response: %w", errInvalidShape)
	}
	if decoded.Data.Outputs == nil {
		return nil, errInvalidShape
	}
	return decoded.Data.Outputs, nil
}

var errTransientStatus = errors.New("transient upstream status")

// isRetryable separates transient faults from errors assumed permanent.
func isRetryable(err error) bool {
	if errors.Is(err, errInvalidShape) || errors.Is(err, errTransientStatus) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// answerKeys is the conventional output field scan order.
var answerKeys = []string{"answer", "result", "output", "text", "content"}

// ExtractAnswer pulls usable text from a workflow outputs object: the
// conventional keys in priority order, then the first non-empty scalar,
// then a fixed fallback so the result is always presentable.
func ExtractAnswer(outputs map[string]any) string {
	for _, key := range answerKeys {
		if text, ok := scalarText(outputs[key]); ok {
			return text
		}
	}

	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if text, ok := scalarText(outputs[key]); ok {
			return text
		}
	}
	return answerFallback
}

func scalarText(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		return trimmed, trimmed != ""
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", typed)), true
	case bool:
		return fmt.Sprintf("%v", typed), true
	default:
		return "", false
	}
}

// GenerateMonologue asks the provider for a first-person introduction.
// The contract is total: any service failure degrades to an apology
// naming the character instead of an error.
func (c *Client) GenerateMonologue(ctx context.Context, characterID string, act int, model, user string) string {
	if model == "" {
		model = DefaultModel
	}
	outputs, err := c.CallWorkflow(ctx, KindMonologue, map[string]any{
		"char_id":    characterID,
		"act_num":    act,
		"model_name": model,
	}, user)
	if err != nil {
		return fmt.Sprintf("Apologies, %s cannot introduce themselves right now. Please try again later.", characterID)
	}
	return ExtractAnswer(outputs)
}

// AnswerQuestion asks the provider to answer a player's question in
// character. Like GenerateMonologue, it never returns an error.
func (c *Client) AnswerQuestion(ctx context.Context, characterID string, act int, query, model, user string) string {
	if model == "" {
		model = DefaultModel
	}
	outputs, err := c.CallWorkflow(ctx, KindQnA, map[string]any{
		"char_id":    characterID,
		"act_num":    act,
		"query":      query,
		"model_name": model,
	}, user)
	if err != nil {
		return fmt.Sprintf("Apologies, %s cannot answer that question right now. Please try again later.", characterID)
	}
	return ExtractAnswer(outputs)
}

// Provider is the engine-facing surface of the workflow client.
type Provider interface {
	GenerateMonologue(ctx context.Context, characterID string, act int, model, user string) string
	AnswerQuestion(ctx context.Context, characterID string, act int, query, model, user string) string
}

var _ Provider = (*Client)(nil)
