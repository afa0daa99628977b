// Package storage declares the persistence interfaces the game service
// depends on. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/parlorgames/mysterium/internal/game/script"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the persisted form of one play session: the scalar
// columns used for cheap status reads plus the full state document.
type SessionRecord struct {
	SessionID      string
	GameID         string
	ScriptID       string
	CurrentAct     int
	CurrentPhase   string
	PlayerCount    int
	CharacterCount int
	Document       []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SessionSummary holds the scalar columns of a session row. Reading a
// summary never decodes the state document.
type SessionSummary struct {
	SessionID      string
	GameID         string
	ScriptID       string
	CurrentAct     int
	CurrentPhase   string
	PlayerCount    int
	CharacterCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SessionStore persists session state documents keyed by session id.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	GetSessionSummary(ctx context.Context, sessionID string) (SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ScriptStore persists catalog scripts and serves roster lookups.
type ScriptStore interface {
	script.Lookup
	PutScript(ctx context.Context, record script.Script) error
}
