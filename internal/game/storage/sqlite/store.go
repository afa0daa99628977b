// Package sqlite provides the SQLite-backed session and script stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/parlorgames/mysterium/internal/platform/storage/sqlitemigrate"

	"github.com/parlorgames/mysterium/internal/game/script"
	"github.com/parlorgames/mysterium/internal/game/storage"
	"github.com/parlorgames/mysterium/internal/game/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for sessions and scripts.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a game store at the provided path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutSession upserts one session row. The write is a single statement, so
// readers never observe a partially updated row.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.SessionID = strings.TrimSpace(record.SessionID)
	if record.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if len(record.Document) == 0 {
		return fmt.Errorf("session document is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO game_sessions (
	session_id,
	game_id,
	script_id,
	current_act,
	current_phase,
	player_count,
	character_count,
	document,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	game_id = excluded.game_id,
	script_id = excluded.script_id,
	current_act = excluded.current_act,
	current_phase = excluded.current_phase,
	player_count = excluded.player_count,
	character_count = excluded.character_count,
	document = excluded.document,
	updated_at = excluded.updated_at
`,
		record.SessionID,
		record.GameID,
		record.ScriptID,
		record.CurrentAct,
		record.CurrentPhase,
		record.PlayerCount,
		record.CharacterCount,
		string(record.Document),
		record.CreatedAt.UTC().UnixMilli(),
		record.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches one session row including the state document.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	var record storage.SessionRecord
	var document string
	var createdAt, updatedAt int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	session_id,
	game_id,
	script_id,
	current_act,
	current_phase,
	player_count,
	character_count,
	document,
	created_at,
	updated_at
FROM game_sessions
WHERE session_id = ?
`, sessionID)
	if err := row.Scan(
		&record.SessionID,
		&record.GameID,
		&record.ScriptID,
		&record.CurrentAct,
		&record.CurrentPhase,
		&record.PlayerCount,
		&record.CharacterCount,
		&document,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.Document = []byte(document)
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

// GetSessionSummary fetches the scalar columns of a session row. The
// state document is never read.
func (s *Store) GetSessionSummary(ctx context.Context, sessionID string) (storage.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionSummary{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionSummary{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.SessionSummary{}, fmt.Errorf("session id is required")
	}

	var summary storage.SessionSummary
	var createdAt, updatedAt int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	session_id,
	game_id,
	script_id,
	current_act,
	current_phase,
	player_count,
	character_count,
	created_at,
	updated_at
FROM game_sessions
WHERE session_id = ?
`, sessionID)
	if err := row.Scan(
		&summary.SessionID,
		&summary.GameID,
		&summary.ScriptID,
		&summary.CurrentAct,
		&summary.CurrentPhase,
		&summary.PlayerCount,
		&summary.CharacterCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionSummary{}, storage.ErrNotFound
		}
		return storage.SessionSummary{}, fmt.Errorf("get session summary: %w", err)
	}
	summary.CreatedAt = time.UnixMilli(createdAt).UTC()
	summary.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return summary, nil
}

// DeleteSession removes a session row.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM game_sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutScript upserts one catalog script with its character roster.
func (s *Store) PutScript(ctx context.Context, record script.Script) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := record.Normalize()
	if err != nil {
		return err
	}

	roster, err := json.Marshal(normalized.Characters)
	if err != nil {
		return fmt.Errorf("marshal script characters: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO scripts (id, title, author, max_acts, characters)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	author = excluded.author,
	max_acts = excluded.max_acts,
	characters = excluded.characters
`,
		normalized.ID,
		normalized.Title,
		normalized.Author,
		normalized.MaxActs,
		string(roster),
	)
	if err != nil {
		return fmt.Errorf("put script: %w", err)
	}
	return nil
}

// GetScript fetches one catalog script by ID.
func (s *Store) GetScript(ctx context.Context, scriptID string) (script.Script, error) {
	if err := ctx.Err(); err != nil {
		return script.Script{}, err
	}
	if s == nil || s.sqlDB == nil {
		return script.Script{}, fmt.Errorf("storage is not configured")
	}
	scriptID = strings.TrimSpace(scriptID)
	if scriptID == "" {
		return script.Script{}, script.ErrEmptyScriptID
	}

	var record script.Script
	var roster string
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, title, author, max_acts, characters
FROM scripts
WHERE id = ?
`, scriptID)
	if err := row.Scan(&record.ID, &record.Title, &record.Author, &record.MaxActs, &roster); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return script.Script{}, storage.ErrNotFound
		}
		return script.Script{}, fmt.Errorf("get script: %w", err)
	}
	if err := json.Unmarshal([]byte(roster), &record.Characters); err != nil {
		return script.Script{}, fmt.Errorf("unmarshal script characters: %w", err)
	}
	return record, nil
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.ScriptStore = (*Store)(nil)
