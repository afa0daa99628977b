// Package script describes the catalog data a session is created from.
package script

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyScriptID indicates a missing script ID.
var ErrEmptyScriptID = errors.New("script id is required")

// Character is one scripted role as authored in the catalog.
type Character struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// Script is the catalog record a game session is seeded from.
type Script struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Author     string      `json:"author"`
	MaxActs    int         `json:"max_acts"`
	Characters []Character `json:"characters"`
}

// Normalize trims identifying fields and validates the record.
func (s Script) Normalize() (Script, error) {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return Script{}, ErrEmptyScriptID
	}
	s.Title = strings.TrimSpace(s.Title)
	if s.MaxActs <= 0 {
		s.MaxActs = 3
	}
	return s, nil
}

// Lookup resolves catalog scripts for the engine.
type Lookup interface {
	GetScript(ctx context.Context, scriptID string) (Script, error)
}
