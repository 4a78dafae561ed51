// Package session persists per-session onboarding data as a JSON object that
// later stages merge into.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Top-level keys written by the HTTP layer.
const (
	KeyCrawledData           = "crawledData"
	KeyKeywordSuggestions    = "keywordSuggestions"
	KeyCompetitorSuggestions = "competitorSuggestions"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidSession = errors.New("session id is required")
)

// Store merges patches into a session blob. Merges are shallow: each
// top-level key of the patch replaces the stored value for that key.
type Store interface {
	MergeSessionData(ctx context.Context, sessionID string, patch map[string]any) error
	GetSessionData(ctx context.Context, sessionID string) (map[string]any, error)
}

// Noop discards writes. It backs deployments without persistence.
type Noop struct{}

func (Noop) MergeSessionData(_ context.Context, sessionID string, _ map[string]any) error {
	return validateID(sessionID)
}

func (Noop) GetSessionData(_ context.Context, sessionID string) (map[string]any, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// Scoped namespaces a client-supplied session id under the caller's
// account. Service callers without an account keep the bare id.
func Scoped(accountID, sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || accountID == "" {
		return sessionID
	}
	return accountID + ":" + sessionID
}

func validateID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	return nil
}

// Decode re-reads a stored value into a typed struct, e.g. a cached crawl
// result under KeyCrawledData.
func Decode[T any](data map[string]any, key string) (T, bool) {
	var out T
	v, ok := data[key]
	if !ok || v == nil {
		return out, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
