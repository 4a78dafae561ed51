package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"frameworks/pkg/database"
)

// Schema creates the session table. It is applied at startup.
const Schema = `
CREATE SCHEMA IF NOT EXISTS lookout;
CREATE TABLE IF NOT EXISTS lookout.sessions (
	session_id TEXT PRIMARY KEY,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// PostgresStore keeps sessions in a JSONB column and merges with ||.
type PostgresStore struct {
	db database.PostgresConn
}

func NewPostgresStore(db database.PostgresConn) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create session schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) MergeSessionData(ctx context.Context, sessionID string, patch map[string]any) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	encoded, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode session patch: %w", err)
	}
	// lib/pq sends []byte as bytea, so the document goes over as text.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lookout.sessions (session_id, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			data = lookout.sessions.data || EXCLUDED.data,
			updated_at = NOW()`,
		sessionID, string(encoded))
	if err != nil {
		return fmt.Errorf("merge session %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetSessionData(ctx context.Context, sessionID string) (map[string]any, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM lookout.sessions WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return data, nil
}
