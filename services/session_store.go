package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when no stored analysis matches an id.
var ErrSessionNotFound = errors.New("analysis session not found")

// SessionStore keeps rendered analysis payloads so they can be fetched again.
type SessionStore interface {
	Save(ctx context.Context, id string, payload json.RawMessage) error
	Get(ctx context.Context, id string) (json.RawMessage, error)
	CleanOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// ============================================================================
// POSTGRES
// ============================================================================

type PostgresSessionStore struct {
	DB *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{DB: db}
}

func (s *PostgresSessionStore) Save(ctx context.Context, id string, payload json.RawMessage) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO analysis_sessions (id, payload, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, id, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", id, err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM analysis_sessions WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return payload, nil
}

func (s *PostgresSessionStore) CleanOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM analysis_sessions WHERE created_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to clean analysis sessions: %w", err)
	}
	return result.RowsAffected()
}

// ============================================================================
// IN-MEMORY (used when no database is configured)
// ============================================================================

type memorySession struct {
	payload   json.RawMessage
	createdAt time.Time
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, id string, payload json.RawMessage) error {
	cp := append(json.RawMessage(nil), payload...)
	s.mu.Lock()
	s.sessions[id] = memorySession{payload: cp, createdAt: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append(json.RawMessage(nil), sess.payload...), nil
}

func (s *MemorySessionStore) CleanOlderThan(_ context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age)
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, sess := range s.sessions {
		if sess.createdAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
