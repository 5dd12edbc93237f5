package storage

import (
	"context"
	"errors"
	"time"

	"reportgen/internal/knowledge"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store combines document collections and session persistence.
type Store interface {
	SessionStore
	Collection(name string) knowledge.Indexer
	Close() error
}

// SessionStore persists serialised sessions. The payload is opaque to the
// store.
type SessionStore interface {
	// SaveSession upserts the payload for id.
	SaveSession(ctx context.Context, id string, payload []byte) error

	// LoadSession returns the payload stored for id, or ErrNotFound.
	LoadSession(ctx context.Context, id string) ([]byte, error)

	// DeleteSession removes id. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns stored sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]SessionInfo, error)
}

// SessionInfo summarises one stored session.
type SessionInfo struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}
