package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reportgen/internal/storage"

	"github.com/patrickmn/go-cache"
)

// MemoryRepository keeps sessions in process with a sliding expiry.
type MemoryRepository struct {
	cache *cache.Cache
}

// NewMemoryRepository creates a repository whose sessions expire ttl after
// their last save. Expired items are purged every ttl/6.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryRepository{
		cache: cache.New(ttl, ttl/6),
	}
}

func (r *MemoryRepository) Save(_ context.Context, s *Session) error {
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*Session), nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.cache.Delete(id)
	return nil
}

// Count reports the number of live sessions.
func (r *MemoryRepository) Count() int {
	return r.cache.ItemCount()
}

// SQLiteRepository persists sessions as JSON through a storage.SessionStore.
type SQLiteRepository struct {
	store storage.SessionStore
}

func NewSQLiteRepository(store storage.SessionStore) *SQLiteRepository {
	return &SQLiteRepository{store: store}
}

func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return r.store.SaveSession(ctx, s.ID, payload)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := r.store.LoadSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.store.DeleteSession(ctx, id)
}

// List returns stored sessions, most recently updated first.
func (r *SQLiteRepository) List(ctx context.Context) ([]storage.SessionInfo, error) {
	return r.store.ListSessions(ctx)
}

// GetOrCreate loads id, or creates and saves a new session under that id.
func GetOrCreate(ctx context.Context, repo Repository, id string, currentYear, totalYears int) (*Session, error) {
	s, err := repo.Get(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s = New(currentYear, totalYears)
	if id != "" {
		s.ID = id
	}
	if err := repo.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CachedRepository serves sessions from memory and writes through to a
// backing repository, so live sessions survive cache expiry and restarts.
type CachedRepository struct {
	mem     *MemoryRepository
	backing Repository
}

func NewCachedRepository(mem *MemoryRepository, backing Repository) *CachedRepository {
	return &CachedRepository{mem: mem, backing: backing}
}

func (r *CachedRepository) Save(ctx context.Context, s *Session) error {
	if err := r.backing.Save(ctx, s); err != nil {
		return err
	}
	return r.mem.Save(ctx, s)
}

func (r *CachedRepository) Get(ctx context.Context, id string) (*Session, error) {
	if s, err := r.mem.Get(ctx, id); err == nil {
		return s, nil
	}
	s, err := r.backing.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Save(ctx, s)
	return s, nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	_ = r.mem.Delete(ctx, id)
	return r.backing.Delete(ctx, id)
}
