// Package session keeps one pipeline.State per user session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"bankruptcywatch/pipeline"
)

// ErrNotFound is returned for unknown or evicted session ids.
var ErrNotFound = errors.New("session not found: create a new session")

type entry struct {
	mu       sync.Mutex
	state    pipeline.State
	created  time.Time
	lastUsed time.Time
}

// Info describes a live session.
type Info struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	HasData   bool      `json:"has_dataset"`
	HasModel  bool      `json:"has_model"`
}

// Store is a bounded set of sessions. When full, the least recently used
// session is dropped. Actions on one session are serialized; different
// sessions run concurrently.
type Store struct {
	cache    *lru.Cache[string, *entry]
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewStore creates a store holding at most size sessions.
func NewStore(size int, p *pipeline.Pipeline, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{pipeline: p, logger: logger}
	cache, err := lru.NewWithEvict(size, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

func (s *Store) onEvict(id string, _ *entry) {
	s.logger.Info("session evicted", zap.String("session_id", id))
}

// Create starts a session with an empty state.
func (s *Store) Create() Info {
	now := time.Now()
	id := uuid.NewString()
	e := &entry{state: pipeline.NewState(), created: now, lastUsed: now}
	s.cache.Add(id, e)
	s.logger.Debug("session created", zap.String("session_id", id))
	return Info{ID: id, CreatedAt: now, LastUsed: now}
}

// Delete ends a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// State returns a snapshot of the session state.
func (s *Store) State(id string) (pipeline.State, error) {
	e, ok := s.cache.Get(id)
	if !ok {
		return pipeline.State{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = time.Now()
	return e.state, nil
}

// Info returns metadata about the session.
func (s *Store) Info(id string) (Info, error) {
	e, ok := s.cache.Peek(id)
	if !ok {
		return Info{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{
		ID:        id,
		CreatedAt: e.created,
		LastUsed:  e.lastUsed,
		HasData:   e.state.HasDataset(),
		HasModel:  e.state.HasModel(),
	}, nil
}

// Apply runs action against the session state and keeps the result. A failed
// action leaves the state as it was.
func (s *Store) Apply(id string, action pipeline.Action) (pipeline.Output, error) {
	e, ok := s.cache.Get(id)
	if !ok {
		return pipeline.Output{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, out, err := s.pipeline.Apply(e.state, action)
	e.lastUsed = time.Now()
	if err != nil {
		return out, err
	}
	e.state = next
	return out, nil
}
