package allegro

import (
	"context"
	"errors"
	"sync"
)

// ErrTokenNotFound is returned when no token is stored for a user
var ErrTokenNotFound = errors.New("allegro: token not found")

// TokenStore persists user tokens so refresh tokens survive restarts
type TokenStore interface {
	Get(ctx context.Context, userID string) (*Token, error)
	Put(ctx context.Context, userID string, t *Token) error
	Delete(ctx context.Context, userID string) error
}

// MemoryTokenStore keeps tokens in process memory
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryTokenStore creates an empty store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token)}
}

// Get returns a copy of the stored token
func (s *MemoryTokenStore) Get(_ context.Context, userID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

// Put stores a copy of t
func (s *MemoryTokenStore) Put(_ context.Context, userID string, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = *t
	return nil
}

// Delete removes the user's token
func (s *MemoryTokenStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
