package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
)

const (
	defaultKeyPrefix = "allegro:token:"
	// refresh tokens are valid for three months on the marketplace
	defaultTokenTTL = 90 * 24 * time.Hour
)

// RedisTokenStore implements allegro.TokenStore in Redis so every instance
// sees the latest rotated refresh token.
type RedisTokenStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	sealer    *Sealer
}

// storedToken is the Redis value; RefreshToken holds ciphertext when sealed
type storedToken struct {
	allegro.Token
	Sealed bool `json:"sealed,omitempty"`
}

// RedisTokenStoreOption configures a RedisTokenStore
type RedisTokenStoreOption func(*RedisTokenStore)

// WithSealer encrypts refresh tokens at rest
func WithSealer(s *Sealer) RedisTokenStoreOption {
	return func(r *RedisTokenStore) { r.sealer = s }
}

// WithKeyPrefix overrides the key namespace
func WithKeyPrefix(prefix string) RedisTokenStoreOption {
	return func(r *RedisTokenStore) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// NewRedisTokenStore creates a store on an existing client
func NewRedisTokenStore(client *redis.Client, opts ...RedisTokenStoreOption) *RedisTokenStore {
	s := &RedisTokenStore{client: client, keyPrefix: defaultKeyPrefix, ttl: defaultTokenTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads and unseals the user's token
func (s *RedisTokenStore) Get(ctx context.Context, userID string) (*allegro.Token, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, allegro.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if st.Sealed {
		if s.sealer == nil {
			return nil, errors.New("cache: stored token is sealed but no key is configured")
		}
		plain, err := s.sealer.Open(st.RefreshToken, userID)
		if err != nil {
			return nil, err
		}
		st.RefreshToken = plain
	}
	t := st.Token
	return &t, nil
}

// Put stores the token, sealing the refresh token when a key is set
func (s *RedisTokenStore) Put(ctx context.Context, userID string, t *allegro.Token) error {
	st := storedToken{Token: *t}
	if s.sealer != nil && t.RefreshToken != "" {
		sealed, err := s.sealer.Seal(t.RefreshToken, userID)
		if err != nil {
			return err
		}
		st.RefreshToken = sealed
		st.Sealed = true
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+userID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Delete removes the user's token
func (s *RedisTokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

var _ allegro.TokenStore = (*RedisTokenStore)(nil)
