package allegro

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	appKey = "app"
	// DefaultSafetyMargin is how long before expiry a cached token is replaced
	DefaultSafetyMargin = 5 * time.Minute
)

// TokenManager caches marketplace tokens and guarantees at most one
// in-flight exchange per key: "app" for the application grant, the user id
// for seller grants. Waiters share the outcome of that exchange, including
// its error.
type TokenManager struct {
	exchanger TokenExchanger
	store     TokenStore
	margin    time.Duration
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics
	now       func() time.Time

	flight singleflight.Group
	mu     sync.RWMutex
	app    *Token
	users  map[string]*Token
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithSafetyMargin overrides DefaultSafetyMargin
func WithSafetyMargin(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if d > 0 {
			m.margin = d
		}
	}
}

// WithMetrics records exchanges on m
func WithMetrics(metrics *telemetry.SyncMetrics) TokenManagerOption {
	return func(m *TokenManager) { m.metrics = metrics }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager creates a TokenManager. A nil store keeps user tokens in memory only.
func NewTokenManager(exchanger TokenExchanger, store TokenStore, logger *zap.Logger, opts ...TokenManagerOption) *TokenManager {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	m := &TokenManager{
		exchanger: exchanger,
		store:     store,
		margin:    DefaultSafetyMargin,
		logger:    logger,
		now:       time.Now,
		users:     make(map[string]*Token),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns the application token, exchanging client credentials
// when the cached one is missing or inside the safety margin.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	cached := m.app
	m.mu.RUnlock()
	if cached.Valid(m.now(), m.margin) {
		return cached.AccessToken, nil
	}

	t, err := m.do(ctx, appKey, "client_credentials", func(ctx context.Context) (*Token, bool, error) {
		// a flight that finished before this one started may already have stored a token
		m.mu.RLock()
		current := m.app
		m.mu.RUnlock()
		if current.Valid(m.now(), m.margin) {
			return current, false, nil
		}

		t, err := m.exchanger.ClientCredentials(ctx)
		if err != nil {
			return nil, true, err
		}
		m.mu.Lock()
		m.app = t
		m.mu.Unlock()
		return t, true, nil
	})
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// UserAccessToken returns the seller's token from memory or the store,
// refreshing it when expired. A seller without a stored token gets
// offer.ErrOAuthRequired.
func (m *TokenManager) UserAccessToken(ctx context.Context, userID string) (string, error) {
	if t := m.cachedUser(userID); t.Valid(m.now(), m.margin) {
		return t.AccessToken, nil
	}

	stored, err := m.store.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return "", fmt.Errorf("%w: no token for user %s", offer.ErrOAuthRequired, userID)
	case err != nil:
		return "", fmt.Errorf("allegro: load token: %w", err)
	}
	if stored.Valid(m.now(), m.margin) {
		m.cacheUser(userID, stored)
		return stored.AccessToken, nil
	}
	return m.refreshUser(ctx, userID, false)
}

// RefreshUserToken redeems the seller's refresh token regardless of the
// cached token's expiry.
func (m *TokenManager) RefreshUserToken(ctx context.Context, userID string) (string, error) {
	stale := m.cachedUser(userID)
	t, err := m.refreshUser(ctx, userID, true)
	if err == nil && stale != nil && t == stale.AccessToken {
		// joined a non-forced flight that handed back the rejected token
		return m.refreshUser(ctx, userID, true)
	}
	return t, err
}

// refreshUser redeems the refresh token inside the user's flight. Unless
// forced, a token a previous flight already stored is returned instead, so
// the refresh token is rotated once per expiry.
func (m *TokenManager) refreshUser(ctx context.Context, userID string, force bool) (string, error) {
	t, err := m.do(ctx, "user:"+userID, "refresh_token", func(ctx context.Context) (*Token, bool, error) {
		if !force {
			if current := m.cachedUser(userID); current.Valid(m.now(), m.margin) {
				return current, false, nil
			}
		}
		refresh := m.refreshTokenFor(ctx, userID)
		if refresh == "" {
			return nil, false, fmt.Errorf("%w: no refresh token for user %s", offer.ErrOAuthRequired, userID)
		}
		t, err := m.exchanger.Refresh(ctx, refresh)
		if err != nil {
			return nil, true, err
		}
		if t.RefreshToken == "" {
			t.RefreshToken = refresh
		}
		if err := m.save(ctx, userID, t); err != nil {
			return nil, true, err
		}
		return t, true, nil
	})
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// Authorize exchanges an authorization code and stores the seller's token
func (m *TokenManager) Authorize(ctx context.Context, userID, code string) (*Token, error) {
	return m.do(ctx, "code:"+userID, "authorization_code", func(ctx context.Context) (*Token, bool, error) {
		t, err := m.exchanger.ExchangeCode(ctx, code)
		if err != nil {
			return nil, true, err
		}
		if err := m.save(ctx, userID, t); err != nil {
			return nil, true, err
		}
		return t, true, nil
	})
}

// AuthCodeURL returns the authorize URL carrying state
func (m *TokenManager) AuthCodeURL(state string) string {
	return m.exchanger.AuthCodeURL(state)
}

// Revoke forgets the seller's token in memory and in the store
func (m *TokenManager) Revoke(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
	if err := m.store.Delete(ctx, userID); err != nil && !errors.Is(err, ErrTokenNotFound) {
		return fmt.Errorf("allegro: delete token: %w", err)
	}
	m.logger.Info("User token revoked", zap.String("user_id", userID))
	return nil
}

// do runs exchange once per key. The exchange is detached from the first
// caller's cancellation so other waiters are not failed by it. exchange
// reports whether it reached the token endpoint.
func (m *TokenManager) do(ctx context.Context, key, grant string, exchange func(context.Context) (*Token, bool, error)) (*Token, error) {
	ch := m.flight.DoChan(key, func() (any, error) {
		t, exchanged, err := exchange(context.WithoutCancel(ctx))
		if exchanged {
			m.metrics.RecordTokenRefresh(ctx, grant, err == nil)
		}
		if err != nil {
			m.logger.Warn("Token exchange failed", zap.String("key", key), zap.String("grant", grant), zap.Error(err))
			return nil, err
		}
		if !exchanged {
			return t, nil
		}
		m.logger.Debug("Token exchanged", zap.String("key", key), zap.String("grant", grant), zap.Time("expiry", t.Expiry))
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

func (m *TokenManager) refreshTokenFor(ctx context.Context, userID string) string {
	if t := m.cachedUser(userID); t != nil && t.RefreshToken != "" {
		return t.RefreshToken
	}
	stored, err := m.store.Get(ctx, userID)
	if err != nil {
		return ""
	}
	return stored.RefreshToken
}

func (m *TokenManager) save(ctx context.Context, userID string, t *Token) error {
	if err := m.store.Put(ctx, userID, t); err != nil {
		return fmt.Errorf("allegro: store token: %w", err)
	}
	m.cacheUser(userID, t)
	return nil
}

func (m *TokenManager) cachedUser(userID string) *Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID]
}

func (m *TokenManager) cacheUser(userID string, t *Token) {
	m.mu.Lock()
	m.users[userID] = t
	m.mu.Unlock()
}

var _ offer.TokenProvider = (*TokenManager)(nil)
