package allegro

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeExchanger counts grants; release gates every exchange when set.
type fakeExchanger struct {
	appCalls     atomic.Int32
	refreshCalls atomic.Int32
	codeCalls    atomic.Int32
	release      chan struct{}
	err          error
	expiry       time.Time
	lastRefresh  atomic.Value
}

func (f *fakeExchanger) wait() {
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeExchanger) ClientCredentials(context.Context) (*Token, error) {
	n := f.appCalls.Add(1)
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return &Token{AccessToken: "app-" + string(rune('0'+n)), Expiry: f.expiry}, nil
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (*Token, error) {
	f.codeCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Token{AccessToken: "user-" + code, RefreshToken: "rt-" + code, Expiry: f.expiry}, nil
}

func (f *fakeExchanger) Refresh(_ context.Context, refreshToken string) (*Token, error) {
	n := f.refreshCalls.Add(1)
	f.lastRefresh.Store(refreshToken)
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return &Token{AccessToken: "refreshed-" + string(rune('0'+n)), Expiry: f.expiry}, nil
}

func (f *fakeExchanger) AuthCodeURL(state string) string { return "https://auth.example/authorize?state=" + state }

var epoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(ex *fakeExchanger, store TokenStore, now *time.Time) *TokenManager {
	return NewTokenManager(ex, store, zap.NewNop(), WithClock(func() time.Time { return *now }))
}

func TestTokenManager_AccessToken_Caches(t *testing.T) {
	now := epoch
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
	m := newTestManager(ex, nil, &now)
	ctx := context.Background()

	tok, err := m.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app-1", tok)

	tok, err = m.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app-1", tok)
	assert.Equal(t, int32(1), ex.appCalls.Load())

	t.Run("refreshes inside the safety margin", func(t *testing.T) {
		now = epoch.Add(56 * time.Minute)
		tok, err := m.AccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "app-2", tok)
		assert.Equal(t, int32(2), ex.appCalls.Load())
	})
}

func TestTokenManager_AccessToken_SingleFlight(t *testing.T) {
	now := epoch
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour), release: make(chan struct{})}
	m := newTestManager(ex, nil, &now)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.AccessToken(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	require.Eventually(t, func() bool { return ex.appCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	assert.Equal(t, int32(1), ex.appCalls.Load())
	for _, r := range results {
		assert.Equal(t, "app-1", r)
	}
}

// Callers released together without a gated exchanger must still share one
// exchange: late joiners find the token the finished flight stored.
func TestTokenManager_AccessToken_OneExchangeWithoutGate(t *testing.T) {
	const (
		rounds  = 200
		callers = 64
	)
	for round := 0; round < rounds; round++ {
		now := epoch
		ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
		m := newTestManager(ex, nil, &now)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				tok, err := m.AccessToken(context.Background())
				assert.NoError(t, err)
				assert.Equal(t, "app-1", tok)
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), ex.appCalls.Load(), "round %d", round)
	}
}

func TestTokenManager_UserToken_OneRefreshWithoutGate(t *testing.T) {
	const (
		rounds  = 200
		callers = 32
	)
	for round := 0; round < rounds; round++ {
		now := epoch
		store := NewMemoryTokenStore()
		require.NoError(t, store.Put(context.Background(), "seller-4", &Token{AccessToken: "old", RefreshToken: "rt", Expiry: epoch}))
		ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
		m := newTestManager(ex, store, &now)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				tok, err := m.UserAccessToken(context.Background(), "seller-4")
				assert.NoError(t, err)
				assert.Equal(t, "refreshed-1", tok)
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), ex.refreshCalls.Load(), "round %d", round)
	}
}

func TestTokenManager_ForcedRefreshAfterValidFlight(t *testing.T) {
	now := epoch
	store := NewMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(), "seller-5", &Token{AccessToken: "rejected", RefreshToken: "rt", Expiry: epoch.Add(time.Hour)}))
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
	m := newTestManager(ex, store, &now)
	ctx := context.Background()

	tok, err := m.UserAccessToken(ctx, "seller-5")
	require.NoError(t, err)
	assert.Equal(t, "rejected", tok)

	tok, err = m.RefreshUserToken(ctx, "seller-5")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", tok)

	tok, err = m.UserAccessToken(ctx, "seller-5")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", tok, "the refreshed token is cached")
	assert.Equal(t, int32(1), ex.refreshCalls.Load())
}

func TestTokenManager_SharedFailure(t *testing.T) {
	now := epoch
	boom := errors.New("token endpoint down")
	ex := &fakeExchanger{err: boom, release: make(chan struct{})}
	m := newTestManager(ex, nil, &now)

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := m.AccessToken(context.Background())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return ex.appCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ex.release)

	for i := 0; i < callers; i++ {
		assert.ErrorIs(t, <-errs, boom)
	}
	assert.Equal(t, int32(1), ex.appCalls.Load())
}

func TestTokenManager_UserToken(t *testing.T) {
	now := epoch
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
	store := NewMemoryTokenStore()
	m := newTestManager(ex, store, &now)
	ctx := context.Background()

	t.Run("unknown user must authorize", func(t *testing.T) {
		_, err := m.UserAccessToken(ctx, "seller-1")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
	})

	t.Run("authorize stores token", func(t *testing.T) {
		tok, err := m.Authorize(ctx, "seller-1", "abc")
		require.NoError(t, err)
		assert.Equal(t, "user-abc", tok.AccessToken)

		stored, err := store.Get(ctx, "seller-1")
		require.NoError(t, err)
		assert.Equal(t, "rt-abc", stored.RefreshToken)

		access, err := m.UserAccessToken(ctx, "seller-1")
		require.NoError(t, err)
		assert.Equal(t, "user-abc", access)
		assert.Equal(t, int32(0), ex.refreshCalls.Load())
	})

	t.Run("expired token is refreshed and keeps refresh token", func(t *testing.T) {
		now = epoch.Add(2 * time.Hour)
		ex.expiry = now.Add(time.Hour)

		access, err := m.UserAccessToken(ctx, "seller-1")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-1", access)
		assert.Equal(t, "rt-abc", ex.lastRefresh.Load())

		stored, err := store.Get(ctx, "seller-1")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-1", stored.AccessToken)
		assert.Equal(t, "rt-abc", stored.RefreshToken)
	})

	t.Run("forced refresh bypasses a valid cache", func(t *testing.T) {
		access, err := m.RefreshUserToken(ctx, "seller-1")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-2", access)
	})

	t.Run("revoke", func(t *testing.T) {
		require.NoError(t, m.Revoke(ctx, "seller-1"))
		_, err := m.UserAccessToken(ctx, "seller-1")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
		_, err = m.RefreshUserToken(ctx, "seller-1")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
	})
}

func TestTokenManager_UserToken_SurvivesRestart(t *testing.T) {
	now := epoch
	store := NewMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(), "seller-2", &Token{
		AccessToken:  "persisted",
		RefreshToken: "rt",
		Expiry:       epoch.Add(time.Hour),
	}))

	ex := &fakeExchanger{expiry: epoch.Add(time.Hour)}
	m := newTestManager(ex, store, &now)

	access, err := m.UserAccessToken(context.Background(), "seller-2")
	require.NoError(t, err)
	assert.Equal(t, "persisted", access)
	assert.Equal(t, int32(0), ex.refreshCalls.Load())
}

func TestTokenManager_ConcurrentRefresh(t *testing.T) {
	now := epoch
	store := NewMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(), "seller-3", &Token{AccessToken: "old", RefreshToken: "rt", Expiry: epoch}))
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour), release: make(chan struct{})}
	m := newTestManager(ex, store, &now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.UserAccessToken(context.Background(), "seller-3")
			assert.NoError(t, err)
			assert.Equal(t, "refreshed-1", tok)
		}()
	}
	require.Eventually(t, func() bool { return ex.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()
	assert.Equal(t, int32(1), ex.refreshCalls.Load())
}

func TestTokenManager_CallerCancellation(t *testing.T) {
	now := epoch
	ex := &fakeExchanger{expiry: epoch.Add(time.Hour), release: make(chan struct{})}
	m := newTestManager(ex, nil, &now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.AccessToken(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(ex.release)
	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-1", tok)
}

func TestTokenManager_AuthCodeURL(t *testing.T) {
	now := epoch
	m := newTestManager(&fakeExchanger{}, nil, &now)
	assert.Contains(t, m.AuthCodeURL("xyz"), "state=xyz")
}
