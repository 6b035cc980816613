package allegro

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedAccessToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_name": "seller-login",
		"scope":     []string{"allegro:api:sale:offers:read", "allegro:api:sale:offers:write"},
		"exp":       exp.Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*OAuthExchanger, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	ex := NewOAuthExchanger(config.AllegroConfig{
		ClientID:       "client",
		ClientSecret:   "secret",
		RedirectURL:    "https://service.example/callback",
		AuthBaseURL:    srv.URL + "/auth/oauth",
		RequestTimeout: 5 * time.Second,
	}, srv.Client())
	return ex, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestOAuthExchanger_ClientCredentials(t *testing.T) {
	ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/oauth/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "app-token",
			"token_type":   "bearer",
			"expires_in":   3600,
			"scope":        "allegro:api:sale:offers:read",
		})
	})

	tok, err := ex.ClientCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok.AccessToken)
	assert.Equal(t, []string{"allegro:api:sale:offers:read"}, tok.Scopes)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
}

func TestOAuthExchanger_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	access := signedAccessToken(t, exp)
	ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
		})
	})

	tok, err := ex.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "seller-login", tok.UserName)
	assert.True(t, exp.Equal(tok.Expiry))
	assert.Len(t, tok.Scopes, 2)
}

func TestOAuthExchanger_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "new", "token_type": "bearer", "expires_in": 600})
		})
		tok, err := ex.Refresh(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
	})

	t.Run("invalid grant requires re-authorization", func(t *testing.T) {
		ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		})
		_, err := ex.Refresh(context.Background(), "stale")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
	})

	t.Run("server error is transient", func(t *testing.T) {
		ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream"})
		})
		_, err := ex.Refresh(context.Background(), "rt")
		assert.ErrorIs(t, err, offer.ErrRemoteUnavailable)
		assert.False(t, offer.IsAuthError(err))
	})

	t.Run("missing refresh token", func(t *testing.T) {
		ex, _ := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("token endpoint must not be called")
		})
		_, err := ex.Refresh(context.Background(), "")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
	})
}

func TestOAuthExchanger_AuthCodeURL(t *testing.T) {
	ex, srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {})
	u := ex.AuthCodeURL("state-1")
	assert.Contains(t, u, srv.URL+"/auth/oauth/authorize?")
	assert.Contains(t, u, "state=state-1")
	assert.Contains(t, u, "client_id=client")
	assert.Contains(t, u, "response_type=code")
}

func TestToken_Valid(t *testing.T) {
	tok := &Token{AccessToken: "a", Expiry: epoch.Add(10 * time.Minute)}
	assert.True(t, tok.Valid(epoch, 5*time.Minute))
	assert.False(t, tok.Valid(epoch.Add(5*time.Minute), 5*time.Minute))
	assert.False(t, (*Token)(nil).Valid(epoch, 0))
	assert.False(t, (&Token{Expiry: epoch.Add(time.Hour)}).Valid(epoch, 0))
}

func TestParseClaims_Opaque(t *testing.T) {
	assert.Nil(t, parseClaims("opaque-token"))
}
