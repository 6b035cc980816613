package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 2; i >= 0; i-- {
		ok, remaining := rl.Allow("a")
		assert.True(t, ok)
		assert.Equal(t, i, remaining)
	}
	ok, _ := rl.Allow("a")
	assert.False(t, ok, "bucket exhausted")

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(30 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "tokens refill over the window")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(90 * time.Second)
	rl.Allow("busy")
	now = now.Add(45 * time.Second)
	rl.Cleanup()

	assert.NotContains(t, rl.clients, "idle")
	assert.Contains(t, rl.clients, "busy")
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(2, time.Hour)))
	router.GET("/offers", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(seller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if seller != "" {
			req.Header.Set("X-User-ID", seller)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("").Code)
	w := send("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send("")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("seller-1").Code, "sellers behind one address get their own budget")
}
