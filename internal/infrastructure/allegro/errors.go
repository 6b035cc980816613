package allegro

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"unicode/utf8"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// APIError is a non-2xx answer from the marketplace. It keeps the raw body
// so callers can show the marketplace's own validation messages.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("allegro: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 512))
}

// Unwrap returns the offer sentinel matching the status code
func (e *APIError) Unwrap() error {
	return sentinelForStatus(e.StatusCode)
}

func sentinelForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return offer.ErrUnauthorized
	case code == http.StatusNotFound:
		return offer.ErrRemoteNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return offer.ErrRemoteValidation
	case code == http.StatusTooManyRequests:
		return offer.ErrRateLimited
	case code >= 500:
		return offer.ErrRemoteUnavailable
	default:
		return nil
	}
}

// RemoteBody returns the marketplace error body carried by err, if any
func RemoteBody(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body, true
	}
	return "", false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
