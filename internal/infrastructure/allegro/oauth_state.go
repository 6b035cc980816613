package allegro

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidState is returned when an authorize callback carries a state that
// was not issued here, was tampered with or has expired.
var ErrInvalidState = errors.New("allegro: invalid authorization state")

// stateLifetime bounds the time between authorize redirect and callback
const stateLifetime = 10 * time.Minute

const stateIssuer = "allegro-service"

// StateSigner issues and verifies the OAuth state parameter. The state is a
// short-lived HS256 token naming the seller, so the callback can be matched
// to the seller without server-side session storage.
type StateSigner struct {
	key []byte
	now func() time.Time
}

// NewStateSigner creates a signer. The client secret is a suitable key.
func NewStateSigner(key string) *StateSigner {
	return &StateSigner{key: []byte(key), now: time.Now}
}

// Issue returns a signed state for the seller
func (s *StateSigner) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidState)
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the state and returns the seller it was issued for
func (s *StateSigner) Verify(state string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidState)
	}
	return claims.Subject, nil
}
