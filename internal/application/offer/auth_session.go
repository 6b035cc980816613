package offerapp

import (
	"context"
	"fmt"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"go.uber.org/zap"
)

// authSession spans one logical operation (an import run, a validation).
// The first auth failure forces a single token refresh and the failed call is
// repeated; any later auth failure ends the operation with ErrOAuthRequired.
type authSession struct {
	tokens offer.TokenProvider
	userID string
	logger *zap.Logger

	token            string
	refreshAttempted bool
}

func newAuthSession(tokens offer.TokenProvider, userID string, logger *zap.Logger) *authSession {
	return &authSession{tokens: tokens, userID: userID, logger: logger}
}

func (a *authSession) current(ctx context.Context) (string, error) {
	if a.token != "" {
		return a.token, nil
	}
	var (
		token string
		err   error
	)
	if a.userID == "" {
		token, err = a.tokens.AccessToken(ctx)
	} else {
		token, err = a.tokens.UserAccessToken(ctx, a.userID)
	}
	if err != nil {
		return "", err
	}
	a.token = token
	return token, nil
}

// call runs fn with the session token
func (a *authSession) call(ctx context.Context, fn func(token string) error) error {
	token, err := a.current(ctx)
	if err != nil {
		return err
	}

	err = fn(token)
	if !offer.IsAuthError(err) {
		return err
	}
	if a.userID == "" {
		// application credentials cannot be re-authorized by the seller
		return err
	}
	if a.refreshAttempted {
		return fmt.Errorf("%w: %v", offer.ErrOAuthRequired, err)
	}

	a.refreshAttempted = true
	a.logger.Info("Marketplace rejected token, forcing refresh", zap.String("user_id", a.userID))
	token, err = a.tokens.RefreshUserToken(ctx, a.userID)
	if err != nil {
		return err
	}
	a.token = token

	err = fn(token)
	if offer.IsAuthError(err) {
		return fmt.Errorf("%w: %v", offer.ErrOAuthRequired, err)
	}
	return err
}
