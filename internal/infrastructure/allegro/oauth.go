package allegro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenExchanger performs OAuth grants against the marketplace token endpoint
type TokenExchanger interface {
	ClientCredentials(ctx context.Context) (*Token, error)
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	AuthCodeURL(state string) string
}

// OAuthExchanger implements TokenExchanger with golang.org/x/oauth2
type OAuthExchanger struct {
	authCode   *oauth2.Config
	app        *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthExchanger builds the grant configs from the marketplace settings
func NewOAuthExchanger(cfg config.AllegroConfig, httpClient *http.Client) *OAuthExchanger {
	base := strings.TrimRight(cfg.AuthBaseURL, "/")
	endpoint := oauth2.Endpoint{
		AuthURL:   base + "/authorize",
		TokenURL:  base + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &OAuthExchanger{
		authCode: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		app: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     endpoint.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AuthCodeURL returns the URL a seller opens to grant access
func (e *OAuthExchanger) AuthCodeURL(state string) string {
	return e.authCode.AuthCodeURL(state)
}

// ClientCredentials obtains the application token
func (e *OAuthExchanger) ClientCredentials(ctx context.Context) (*Token, error) {
	t, err := e.app.Token(e.withClient(ctx))
	if err != nil {
		return nil, classifyOAuthError("client credentials", err, offer.ErrUnauthorized)
	}
	return fromOAuth2(t, e.now()), nil
}

// ExchangeCode trades an authorization code for a user token
func (e *OAuthExchanger) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	t, err := e.authCode.Exchange(e.withClient(ctx), code)
	if err != nil {
		return nil, classifyOAuthError("authorization code", err, offer.ErrOAuthRequired)
	}
	return fromOAuth2(t, e.now()), nil
}

// Refresh redeems a refresh token. The previous refresh token is kept when
// the response does not rotate it.
func (e *OAuthExchanger) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, offer.ErrOAuthRequired
	}
	src := e.authCode.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	t, err := src.Token()
	if err != nil {
		return nil, classifyOAuthError("refresh token", err, offer.ErrOAuthRequired)
	}
	return fromOAuth2(t, e.now()), nil
}

func (e *OAuthExchanger) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// classifyOAuthError maps a token endpoint failure: rejected grants become
// rejected, 5xx becomes ErrRemoteUnavailable, timeouts ErrTimeout.
func classifyOAuthError(grant string, err error, rejected error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; {
		case code >= 500:
			return fmt.Errorf("%w: %s grant: %v", offer.ErrRemoteUnavailable, grant, err)
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s grant: %v", offer.ErrRateLimited, grant, err)
		default:
			return fmt.Errorf("%w: %s grant: %v", rejected, grant, err)
		}
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s grant: %v", offer.ErrTimeout, grant, err)
	}
	return fmt.Errorf("allegro: %s grant: %w", grant, err)
}
