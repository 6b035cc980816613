package allegro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	mediaType = "application/vnd.allegro.public.v1+json"
	// maxResponseSize limits the response body read into memory
	maxResponseSize = 10 * 1024 * 1024
)

// Client is the marketplace offer API. It throttles outbound requests and
// never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter replaces the request limiter; nil disables throttling
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a Client for cfg.APIBaseURL
func NewClient(cfg config.AllegroConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Offers     []offer.RawPayload `json:"offers"`
	Count      int                `json:"count"`
	TotalCount int                `json:"totalCount"`
}

// ListOffers returns one page of the seller's offers
func (c *Client) ListOffers(ctx context.Context, token string, params offer.ListParams) (*offer.OfferPage, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	q.Set("offset", strconv.Itoa(params.Offset))

	var resp listResponse
	if err := c.do(ctx, token, http.MethodGet, "/sale/offers", q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Offers == nil {
		resp.Offers = []offer.RawPayload{}
	}
	return &offer.OfferPage{Offers: resp.Offers, TotalCount: resp.TotalCount}, nil
}

// GetOffer returns the full offer document
func (c *Client) GetOffer(ctx context.Context, token, externalID string) (offer.RawPayload, error) {
	var out offer.RawPayload
	err := c.do(ctx, token, http.MethodGet, "/sale/product-offers/"+url.PathEscape(externalID), nil, nil, &out)
	return out, err
}

// CreateOffer creates an offer and returns the marketplace's copy
func (c *Client) CreateOffer(ctx context.Context, token string, payload offer.RawPayload) (offer.RawPayload, error) {
	var out offer.RawPayload
	err := c.do(ctx, token, http.MethodPost, "/sale/product-offers", nil, payload, &out)
	return out, err
}

// UpdateOffer sends a partial update. The payload must already carry every
// field the marketplace requires on PATCH.
func (c *Client) UpdateOffer(ctx context.Context, token, externalID string, payload offer.RawPayload) (offer.RawPayload, error) {
	var out offer.RawPayload
	err := c.do(ctx, token, http.MethodPatch, "/sale/product-offers/"+url.PathEscape(externalID), nil, payload, &out)
	return out, err
}

// DeleteOffer deletes a draft offer
func (c *Client) DeleteOffer(ctx context.Context, token, externalID string) error {
	return c.do(ctx, token, http.MethodDelete, "/sale/offers/"+url.PathEscape(externalID), nil, nil, nil)
}

// SetStock changes only the available quantity
func (c *Client) SetStock(ctx context.Context, token, externalID string, quantity int) error {
	return c.do(ctx, token, http.MethodPatch, "/sale/product-offers/"+url.PathEscape(externalID), nil,
		offer.StockPayload(quantity), nil)
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: waiting for rate limiter: %v", offer.ErrTimeout, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", offer.ErrMalformedPayload, err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("allegro: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", mediaType)
	if body != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s: %v", offer.ErrTimeout, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", offer.ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s %s: %v", offer.ErrTimeout, method, path, err)
		}
		return fmt.Errorf("allegro: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(data)}
		c.logger.Debug("Marketplace request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("allegro: failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

var _ offer.MarketplaceClient = (*Client)(nil)
