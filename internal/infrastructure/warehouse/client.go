package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	// ErrNoWarehouse is returned when neither the product nor the config names a warehouse
	ErrNoWarehouse = errors.New("warehouse: no warehouse id")
	// ErrRejected is a 4xx answer from the warehouse service
	ErrRejected = errors.New("warehouse: stock update rejected")
	// ErrUnavailable is a transport failure or 5xx answer
	ErrUnavailable = errors.New("warehouse: service unavailable")
)

// Client pushes stock levels to the warehouse service
type Client struct {
	baseURL          string
	apiKey           string
	defaultWarehouse string
	httpClient       *http.Client
	logger           *zap.Logger
}

var _ offer.WarehouseStockService = (*Client)(nil)

// NewClient creates a warehouse client. With an empty base URL every call is
// a logged no-op.
func NewClient(cfg config.WarehouseConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		defaultWarehouse: cfg.DefaultWarehouseID,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		logger:           logger,
	}
}

// Enabled reports whether a warehouse service is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type stockRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
}

// SetStock sets the absolute stock of a product in a warehouse
func (c *Client) SetStock(ctx context.Context, productID uuid.UUID, warehouseID string, quantity int, reason string) error {
	if !c.Enabled() {
		c.logger.Debug("Warehouse service not configured, skipping stock update",
			zap.String("product_id", productID.String()),
		)
		return nil
	}
	if warehouseID == "" {
		warehouseID = c.defaultWarehouse
	}
	if warehouseID == "" {
		return ErrNoWarehouse
	}

	body, err := json.Marshal(stockRequest{
		ProductID:   productID.String(),
		WarehouseID: warehouseID,
		Quantity:    quantity,
		Reason:      reason,
	})
	if err != nil {
		return fmt.Errorf("warehouse: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/v1/stock", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("warehouse: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
