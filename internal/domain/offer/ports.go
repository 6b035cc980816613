package offer

import (
	"context"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Marketplace
// ---------------------------------------------------------------------------

// ListParams is the offset cursor for listing offers
type ListParams struct {
	Limit  int
	Offset int
}

// OfferPage is one page of the marketplace listing
type OfferPage struct {
	Offers     []RawPayload
	TotalCount int
}

// MarketplaceClient is the marketplace REST API. Implementations perform no
// retries; errors wrap the sentinels in errors.go.
type MarketplaceClient interface {
	ListOffers(ctx context.Context, token string, params ListParams) (*OfferPage, error)
	GetOffer(ctx context.Context, token, externalID string) (RawPayload, error)
	CreateOffer(ctx context.Context, token string, payload RawPayload) (RawPayload, error)
	UpdateOffer(ctx context.Context, token, externalID string, payload RawPayload) (RawPayload, error)
	DeleteOffer(ctx context.Context, token, externalID string) error
	SetStock(ctx context.Context, token, externalID string, quantity int) error
}

// TokenProvider hands out marketplace access tokens
type TokenProvider interface {
	// AccessToken returns the application token (client-credentials)
	AccessToken(ctx context.Context) (string, error)
	// UserAccessToken returns the cached or refreshed token of a seller
	UserAccessToken(ctx context.Context, userID string) (string, error)
	// RefreshUserToken bypasses the cache
	RefreshUserToken(ctx context.Context, userID string) (string, error)
}

// ---------------------------------------------------------------------------
// Warehouse
// ---------------------------------------------------------------------------

// WarehouseStockService is the external stock/warehouse system
type WarehouseStockService interface {
	SetStock(ctx context.Context, productID uuid.UUID, warehouseID string, quantity int, reason string) error
}

// ---------------------------------------------------------------------------
// Background propagation
// ---------------------------------------------------------------------------

// WriteMode selects how a local change is written to the marketplace
type WriteMode string

const (
	// WriteModeFull sends the complete transformed payload
	WriteModeFull WriteMode = "FULL"
	// WriteModeStockOnly sends only the stock quantity
	WriteModeStockOnly WriteMode = "STOCK_ONLY"
)

// RemoteWrite is a pending marketplace write for one offer
type RemoteWrite struct {
	OfferID    uuid.UUID
	ExternalID string
	// UserID selects the seller token; empty uses the application token
	UserID string
	Mode   WriteMode
	// Payload is the full update document (WriteModeFull)
	Payload RawPayload
	// Quantity is the new stock (WriteModeStockOnly)
	Quantity int
}

// RemoteWriteDispatcher accepts remote writes for background execution.
// Dispatch must not block on the marketplace call.
type RemoteWriteDispatcher interface {
	Dispatch(ctx context.Context, w RemoteWrite) error
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

// ArtifactStorage keeps write-once documents such as migration artifacts.
// Put fails with ErrArtifactExists instead of overwriting or appending.
type ArtifactStorage interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Exists(ctx context.Context, name string) (bool, error)
}
