package offer

import (
	"context"

	"github.com/google/uuid"
)

// OfferFilter narrows offer listings
type OfferFilter struct {
	Page             int
	PageSize         int
	Search           string
	ValidationStatus ValidationStatus
	SyncStatus       SyncStatus
	PublicationState PublicationStatus
	ProductID        *uuid.UUID
	// OrderBy and OrderDir select the listing order; unknown values fall back
	// to the most recently updated first
	OrderBy  string
	OrderDir string
}

// DefaultOfferFilter returns the first page of 20 offers
func DefaultOfferFilter() OfferFilter {
	return OfferFilter{Page: 1, PageSize: 20}
}

// Offset returns the row offset of the requested page
func (f OfferFilter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// OfferRepository persists offers. The external id is unique.
type OfferRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	FindByExternalID(ctx context.Context, externalID string) (*Offer, error)
	FindAll(ctx context.Context, filter OfferFilter) ([]Offer, error)
	Count(ctx context.Context, filter OfferFilter) (int64, error)
	// FindByProductID returns every offer linked to the product
	FindByProductID(ctx context.Context, productID uuid.UUID) ([]Offer, error)
	// Save inserts or updates the whole row
	Save(ctx context.Context, o *Offer) error
	// UpdateSyncState changes only the sync fields (and the raw snapshot when
	// state.RawData is set). Background tasks use nothing else.
	UpdateSyncState(ctx context.Context, id uuid.UUID, state SyncState) error
}

// ProductRepository persists products
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	// FindLinked returns products that at least one offer links to
	FindLinked(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, p *Product) error
}
