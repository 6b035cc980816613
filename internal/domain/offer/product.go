package offer

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Product Entity
// ---------------------------------------------------------------------------

// Product is the local SKU-level record an offer may be linked to.
// Its stock mirrors the linked offer's stock when stock changes propagate.
type Product struct {
	// ID is the unique identifier of this product
	ID uuid.UUID
	// SKU is the normalized stock keeping unit
	SKU string
	// EAN is the normalized barcode, empty when unknown
	EAN string
	// Name is a display name
	Name string
	// StockQuantity is the last known stock
	StockQuantity int
	// TrackStock enables propagation to the warehouse service
	TrackStock bool
	// WarehouseID selects the warehouse for propagation, empty means the configured default
	WarehouseID string
	// ExternalProductID is the marketplace catalog product id, when known
	ExternalProductID string
	// StockUpdatedAt is when StockQuantity last changed
	StockUpdatedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProduct creates a product with a normalized SKU and EAN
func NewProduct(sku, ean, name string) (*Product, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	now := time.Now()
	return &Product{
		ID:        uuid.New(),
		SKU:       sku,
		EAN:       NormalizeEAN(ean),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetStock mirrors a new stock quantity onto the product
func (p *Product) SetStock(quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	now := time.Now()
	p.StockQuantity = quantity
	p.StockUpdatedAt = &now
	p.UpdatedAt = now
	return nil
}

// StockReport returns the product's own claim about its stock
func (p *Product) StockReport() StockReport {
	r := StockReport{Key: p.ID.String(), Source: "product", Quantity: p.StockQuantity}
	if p.StockUpdatedAt != nil {
		r.ReportedAt = *p.StockUpdatedAt
	} else {
		r.ReportedAt = p.UpdatedAt
	}
	return r
}
