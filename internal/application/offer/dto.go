package offerapp

import (
	"github.com/shopspring/decimal"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// PreviewItem is one marketplace offer as it would be imported
type PreviewItem struct {
	ExternalID        string                  `json:"external_id"`
	Title             string                  `json:"title"`
	CategoryID        string                  `json:"category_id"`
	Price             decimal.Decimal         `json:"price"`
	Currency          string                  `json:"currency"`
	StockQuantity     *int                    `json:"stock_quantity"`
	PublicationStatus offer.PublicationStatus `json:"publication_status"`
	ImageCount        int                     `json:"image_count"`
	// Exists is true when a local offer with the same external id is stored
	Exists bool `json:"exists"`
}

// ImportPreview is the full listing, nothing written
type ImportPreview struct {
	Items      []PreviewItem `json:"items"`
	TotalCount int           `json:"total_count"`
}

// ImportFailure records one item that could not be imported
type ImportFailure struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// ImportSummary counts the outcome of an import run
type ImportSummary struct {
	Scanned  int             `json:"scanned"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

func (s *ImportSummary) fail(externalID string, err error) {
	s.Failed++
	s.Failures = append(s.Failures, ImportFailure{ExternalID: externalID, Message: err.Error()})
}

// ReconcileReport is the outcome of a stock reconciliation run
type ReconcileReport struct {
	Products  int              `json:"products"`
	Changed   int              `json:"changed"`
	Unchanged int              `json:"unchanged"`
	Items     []ReconcileEntry `json:"items"`
}

// ReconcileEntry is the resolution for one product
type ReconcileEntry struct {
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	Previous       int    `json:"previous"`
	Resolved       int    `json:"resolved"`
	WinningSource  string `json:"winning_source"`
	Candidates     int    `json:"candidates"`
	OffersUpdated  int    `json:"offers_updated"`
	WarehouseError string `json:"warehouse_error,omitempty"`
}
