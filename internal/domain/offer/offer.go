package offer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Status enums
// ---------------------------------------------------------------------------

// ValidationStatus is the publish-readiness classification of an offer
type ValidationStatus string

const (
	ValidationStatusReady    ValidationStatus = "READY"
	ValidationStatusWarnings ValidationStatus = "WARNINGS"
	ValidationStatusErrors   ValidationStatus = "ERRORS"
)

// IsValid checks if the validation status is valid
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationStatusReady, ValidationStatusWarnings, ValidationStatusErrors:
		return true
	}
	return false
}

// SyncStatus tracks propagation of a local write to the marketplace
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSynced  SyncStatus = "SYNCED"
	SyncStatusError   SyncStatus = "ERROR"
)

// IsValid checks if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusError:
		return true
	}
	return false
}

// SyncSource tags where the current offer data came from
type SyncSource string

const (
	SyncSourceManual      SyncSource = "MANUAL"
	SyncSourceAllegroAPI  SyncSource = "ALLEGRO_API"
	SyncSourceSalesCenter SyncSource = "SALES_CENTER"
)

// IsValid checks if the sync source is valid
func (s SyncSource) IsValid() bool {
	switch s {
	case SyncSourceManual, SyncSourceAllegroAPI, SyncSourceSalesCenter:
		return true
	}
	return false
}

// PublicationStatus is the marketplace publication state of a listing
type PublicationStatus string

const (
	PublicationStatusInactive   PublicationStatus = "INACTIVE"
	PublicationStatusActivating PublicationStatus = "ACTIVATING"
	PublicationStatusActive     PublicationStatus = "ACTIVE"
	PublicationStatusEnded      PublicationStatus = "ENDED"
)

// Status is the local lifecycle state of an offer
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusEnded    Status = "ENDED"
)

// statusFromPublication derives the local lifecycle state from the marketplace publication state.
func statusFromPublication(p PublicationStatus) Status {
	switch p {
	case PublicationStatusActive, PublicationStatusActivating:
		return StatusActive
	case PublicationStatusEnded:
		return StatusEnded
	case PublicationStatusInactive:
		return StatusInactive
	default:
		return StatusDraft
	}
}

// ---------------------------------------------------------------------------
// Offer Entity
// ---------------------------------------------------------------------------

// Offer is the local record of a marketplace listing.
// RawData is the last-known-good marketplace snapshot; structured fields are
// a projection of it plus local edits that are still being propagated.
type Offer struct {
	ID                uuid.UUID
	ExternalID        string
	Title             string
	Description       string
	CategoryID        string
	Price             decimal.Decimal
	Currency          string
	StockQuantity     *int
	Status            Status
	PublicationStatus PublicationStatus
	Images            []string
	DeliveryOptions   map[string]any
	PaymentOptions    map[string]any
	RawData           RawPayload

	ValidationStatus ValidationStatus
	ValidationErrors []ValidationError
	LastValidatedAt  *time.Time

	SyncStatus   SyncStatus
	SyncSource   SyncSource
	SyncError    string
	LastSyncedAt *time.Time

	// ProductID links the offer to a local product; it is local-only data
	ProductID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOffer creates an empty offer for the given marketplace id
func NewOffer(externalID string, source SyncSource) (*Offer, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrInvalidExternalID
	}
	if !source.IsValid() {
		source = SyncSourceManual
	}
	now := time.Now()
	return &Offer{
		ID:               uuid.New(),
		ExternalID:       externalID,
		Currency:         DefaultCurrency,
		Status:           StatusDraft,
		Images:           make([]string, 0),
		ValidationStatus: ValidationStatusErrors,
		ValidationErrors: make([]ValidationError, 0),
		SyncStatus:       SyncStatusPending,
		SyncSource:       source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// DefaultCurrency is used when the marketplace omits the price currency
const DefaultCurrency = "PLN"

// ApplyImport overwrites marketplace-owned fields with freshly extracted data.
// Local-only fields (id, product link, creation time) are preserved.
func (o *Offer) ApplyImport(x ExtractedOffer, raw RawPayload, source SyncSource) {
	now := time.Now()
	o.Title = x.Title
	o.Description = x.Description
	o.CategoryID = x.CategoryID
	o.Price = x.Price
	o.Currency = x.Currency
	o.StockQuantity = x.StockQuantity
	o.PublicationStatus = x.PublicationStatus
	o.Status = statusFromPublication(x.PublicationStatus)
	o.Images = x.Images
	o.DeliveryOptions = x.DeliveryOptions
	o.PaymentOptions = x.PaymentOptions
	o.RawData = raw.Clone()
	if source.IsValid() {
		o.SyncSource = source
	}
	o.SyncStatus = SyncStatusSynced
	o.SyncError = ""
	o.LastSyncedAt = &now
	o.UpdatedAt = now
}

// ApplyPatch applies a local edit to the structured fields.
// The raw snapshot is left alone until the marketplace accepts the change.
func (o *Offer) ApplyPatch(p OfferPatch) error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return ErrInvalidQuantity
	}
	if p.Title != nil {
		o.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.CategoryID != nil {
		o.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
	if p.Currency != nil {
		o.Currency = *p.Currency
	}
	if p.StockQuantity != nil {
		qty := *p.StockQuantity
		o.StockQuantity = &qty
	}
	if p.Images != nil {
		o.Images = append(make([]string, 0, len(p.Images)), p.Images...)
	}
	if p.PublicationStatus != nil {
		o.PublicationStatus = *p.PublicationStatus
		o.Status = statusFromPublication(*p.PublicationStatus)
	}
	if p.DeliveryOptions != nil {
		o.DeliveryOptions = cloneMap(p.DeliveryOptions)
	}
	if p.PaymentOptions != nil {
		o.PaymentOptions = cloneMap(p.PaymentOptions)
	}
	o.UpdatedAt = time.Now()
	return nil
}

// SetStock changes the stock quantity
func (o *Offer) SetStock(quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	o.StockQuantity = &quantity
	o.UpdatedAt = time.Now()
	return nil
}

// MarkSyncPending records that a local write awaits propagation
func (o *Offer) MarkSyncPending() {
	o.SyncStatus = SyncStatusPending
	o.SyncError = ""
	o.UpdatedAt = time.Now()
}

// ApplyValidation replaces the validation outcome wholesale
func (o *Offer) ApplyValidation(r ValidationResult) {
	now := time.Now()
	o.ValidationStatus = r.Status
	o.ValidationErrors = append(make([]ValidationError, 0, len(r.Errors)), r.Errors...)
	o.LastValidatedAt = &now
}

// LinkProduct links the offer to a local product
func (o *Offer) LinkProduct(productID uuid.UUID) {
	o.ProductID = &productID
	o.UpdatedAt = time.Now()
}

// Stock returns the stock quantity, or zero when unknown
func (o *Offer) Stock() int {
	if o.StockQuantity == nil {
		return 0
	}
	return *o.StockQuantity
}

// SyncState is the set of fields a background propagation task may change
type SyncState struct {
	Status   SyncStatus
	Error    string
	SyncedAt *time.Time
	// RawData replaces the stored snapshot when not nil
	RawData RawPayload
}
