package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// OfferModel is the persistence model for the Offer entity
type OfferModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	ExternalID        string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_offers_external_id"`
	Title             string          `gorm:"type:varchar(255)"`
	Description       string          `gorm:"type:text"`
	CategoryID        string          `gorm:"type:varchar(64)"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Currency          string          `gorm:"type:varchar(3);not null;default:'PLN'"`
	StockQuantity     *int
	Status            string     `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	PublicationStatus string     `gorm:"type:varchar(20)"`
	ImagesJSON        string     `gorm:"type:jsonb;column:images"`
	DeliveryJSON      string     `gorm:"type:jsonb;column:delivery_options"`
	PaymentJSON       string     `gorm:"type:jsonb;column:payment_options"`
	RawDataJSON       string     `gorm:"type:jsonb;column:raw_data"`
	ValidationStatus  string     `gorm:"type:varchar(20);not null;default:'ERRORS';index"`
	ValidationJSON    string     `gorm:"type:jsonb;column:validation_errors"`
	LastValidatedAt   *time.Time
	SyncStatus        string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	SyncSource        string     `gorm:"type:varchar(20);not null;default:'MANUAL'"`
	SyncError         string     `gorm:"type:text"`
	LastSyncedAt      *time.Time
	ProductID         *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OfferModel) TableName() string {
	return "offers"
}

// ToDomain converts the persistence model to a domain Offer
func (m *OfferModel) ToDomain() *offer.Offer {
	o := &offer.Offer{
		ID:                m.ID,
		ExternalID:        m.ExternalID,
		Title:             m.Title,
		Description:       m.Description,
		CategoryID:        m.CategoryID,
		Price:             m.Price,
		Currency:          m.Currency,
		StockQuantity:     m.StockQuantity,
		Status:            offer.Status(m.Status),
		PublicationStatus: offer.PublicationStatus(m.PublicationStatus),
		Images:            make([]string, 0),
		ValidationStatus:  offer.ValidationStatus(m.ValidationStatus),
		ValidationErrors:  make([]offer.ValidationError, 0),
		LastValidatedAt:   m.LastValidatedAt,
		SyncStatus:        offer.SyncStatus(m.SyncStatus),
		SyncSource:        offer.SyncSource(m.SyncSource),
		SyncError:         m.SyncError,
		LastSyncedAt:      m.LastSyncedAt,
		ProductID:         m.ProductID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}

	decodeJSON(m.ImagesJSON, &o.Images)
	decodeJSON(m.DeliveryJSON, &o.DeliveryOptions)
	decodeJSON(m.PaymentJSON, &o.PaymentOptions)
	decodeJSON(m.ValidationJSON, &o.ValidationErrors)
	var raw map[string]any
	if decodeJSON(m.RawDataJSON, &raw) {
		o.RawData = raw
	}
	return o
}

// FromDomain populates the persistence model from a domain Offer
func (m *OfferModel) FromDomain(o *offer.Offer) {
	m.ID = o.ID
	m.ExternalID = o.ExternalID
	m.Title = o.Title
	m.Description = o.Description
	m.CategoryID = o.CategoryID
	m.Price = o.Price
	m.Currency = o.Currency
	m.StockQuantity = o.StockQuantity
	m.Status = string(o.Status)
	m.PublicationStatus = string(o.PublicationStatus)
	m.ImagesJSON = encodeJSON(o.Images, "[]")
	m.DeliveryJSON = encodeJSON(o.DeliveryOptions, "null")
	m.PaymentJSON = encodeJSON(o.PaymentOptions, "null")
	m.RawDataJSON = encodeJSON(o.RawData, "null")
	m.ValidationStatus = string(o.ValidationStatus)
	m.ValidationJSON = encodeJSON(o.ValidationErrors, "[]")
	m.LastValidatedAt = o.LastValidatedAt
	m.SyncStatus = string(o.SyncStatus)
	m.SyncSource = string(o.SyncSource)
	m.SyncError = o.SyncError
	m.LastSyncedAt = o.LastSyncedAt
	m.ProductID = o.ProductID
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}

// OfferModelFromDomain creates a new persistence model from a domain Offer
func OfferModelFromDomain(o *offer.Offer) *OfferModel {
	m := &OfferModel{}
	m.FromDomain(o)
	return m
}

// EncodeRawData serializes a raw snapshot for a column update
func EncodeRawData(raw offer.RawPayload) string {
	return encodeJSON(raw, "null")
}

// encodeJSON serializes v; nil maps and slices become fallback.
func encodeJSON(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case []string:
		if t == nil {
			return fallback
		}
	case []offer.ValidationError:
		if t == nil {
			return fallback
		}
	case map[string]any:
		if t == nil {
			return fallback
		}
	case offer.RawPayload:
		if t == nil {
			return fallback
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

// decodeJSON reports whether s held a non-null document that decoded into v.
func decodeJSON(s string, v any) bool {
	if s == "" || s == "null" {
		return false
	}
	return json.Unmarshal([]byte(s), v) == nil
}
