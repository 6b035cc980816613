package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// ProductModel is the persistence model for the Product entity
type ProductModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	SKU               string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_sku"`
	EAN               string    `gorm:"type:varchar(14);index"`
	Name              string    `gorm:"type:varchar(255)"`
	StockQuantity     int       `gorm:"not null;default:0"`
	TrackStock        bool      `gorm:"not null;default:false"`
	WarehouseID       string    `gorm:"type:varchar(64)"`
	ExternalProductID string    `gorm:"type:varchar(64)"`
	StockUpdatedAt    *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *offer.Product {
	return &offer.Product{
		ID:                m.ID,
		SKU:               m.SKU,
		EAN:               m.EAN,
		Name:              m.Name,
		StockQuantity:     m.StockQuantity,
		TrackStock:        m.TrackStock,
		WarehouseID:       m.WarehouseID,
		ExternalProductID: m.ExternalProductID,
		StockUpdatedAt:    m.StockUpdatedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *offer.Product) *ProductModel {
	return &ProductModel{
		ID:                p.ID,
		SKU:               p.SKU,
		EAN:               p.EAN,
		Name:              p.Name,
		StockQuantity:     p.StockQuantity,
		TrackStock:        p.TrackStock,
		WarehouseID:       p.WarehouseID,
		ExternalProductID: p.ExternalProductID,
		StockUpdatedAt:    p.StockUpdatedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
