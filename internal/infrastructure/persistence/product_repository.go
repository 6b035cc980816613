package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements offer.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by id
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Product, error) {
	return r.first(ctx, "id = ?", id)
}

// FindBySKU finds a product by its normalized SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*offer.Product, error) {
	return r.first(ctx, "sku = ?", offer.NormalizeSKU(sku))
}

// FindLinked returns products referenced by at least one offer
func (r *GormProductRepository) FindLinked(ctx context.Context) ([]offer.Product, error) {
	linked := r.db.Model(&models.OfferModel{}).
		Select("product_id").
		Where("product_id IS NOT NULL")

	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", linked).
		Order("sku ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]offer.Product, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts or overwrites the product
func (r *GormProductRepository) Save(ctx context.Context, p *offer.Product) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(models.ProductModelFromDomain(p)).Error
}

func (r *GormProductRepository) first(ctx context.Context, query string, arg any) (*offer.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, offer.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormProductRepository implements offer.ProductRepository
var _ offer.ProductRepository = (*GormProductRepository)(nil)
