package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOfferRepository implements offer.OfferRepository using GORM
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// FindByID finds an offer by its local id
func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	var model models.OfferModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, offer.ErrOfferNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds an offer by its marketplace id
func (r *GormOfferRepository) FindByExternalID(ctx context.Context, externalID string) (*offer.Offer, error) {
	var model models.OfferModel
	if err := r.db.WithContext(ctx).First(&model, "external_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, offer.ErrOfferNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists offers, newest change first unless the filter names another
// order. A zero page size returns every match.
func (r *GormOfferRepository) FindAll(ctx context.Context, filter offer.OfferFilter) ([]offer.Offer, error) {
	sortField := ValidateSortField(filter.OrderBy, OfferSortFields, "updated_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OfferModel{}), filter).
		Order(sortField + " " + sortOrder).Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.OfferModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOffers(rows), nil
}

// Count counts offers matching the filter
func (r *GormOfferRepository) Count(ctx context.Context, filter offer.OfferFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OfferModel{}), filter).Count(&count).Error
	return count, err
}

// FindByProductID returns every offer linked to a product
func (r *GormOfferRepository) FindByProductID(ctx context.Context, productID uuid.UUID) ([]offer.Offer, error) {
	var rows []models.OfferModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("external_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOffers(rows), nil
}

// Save inserts the offer or overwrites every column of the existing row
func (r *GormOfferRepository) Save(ctx context.Context, o *offer.Offer) error {
	model := models.OfferModelFromDomain(o)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(model).Error
}

// UpdateSyncState changes the sync columns, plus the raw snapshot when one is given
func (r *GormOfferRepository) UpdateSyncState(ctx context.Context, id uuid.UUID, state offer.SyncState) error {
	updates := map[string]any{
		"sync_status": string(state.Status),
		"sync_error":  state.Error,
		"updated_at":  time.Now(),
	}
	if state.SyncedAt != nil {
		updates["last_synced_at"] = *state.SyncedAt
	}
	if state.RawData != nil {
		updates["raw_data"] = models.EncodeRawData(state.RawData)
	}

	result := r.db.WithContext(ctx).Model(&models.OfferModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return offer.ErrOfferNotFound
	}
	return nil
}

func (r *GormOfferRepository) applyFilter(query *gorm.DB, filter offer.OfferFilter) *gorm.DB {
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(title) LIKE ? OR external_id LIKE ?", like, like)
	}
	if filter.ValidationStatus != "" {
		query = query.Where("validation_status = ?", string(filter.ValidationStatus))
	}
	if filter.SyncStatus != "" {
		query = query.Where("sync_status = ?", string(filter.SyncStatus))
	}
	if filter.PublicationState != "" {
		query = query.Where("publication_status = ?", string(filter.PublicationState))
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	return query
}

func toDomainOffers(rows []models.OfferModel) []offer.Offer {
	out := make([]offer.Offer, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormOfferRepository implements offer.OfferRepository
var _ offer.OfferRepository = (*GormOfferRepository)(nil)
