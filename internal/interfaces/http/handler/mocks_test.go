package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/stretchr/testify/mock"
)

// MockOfferRepository implements offer.OfferRepository for testing
type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindByExternalID(ctx context.Context, externalID string) (*offer.Offer, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindAll(ctx context.Context, filter offer.OfferFilter) ([]offer.Offer, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) Count(ctx context.Context, filter offer.OfferFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOfferRepository) FindByProductID(ctx context.Context, productID uuid.UUID) ([]offer.Offer, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) Save(ctx context.Context, o *offer.Offer) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOfferRepository) UpdateSyncState(ctx context.Context, id uuid.UUID, state offer.SyncState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

// MockProductRepository implements offer.ProductRepository for testing
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Product), args.Error(1)
}

func (m *MockProductRepository) FindBySKU(ctx context.Context, sku string) (*offer.Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Product), args.Error(1)
}

func (m *MockProductRepository) FindLinked(ctx context.Context) ([]offer.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]offer.Product), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, p *offer.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// MockMarketplaceClient implements offer.MarketplaceClient for testing
type MockMarketplaceClient struct {
	mock.Mock
}

func (m *MockMarketplaceClient) ListOffers(ctx context.Context, token string, params offer.ListParams) (*offer.OfferPage, error) {
	args := m.Called(ctx, token, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.OfferPage), args.Error(1)
}

func (m *MockMarketplaceClient) GetOffer(ctx context.Context, token, externalID string) (offer.RawPayload, error) {
	args := m.Called(ctx, token, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(offer.RawPayload), args.Error(1)
}

func (m *MockMarketplaceClient) CreateOffer(ctx context.Context, token string, payload offer.RawPayload) (offer.RawPayload, error) {
	args := m.Called(ctx, token, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(offer.RawPayload), args.Error(1)
}

func (m *MockMarketplaceClient) UpdateOffer(ctx context.Context, token, externalID string, payload offer.RawPayload) (offer.RawPayload, error) {
	args := m.Called(ctx, token, externalID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(offer.RawPayload), args.Error(1)
}

func (m *MockMarketplaceClient) DeleteOffer(ctx context.Context, token, externalID string) error {
	return m.Called(ctx, token, externalID).Error(0)
}

func (m *MockMarketplaceClient) SetStock(ctx context.Context, token, externalID string, quantity int) error {
	return m.Called(ctx, token, externalID, quantity).Error(0)
}

// stubTokens hands out fixed tokens
type stubTokens struct{}

func (stubTokens) AccessToken(context.Context) (string, error) { return "app-token", nil }

func (stubTokens) UserAccessToken(_ context.Context, userID string) (string, error) {
	return "user-" + userID, nil
}

func (stubTokens) RefreshUserToken(_ context.Context, userID string) (string, error) {
	return "fresh-" + userID, nil
}

// captureDispatcher records dispatched writes
type captureDispatcher struct {
	mu     sync.Mutex
	writes []offer.RemoteWrite
}

func (d *captureDispatcher) Dispatch(_ context.Context, w offer.RemoteWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, w)
	return nil
}
