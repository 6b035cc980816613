package offerapp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memOfferRepo struct {
	mu     sync.Mutex
	order  []uuid.UUID
	offers map[uuid.UUID]offer.Offer
	saves  int
	states []offer.SyncState
}

var _ offer.OfferRepository = (*memOfferRepo)(nil)

func newMemOfferRepo(offers ...*offer.Offer) *memOfferRepo {
	r := &memOfferRepo{offers: make(map[uuid.UUID]offer.Offer)}
	for _, o := range offers {
		r.put(o)
	}
	return r
}

func (r *memOfferRepo) put(o *offer.Offer) {
	if _, ok := r.offers[o.ID]; !ok {
		r.order = append(r.order, o.ID)
	}
	r.offers[o.ID] = *o
}

func (r *memOfferRepo) get(id uuid.UUID) offer.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offers[id]
}

func (r *memOfferRepo) byExternalID(externalID string) (offer.Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.offers {
		if o.ExternalID == externalID {
			return o, true
		}
	}
	return offer.Offer{}, false
}

func (r *memOfferRepo) FindByID(_ context.Context, id uuid.UUID) (*offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, offer.ErrOfferNotFound
	}
	return &o, nil
}

func (r *memOfferRepo) FindByExternalID(_ context.Context, externalID string) (*offer.Offer, error) {
	o, ok := r.byExternalID(externalID)
	if !ok {
		return nil, offer.ErrOfferNotFound
	}
	return &o, nil
}

func (r *memOfferRepo) matching(filter offer.OfferFilter) []offer.Offer {
	out := make([]offer.Offer, 0)
	for _, id := range r.order {
		o := r.offers[id]
		if filter.Search != "" && !strings.Contains(strings.ToLower(o.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.SyncStatus != "" && o.SyncStatus != filter.SyncStatus {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *memOfferRepo) FindAll(_ context.Context, filter offer.OfferFilter) ([]offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(filter)
	start := filter.Offset()
	if start >= len(all) {
		return []offer.Offer{}, nil
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *memOfferRepo) Count(_ context.Context, filter offer.OfferFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memOfferRepo) FindByProductID(_ context.Context, productID uuid.UUID) ([]offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]offer.Offer, 0)
	for _, id := range r.order {
		o := r.offers[id]
		if o.ProductID != nil && *o.ProductID == productID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOfferRepo) Save(_ context.Context, o *offer.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.put(o)
	return nil
}

func (r *memOfferRepo) UpdateSyncState(_ context.Context, id uuid.UUID, state offer.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return offer.ErrOfferNotFound
	}
	r.states = append(r.states, state)
	o.SyncStatus = state.Status
	o.SyncError = state.Error
	r.offers[id] = o
	return nil
}

type memProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]offer.Product
	saves    int
}

var _ offer.ProductRepository = (*memProductRepo)(nil)

func newMemProductRepo(products ...*offer.Product) *memProductRepo {
	r := &memProductRepo{products: make(map[uuid.UUID]offer.Product)}
	for _, p := range products {
		r.products[p.ID] = *p
	}
	return r
}

func (r *memProductRepo) get(id uuid.UUID) offer.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id]
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*offer.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, offer.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProductRepo) FindBySKU(_ context.Context, sku string) (*offer.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, offer.ErrProductNotFound
}

func (r *memProductRepo) FindLinked(_ context.Context) ([]offer.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]offer.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memProductRepo) Save(_ context.Context, p *offer.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.products[p.ID] = *p
	return nil
}

// ---------------------------------------------------------------------------
// Marketplace and tokens
// ---------------------------------------------------------------------------

// fakeMarketplace serves a fixed listing. Calls made with a token in
// rejected fail with ErrUnauthorized; a token in rejectFrom fails listing
// calls from that offset on.
type fakeMarketplace struct {
	offer.MarketplaceClient

	mu         sync.Mutex
	listing    []offer.RawPayload
	details    map[string]offer.RawPayload
	detailErr  map[string]error
	rejected   map[string]bool
	rejectFrom map[string]int
	offsets    []int
	tokens     []string
}

func newFakeMarketplace(items ...offer.RawPayload) *fakeMarketplace {
	m := &fakeMarketplace{
		listing:    items,
		details:    make(map[string]offer.RawPayload),
		detailErr:  make(map[string]error),
		rejected:   make(map[string]bool),
		rejectFrom: make(map[string]int),
	}
	for _, it := range items {
		m.details[it.ExternalID()] = it
	}
	return m
}

func (m *fakeMarketplace) ListOffers(_ context.Context, token string, params offer.ListParams) (*offer.OfferPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets = append(m.offsets, params.Offset)
	m.tokens = append(m.tokens, token)
	if m.rejected[token] {
		return nil, offer.ErrUnauthorized
	}
	if from, ok := m.rejectFrom[token]; ok && params.Offset >= from {
		return nil, offer.ErrUnauthorized
	}
	page := &offer.OfferPage{TotalCount: len(m.listing), Offers: []offer.RawPayload{}}
	if params.Offset >= len(m.listing) {
		return page, nil
	}
	end := params.Offset + params.Limit
	if end > len(m.listing) {
		end = len(m.listing)
	}
	for _, it := range m.listing[params.Offset:end] {
		// the listing carries an abbreviated document
		page.Offers = append(page.Offers, offer.RawPayload{"id": it.ExternalID(), "name": it["name"]})
	}
	return page, nil
}

func (m *fakeMarketplace) GetOffer(_ context.Context, token, externalID string) (offer.RawPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if m.rejected[token] {
		return nil, offer.ErrUnauthorized
	}
	if err := m.detailErr[externalID]; err != nil {
		return nil, err
	}
	raw, ok := m.details[externalID]
	if !ok {
		return nil, offer.ErrRemoteNotFound
	}
	return raw.Clone(), nil
}

type fakeTokens struct {
	mu         sync.Mutex
	refreshed  int
	refreshErr error
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) { return "app-token", nil }

func (f *fakeTokens) UserAccessToken(_ context.Context, userID string) (string, error) {
	return "user-" + userID, nil
}

func (f *fakeTokens) RefreshUserToken(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "fresh-" + userID, nil
}

// ---------------------------------------------------------------------------
// Dispatcher, warehouse and storage
// ---------------------------------------------------------------------------

type recordingDispatcher struct {
	mu     sync.Mutex
	writes []offer.RemoteWrite
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, w offer.RemoteWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.writes = append(d.writes, w)
	return nil
}

type warehouseCall struct {
	ProductID   uuid.UUID
	WarehouseID string
	Quantity    int
	Reason      string
}

type fakeWarehouse struct {
	mu    sync.Mutex
	calls []warehouseCall
	err   error
}

func (w *fakeWarehouse) SetStock(_ context.Context, productID uuid.UUID, warehouseID string, quantity int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, warehouseCall{productID, warehouseID, quantity, reason})
	return w.err
}

type memArtifactStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemArtifactStorage() *memArtifactStorage {
	return &memArtifactStorage{files: make(map[string][]byte)}
}

func (s *memArtifactStorage) Put(_ context.Context, name string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; ok {
		return offer.ErrArtifactExists
	}
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *memArtifactStorage) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// marketplaceOffer is a complete, publishable marketplace document
func marketplaceOffer(id, name string, stock int) offer.RawPayload {
	return offer.RawPayload{
		"id":          id,
		"name":        name,
		"description": "Ceramiczny kubek 300 ml",
		"category":    map[string]any{"id": "257931"},
		"sellingMode": map[string]any{"price": map[string]any{"amount": "49.99", "currency": "PLN"}},
		"stock":       map[string]any{"available": float64(stock), "unit": "UNIT"},
		"images":      []any{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg"},
		"publication": map[string]any{"status": "ACTIVE"},
		"delivery":    map[string]any{"shippingRates": map[string]any{"id": "rates-1"}},
		"payments":    map[string]any{"invoice": "VAT"},
	}
}

// importedOffer is a stored offer created from a marketplace document
func importedOffer(t *testing.T, raw offer.RawPayload) *offer.Offer {
	t.Helper()
	o, err := offer.NewOffer(raw.ExternalID(), offer.SyncSourceAllegroAPI)
	require.NoError(t, err)
	o.ApplyImport(offer.ExtractOfferData(raw), raw, offer.SyncSourceAllegroAPI)
	o.ApplyValidation(offer.Validate(o))
	return o
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
