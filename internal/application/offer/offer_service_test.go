package offerapp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type offerServiceFixture struct {
	offers     *memOfferRepo
	products   *memProductRepo
	client     *fakeMarketplace
	tokens     *fakeTokens
	dispatcher *recordingDispatcher
	warehouse  *fakeWarehouse
	svc        *OfferService
}

func newOfferServiceFixture(offers []*offer.Offer, products []*offer.Product, remote ...offer.RawPayload) *offerServiceFixture {
	f := &offerServiceFixture{
		offers:     newMemOfferRepo(offers...),
		products:   newMemProductRepo(products...),
		client:     newFakeMarketplace(remote...),
		tokens:     &fakeTokens{},
		dispatcher: &recordingDispatcher{},
		warehouse:  &fakeWarehouse{},
	}
	f.svc = NewOfferService(f.offers, f.products, f.client, f.tokens, f.dispatcher, f.warehouse, nil, newTestLogger())
	return f
}

func trackedProduct(t *testing.T, stock int) *offer.Product {
	t.Helper()
	p, err := offer.NewProduct("kub-001", "", "Kubek")
	require.NoError(t, err)
	p.StockQuantity = stock
	p.TrackStock = true
	p.WarehouseID = "wh-main"
	return p
}

func TestOfferService_UpdateOffer_NotFound(t *testing.T) {
	f := newOfferServiceFixture(nil, nil)
	_, err := f.svc.UpdateOffer(context.Background(), uuid.New(), offer.OfferPatch{Title: strPtr("x")}, "")
	assert.ErrorIs(t, err, offer.ErrOfferNotFound)
	assert.True(t, IsNotFound(err))
}

func TestOfferService_UpdateOffer_EmptyPatch(t *testing.T) {
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	f := newOfferServiceFixture([]*offer.Offer{o}, nil)
	_, err := f.svc.UpdateOffer(context.Background(), o.ID, offer.OfferPatch{}, "")
	assert.ErrorIs(t, err, offer.ErrEmptyPatch)
	assert.Empty(t, f.dispatcher.writes)
}

func TestOfferService_UpdateOffer_Full(t *testing.T) {
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	f := newOfferServiceFixture([]*offer.Offer{o}, nil)

	updated, err := f.svc.UpdateOffer(context.Background(), o.ID, offer.OfferPatch{Title: strPtr("  Kubek duży ")}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Kubek duży", updated.Title)
	assert.Equal(t, offer.SyncStatusPending, updated.SyncStatus)

	stored := f.offers.get(o.ID)
	assert.Equal(t, offer.SyncStatusPending, stored.SyncStatus)
	assert.Equal(t, "Kubek", stored.RawData["name"], "snapshot waits for the marketplace")
	assert.Equal(t, offer.ValidationStatusReady, stored.ValidationStatus)

	require.Len(t, f.dispatcher.writes, 1)
	w := f.dispatcher.writes[0]
	assert.Equal(t, offer.WriteModeFull, w.Mode)
	assert.Equal(t, "u1", w.UserID)
	assert.Equal(t, "1001", w.ExternalID)
	assert.Equal(t, "Kubek duży", w.Payload["name"])
	assert.Contains(t, w.Payload, "category")
	assert.Contains(t, w.Payload, "sellingMode")
}

func TestOfferService_UpdateOffer_RevalidatesLocally(t *testing.T) {
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	f := newOfferServiceFixture([]*offer.Offer{o}, nil)

	updated, err := f.svc.UpdateOffer(context.Background(), o.ID, offer.OfferPatch{Title: strPtr(" ")}, "")
	require.NoError(t, err)
	assert.Equal(t, offer.ValidationStatusErrors, updated.ValidationStatus)
	assert.Equal(t, offer.CodeMissingTitle, updated.ValidationErrors[0].Type)
}

func TestOfferService_UpdateOffer_StockOnlyPatch(t *testing.T) {
	p := trackedProduct(t, 4)
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	o.LinkProduct(p.ID)
	f := newOfferServiceFixture([]*offer.Offer{o}, []*offer.Product{p})

	_, err := f.svc.UpdateOffer(context.Background(), o.ID, offer.OfferPatch{StockQuantity: intPtr(11)}, "u1")
	require.NoError(t, err)

	require.Len(t, f.dispatcher.writes, 1)
	w := f.dispatcher.writes[0]
	assert.Equal(t, offer.WriteModeStockOnly, w.Mode)
	assert.Equal(t, 11, w.Quantity)
	assert.Equal(t, "u1", w.UserID)
	assert.Nil(t, w.Payload)
	assert.Equal(t, 11, f.products.get(p.ID).StockQuantity)
}

func TestOfferService_UpdateStock(t *testing.T) {
	p := trackedProduct(t, 4)
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	o.LinkProduct(p.ID)
	f := newOfferServiceFixture([]*offer.Offer{o}, []*offer.Product{p})

	updated, err := f.svc.UpdateStock(context.Background(), o.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock())
	assert.Equal(t, offer.SyncStatusPending, f.offers.get(o.ID).SyncStatus)

	mirrored := f.products.get(p.ID)
	assert.Equal(t, 0, mirrored.StockQuantity)
	assert.NotNil(t, mirrored.StockUpdatedAt)

	require.Len(t, f.warehouse.calls, 1)
	call := f.warehouse.calls[0]
	assert.Equal(t, p.ID, call.ProductID)
	assert.Equal(t, "wh-main", call.WarehouseID)
	assert.Equal(t, 0, call.Quantity)
	assert.Equal(t, stockReason, call.Reason)

	require.Len(t, f.dispatcher.writes, 1)
	assert.Equal(t, offer.WriteModeStockOnly, f.dispatcher.writes[0].Mode)
	assert.Empty(t, f.dispatcher.writes[0].UserID)
}

func TestOfferService_UpdateStock_Negative(t *testing.T) {
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	f := newOfferServiceFixture([]*offer.Offer{o}, nil)

	_, err := f.svc.UpdateStock(context.Background(), o.ID, -1)
	assert.ErrorIs(t, err, offer.ErrInvalidQuantity)
	assert.Zero(t, f.offers.saves)
}

func TestOfferService_UpdateStock_WarehouseFailureOnlyLogged(t *testing.T) {
	p := trackedProduct(t, 4)
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	o.LinkProduct(p.ID)
	f := newOfferServiceFixture([]*offer.Offer{o}, []*offer.Product{p})
	f.warehouse.err = errors.New("warehouse down")

	_, err := f.svc.UpdateStock(context.Background(), o.ID, 2)
	require.NoError(t, err)
	assert.Len(t, f.warehouse.calls, 1)
	assert.Len(t, f.dispatcher.writes, 1)
}

func TestOfferService_UpdateStock_UntrackedProduct(t *testing.T) {
	p := trackedProduct(t, 4)
	p.TrackStock = false
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	o.LinkProduct(p.ID)
	f := newOfferServiceFixture([]*offer.Offer{o}, []*offer.Product{p})

	_, err := f.svc.UpdateStock(context.Background(), o.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.products.get(p.ID).StockQuantity)
	assert.Empty(t, f.warehouse.calls)
}

func TestOfferService_DispatchFailureRecorded(t *testing.T) {
	o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
	f := newOfferServiceFixture([]*offer.Offer{o}, nil)
	f.dispatcher.err = errors.New("queue is full")

	updated, err := f.svc.UpdateStock(context.Background(), o.ID, 3)
	require.NoError(t, err, "the local write is already committed")
	assert.Equal(t, offer.SyncStatusError, updated.SyncStatus)
	assert.Contains(t, updated.SyncError, "not queued")

	stored := f.offers.get(o.ID)
	assert.Equal(t, 3, stored.Stock())
	assert.Equal(t, offer.SyncStatusError, stored.SyncStatus)
}

func TestOfferService_ValidateOffer(t *testing.T) {
	t.Run("local only", func(t *testing.T) {
		o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
		o.Images = nil
		f := newOfferServiceFixture([]*offer.Offer{o}, nil)

		_, result, err := f.svc.ValidateOffer(context.Background(), o.ID, "")
		require.NoError(t, err)
		assert.Equal(t, offer.ValidationStatusErrors, result.Status)
		assert.True(t, result.HasCode(offer.CodeMissingImages))
		assert.Empty(t, f.client.tokens, "no marketplace call without a user")
	})

	t.Run("refreshes the snapshot", func(t *testing.T) {
		o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
		o.Images = nil
		f := newOfferServiceFixture([]*offer.Offer{o}, nil, marketplaceOffer("1001", "Kubek", 6))

		refreshed, result, err := f.svc.ValidateOffer(context.Background(), o.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, offer.ValidationStatusReady, result.Status)
		assert.Equal(t, 6, refreshed.Stock())
		assert.Equal(t, offer.ValidationStatusReady, f.offers.get(o.ID).ValidationStatus)
	})

	t.Run("keeps a pending write pending", func(t *testing.T) {
		o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
		o.MarkSyncPending()
		f := newOfferServiceFixture([]*offer.Offer{o}, nil, marketplaceOffer("1001", "Kubek", 4))

		refreshed, _, err := f.svc.ValidateOffer(context.Background(), o.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, offer.SyncStatusPending, refreshed.SyncStatus)
	})

	t.Run("auth failure after refresh", func(t *testing.T) {
		o := importedOffer(t, marketplaceOffer("1001", "Kubek", 4))
		f := newOfferServiceFixture([]*offer.Offer{o}, nil, marketplaceOffer("1001", "Kubek", 4))
		f.client.rejected["user-u1"] = true
		f.client.rejected["fresh-u1"] = true

		_, _, err := f.svc.ValidateOffer(context.Background(), o.ID, "u1")
		assert.ErrorIs(t, err, offer.ErrOAuthRequired)
		assert.Equal(t, 1, f.tokens.refreshed)
	})
}

func TestOfferService_ListOffers(t *testing.T) {
	offers := make([]*offer.Offer, 0, 25)
	for i := 0; i < 25; i++ {
		offers = append(offers, importedOffer(t, marketplaceOffer(uuid.NewString(), "Kubek", i)))
	}
	f := newOfferServiceFixture(offers, nil)

	page, total, err := f.svc.ListOffers(context.Background(), offer.OfferFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, page, 20)

	page, _, err = f.svc.ListOffers(context.Background(), offer.OfferFilter{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Empty(t, page, "page size is capped at 100")

	page, _, err = f.svc.ListOffers(context.Background(), offer.OfferFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
