package offer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOffer(t *testing.T) {
	o, err := NewOffer(" 7712345 ", SyncSourceAllegroAPI)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, "7712345", o.ExternalID)
	assert.Equal(t, SyncSourceAllegroAPI, o.SyncSource)
	assert.Equal(t, DefaultCurrency, o.Currency)
	assert.Equal(t, StatusDraft, o.Status)

	_, err = NewOffer("  ", SyncSourceManual)
	assert.ErrorIs(t, err, ErrInvalidExternalID)

	o, err = NewOffer("1", SyncSource("bogus"))
	require.NoError(t, err)
	assert.Equal(t, SyncSourceManual, o.SyncSource)
}

func TestOffer_ApplyImport(t *testing.T) {
	o, err := NewOffer("7712345", SyncSourceAllegroAPI)
	require.NoError(t, err)
	productID := uuid.New()
	o.LinkProduct(productID)
	id := o.ID

	raw := RawPayload{
		"id":          "7712345",
		"name":        "Kubek",
		"publication": map[string]any{"status": "ENDED"},
		"stock":       map[string]any{"available": float64(2)},
	}
	o.ApplyImport(ExtractOfferData(raw), raw, SyncSourceSalesCenter)

	assert.Equal(t, id, o.ID)
	require.NotNil(t, o.ProductID)
	assert.Equal(t, productID, *o.ProductID)
	assert.Equal(t, "Kubek", o.Title)
	assert.Equal(t, StatusEnded, o.Status)
	assert.Equal(t, 2, o.Stock())
	assert.Equal(t, SyncStatusSynced, o.SyncStatus)
	assert.Equal(t, SyncSourceSalesCenter, o.SyncSource)
	assert.NotNil(t, o.LastSyncedAt)

	// snapshot is a copy
	raw["name"] = "changed"
	assert.Equal(t, "Kubek", o.RawData["name"])
}

func TestOffer_ApplyPatch(t *testing.T) {
	o := completeOffer()
	o.RawData = RawPayload{"name": "Kubek ceramiczny"}

	t.Run("Empty patch", func(t *testing.T) {
		assert.ErrorIs(t, o.ApplyPatch(OfferPatch{}), ErrEmptyPatch)
	})

	t.Run("Negative stock", func(t *testing.T) {
		assert.ErrorIs(t, o.ApplyPatch(OfferPatch{StockQuantity: intPtr(-2)}), ErrInvalidQuantity)
		assert.Equal(t, 12, o.Stock())
	})

	t.Run("Fields change, snapshot does not", func(t *testing.T) {
		title := "  Nowy "
		price := decimal.NewFromInt(10)
		active := PublicationStatusActive
		require.NoError(t, o.ApplyPatch(OfferPatch{Title: &title, Price: &price, PublicationStatus: &active}))

		assert.Equal(t, "Nowy", o.Title)
		assert.True(t, price.Equal(o.Price))
		assert.Equal(t, StatusActive, o.Status)
		assert.Equal(t, "Kubek ceramiczny", o.RawData["name"])
	})
}

func TestOffer_SetStock(t *testing.T) {
	o := completeOffer()
	assert.ErrorIs(t, o.SetStock(-1), ErrInvalidQuantity)
	require.NoError(t, o.SetStock(0))
	assert.Equal(t, 0, o.Stock())

	o.StockQuantity = nil
	assert.Equal(t, 0, o.Stock())
}

func TestProduct(t *testing.T) {
	p, err := NewProduct("kub-01", "036000291452", " Kubek ")
	require.NoError(t, err)
	assert.Equal(t, "KUB01", p.SKU)
	assert.Equal(t, "0036000291452", p.EAN)
	assert.Equal(t, "Kubek", p.Name)

	_, err = NewProduct(" ", "", "")
	assert.ErrorIs(t, err, ErrInvalidSKU)

	require.NoError(t, p.SetStock(6))
	r := p.StockReport()
	assert.Equal(t, p.ID.String(), r.Key)
	assert.Equal(t, 6, r.Quantity)
	assert.Equal(t, *p.StockUpdatedAt, r.ReportedAt)
	assert.ErrorIs(t, p.SetStock(-1), ErrInvalidQuantity)
}
