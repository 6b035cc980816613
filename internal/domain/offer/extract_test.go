package offer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOfferData(t *testing.T) {
	t.Run("Full payload", func(t *testing.T) {
		raw, err := ParseRawPayload([]byte(`{
			"id": "7712345",
			"name": "  Kubek ceramiczny ",
			"category": {"id": "257931"},
			"sellingMode": {"price": {"amount": "49.99", "currency": "CZK"}},
			"stock": {"available": 7},
			"publication": {"status": "active"},
			"images": [{"url": "https://a/1.jpg"}, "https://a/2.jpg", {"other": 1}],
			"delivery": {"shippingRates": {"id": "r1"}},
			"payments": {"invoice": "VAT"},
			"parameters": [{"id": "11323", "valuesIds": ["11323_1"]}],
			"description": {"sections": [
				{"items": [{"type": "TEXT", "content": "<h1>Kubek</h1>"}, {"type": "IMAGE", "url": "https://a/1.jpg"}]},
				{"items": [{"type": "TEXT", "content": "<p>Pojemność 300 ml</p>"}]}
			]}
		}`))
		require.NoError(t, err)

		x := ExtractOfferData(raw)

		assert.Equal(t, "7712345", x.ExternalID)
		assert.Equal(t, "Kubek ceramiczny", x.Title)
		assert.Equal(t, "257931", x.CategoryID)
		assert.True(t, decimal.RequireFromString("49.99").Equal(x.Price))
		assert.Equal(t, "CZK", x.Currency)
		require.NotNil(t, x.StockQuantity)
		assert.Equal(t, 7, *x.StockQuantity)
		assert.Equal(t, PublicationStatusActive, x.PublicationStatus)
		assert.Equal(t, []string{"https://a/1.jpg", "https://a/2.jpg"}, x.Images)
		assert.Equal(t, "<h1>Kubek</h1>\n\n<p>Pojemność 300 ml</p>", x.Description)
		assert.NotNil(t, x.DeliveryOptions)
		assert.NotNil(t, x.PaymentOptions)
		assert.Len(t, x.Parameters, 1)
	})

	t.Run("Plain string description", func(t *testing.T) {
		x := ExtractOfferData(RawPayload{"description": " tekst "})
		assert.Equal(t, "tekst", x.Description)
	})

	t.Run("Image priority", func(t *testing.T) {
		x := ExtractOfferData(RawPayload{
			"rawData":      map[string]any{"images": []any{"raw-1"}},
			"primaryImage": map[string]any{"url": "primary"},
		})
		assert.Equal(t, []string{"raw-1"}, x.Images)

		x = ExtractOfferData(RawPayload{"images": []any{}, "primaryImage": map[string]any{"url": "primary"}})
		assert.Equal(t, []string{"primary"}, x.Images)

		x = ExtractOfferData(RawPayload{"primaryImage": "single"})
		assert.Equal(t, []string{"single"}, x.Images)
	})

	t.Run("Missing fields never fail", func(t *testing.T) {
		for _, raw := range []RawPayload{nil, {}, {"sellingMode": "broken", "stock": []any{1}, "images": "nope", "description": 12}} {
			x := ExtractOfferData(raw)
			assert.Empty(t, x.Title)
			assert.Empty(t, x.Images)
			assert.NotNil(t, x.Images)
			assert.Nil(t, x.StockQuantity)
			assert.True(t, x.Price.IsZero())
			assert.Equal(t, DefaultCurrency, x.Currency)
		}
	})

	t.Run("Unicode is NFC normalized", func(t *testing.T) {
		// "ó" written as o + combining acute
		x := ExtractOfferData(RawPayload{"name": "Zo\u0301lty"})
		assert.Equal(t, "Z\u00f3lty", x.Title)
	})
}

func TestParseRawPayload(t *testing.T) {
	_, err := ParseRawPayload([]byte(`{"id": `))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseRawPayload([]byte(`null`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseRawPayload([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	p, err := ParseRawPayload([]byte(`{"id": "1"}`))
	require.NoError(t, err)
	assert.Equal(t, "1", p.ExternalID())
}

func TestRawPayload_Clone(t *testing.T) {
	orig := RawPayload{"stock": map[string]any{"available": 1}, "images": []any{"a"}}
	cp := orig.Clone()
	asMap(cp["stock"])["available"] = 2
	cp["images"].([]any)[0] = "b"

	assert.Equal(t, 1, lookup(orig, "stock", "available"))
	assert.Equal(t, []any{"a"}, orig["images"])
	assert.Nil(t, RawPayload(nil).Clone())
}
