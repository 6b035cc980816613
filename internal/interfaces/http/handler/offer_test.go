package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRaw(id string) offer.RawPayload {
	return offer.RawPayload{
		"id":          id,
		"name":        "Kubek ceramiczny",
		"description": "Kubek 300 ml",
		"category":    map[string]any{"id": "257931"},
		"sellingMode": map[string]any{"price": map[string]any{"amount": "49.99", "currency": "PLN"}},
		"stock":       map[string]any{"available": float64(4)},
		"images":      []any{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg"},
		"publication": map[string]any{"status": "ACTIVE"},
		"delivery":    map[string]any{"shippingRates": map[string]any{"id": "rates-1"}},
		"payments":    map[string]any{"invoice": "VAT"},
	}
}

func createTestOffer(t *testing.T, externalID string) *offer.Offer {
	t.Helper()
	raw := sampleRaw(externalID)
	o, err := offer.NewOffer(externalID, offer.SyncSourceAllegroAPI)
	require.NoError(t, err)
	o.ApplyImport(offer.ExtractOfferData(raw), raw, offer.SyncSourceAllegroAPI)
	o.ApplyValidation(offer.Validate(o))
	return o
}

type offerTestEnv struct {
	offers     *MockOfferRepository
	products   *MockProductRepository
	client     *MockMarketplaceClient
	dispatcher *captureDispatcher
	engine     *gin.Engine
}

func newOfferTestEnv() *offerTestEnv {
	env := &offerTestEnv{
		offers:     new(MockOfferRepository),
		products:   new(MockProductRepository),
		client:     new(MockMarketplaceClient),
		dispatcher: &captureDispatcher{},
	}
	log := zap.NewNop()
	svc := offerapp.NewOfferService(env.offers, env.products, env.client, stubTokens{}, env.dispatcher, nil, nil, log)
	h := NewOfferHandler(svc, offerapp.NewExportService(env.offers, log))

	env.engine = gin.New()
	g := env.engine.Group("/api/v1/offers")
	g.GET("", h.List)
	g.GET("/export.csv", h.ExportCSV)
	g.GET("/export.xlsx", h.ExportXLSX)
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.PUT("/:id/stock", h.UpdateStock)
	g.POST("/:id/validate", h.Validate)
	return env
}

func (env *offerTestEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestOfferHandler_List(t *testing.T) {
	env := newOfferTestEnv()
	o := createTestOffer(t, "7001")
	env.offers.On("FindAll", mock.Anything, mock.MatchedBy(func(f offer.OfferFilter) bool {
		return f.Page == 2 && f.PageSize == 10 && f.SyncStatus == offer.SyncStatusPending
	})).Return([]offer.Offer{*o}, nil)
	env.offers.On("Count", mock.Anything, mock.Anything).Return(int64(11), nil)

	w := env.do(http.MethodGet, "/api/v1/offers?page=2&page_size=10&sync_status=PENDING", "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	items := resp.Data.([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "7001", item["external_id"])
	assert.Equal(t, "49.99", item["price"])
	assert.NotContains(t, item, "raw_data")
	env.offers.AssertExpectations(t)
}

func TestOfferHandler_List_InvalidFilter(t *testing.T) {
	env := newOfferTestEnv()

	w := env.do(http.MethodGet, "/api/v1/offers?sync_status=DONE", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "sync_status", resp.Error.Details[0].Field)
	env.offers.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestOfferHandler_List_Ordering(t *testing.T) {
	t.Run("passes the order through", func(t *testing.T) {
		env := newOfferTestEnv()
		env.offers.On("FindAll", mock.Anything, mock.MatchedBy(func(f offer.OfferFilter) bool {
			return f.OrderBy == "title" && f.OrderDir == "asc"
		})).Return([]offer.Offer{}, nil)
		env.offers.On("Count", mock.Anything, mock.Anything).Return(int64(0), nil)

		w := env.do(http.MethodGet, "/api/v1/offers?order_by=title&order_dir=asc", "")

		assert.Equal(t, http.StatusOK, w.Code)
		env.offers.AssertExpectations(t)
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		env := newOfferTestEnv()

		w := env.do(http.MethodGet, "/api/v1/offers?order_by=raw_data", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "order_by", resp.Error.Details[0].Field)
		env.offers.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
	})
}

func TestOfferHandler_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		env := newOfferTestEnv()
		o := createTestOffer(t, "7001")
		env.offers.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		w := env.do(http.MethodGet, "/api/v1/offers/"+o.ID.String(), "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, o.ID.String(), data["id"])
		assert.Contains(t, data, "raw_data")
	})

	t.Run("not found", func(t *testing.T) {
		env := newOfferTestEnv()
		id := uuid.New()
		env.offers.On("FindByID", mock.Anything, id).Return(nil, offer.ErrOfferNotFound)

		w := env.do(http.MethodGet, "/api/v1/offers/"+id.String(), "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newOfferTestEnv()
		w := env.do(http.MethodGet, "/api/v1/offers/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOfferHandler_Update(t *testing.T) {
	env := newOfferTestEnv()
	o := createTestOffer(t, "7001")
	env.offers.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	env.offers.On("Save", mock.Anything, mock.AnythingOfType("*offer.Offer")).Return(nil)

	w := env.do(http.MethodPatch, "/api/v1/offers/"+o.ID.String(),
		`{"title": "Kubek XL", "price": "59.90"}`, UserIDHeader, "seller-1")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "Kubek XL", data["title"])
	assert.Equal(t, "59.9", data["price"])
	assert.Equal(t, "PENDING", data["sync_status"])

	require.Len(t, env.dispatcher.writes, 1)
	write := env.dispatcher.writes[0]
	assert.Equal(t, offer.WriteModeFull, write.Mode)
	assert.Equal(t, "seller-1", write.UserID)
	assert.Equal(t, "Kubek XL", write.Payload["name"])
}

func TestOfferHandler_Update_EmptyBody(t *testing.T) {
	env := newOfferTestEnv()
	id := uuid.New()

	w := env.do(http.MethodPatch, "/api/v1/offers/"+id.String(), `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
	env.offers.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestOfferHandler_Update_InvalidJSON(t *testing.T) {
	env := newOfferTestEnv()
	w := env.do(http.MethodPatch, "/api/v1/offers/"+uuid.NewString(), `{"title": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
}

func TestOfferHandler_UpdateStock(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newOfferTestEnv()
		o := createTestOffer(t, "7001")
		env.offers.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		env.offers.On("Save", mock.Anything, o).Return(nil)

		w := env.do(http.MethodPut, "/api/v1/offers/"+o.ID.String()+"/stock", `{"quantity": 0}`)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, float64(0), data["stock_quantity"])
		require.Len(t, env.dispatcher.writes, 1)
		assert.Equal(t, offer.WriteModeStockOnly, env.dispatcher.writes[0].Mode)
		assert.Equal(t, 0, env.dispatcher.writes[0].Quantity)
	})

	t.Run("missing quantity", func(t *testing.T) {
		env := newOfferTestEnv()
		w := env.do(http.MethodPut, "/api/v1/offers/"+uuid.NewString()+"/stock", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("negative quantity", func(t *testing.T) {
		env := newOfferTestEnv()
		w := env.do(http.MethodPut, "/api/v1/offers/"+uuid.NewString()+"/stock", `{"quantity": -3}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "quantity", resp.Error.Details[0].Field)
	})
}

func TestOfferHandler_Validate(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		env := newOfferTestEnv()
		o := createTestOffer(t, "7001")
		o.Images = nil
		env.offers.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		env.offers.On("Save", mock.Anything, o).Return(nil)

		w := env.do(http.MethodPost, "/api/v1/offers/"+o.ID.String()+"/validate", "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "ERRORS", data["status"])
		errs := data["errors"].([]any)
		require.NotEmpty(t, errs)
		assert.Equal(t, offer.CodeMissingImages, errs[0].(map[string]any)["type"])
		env.client.AssertNotCalled(t, "GetOffer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("marketplace rejects", func(t *testing.T) {
		env := newOfferTestEnv()
		o := createTestOffer(t, "7001")
		env.offers.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		remoteErr := &allegro.APIError{StatusCode: http.StatusUnprocessableEntity, Method: "GET", Path: "/sale/product-offers/7001", Body: `{"errors":[{"code":"X"}]}`}
		env.client.On("GetOffer", mock.Anything, "user-seller-1", "7001").Return(nil, remoteErr)

		w := env.do(http.MethodPost, "/api/v1/offers/"+o.ID.String()+"/validate", "", UserIDHeader, "seller-1")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeRemoteValidation, resp.Error.Code)
		assert.Equal(t, `{"errors":[{"code":"X"}]}`, resp.Error.Remote)
		env.offers.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestOfferHandler_ExportCSV(t *testing.T) {
	env := newOfferTestEnv()
	o := createTestOffer(t, "7001")
	env.offers.On("FindAll", mock.Anything, mock.Anything).Return([]offer.Offer{*o}, nil)

	w := env.do(http.MethodGet, "/api/v1/offers/export.csv", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="offers-`)
	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"`+o.ID.String()+`","7001"`))
}

func TestOfferHandler_ExportXLSX(t *testing.T) {
	env := newOfferTestEnv()
	env.offers.On("FindAll", mock.Anything, mock.Anything).Return([]offer.Offer{}, nil)

	w := env.do(http.MethodGet, "/api/v1/offers/export.xlsx", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip container")
}

func TestOfferHandler_RepositoryFailure(t *testing.T) {
	env := newOfferTestEnv()
	id := uuid.New()
	env.offers.On("FindByID", mock.Anything, id).Return(nil, context.Canceled)

	w := env.do(http.MethodGet, "/api/v1/offers/"+id.String(), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "canceled")
}
