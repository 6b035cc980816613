package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// OfferResponse is the API view of a local offer
// @name HandlerOfferResponse
type OfferResponse struct {
	ID                string                  `json:"id" example:"5c6e3f8a-1d2b-4c3d-9e8f-0a1b2c3d4e5f"`
	ExternalID        string                  `json:"external_id" example:"7712345678"`
	Title             string                  `json:"title" example:"Kubek ceramiczny 300 ml"`
	Description       string                  `json:"description,omitempty"`
	CategoryID        string                  `json:"category_id,omitempty" example:"257931"`
	Price             decimal.Decimal         `json:"price" swaggertype:"string" example:"49.99"`
	Currency          string                  `json:"currency" example:"PLN"`
	StockQuantity     *int                    `json:"stock_quantity,omitempty" example:"4"`
	Status            string                  `json:"status" example:"ACTIVE"`
	PublicationStatus string                  `json:"publication_status,omitempty" example:"ACTIVE"`
	Images            []string                `json:"images"`
	ValidationStatus  string                  `json:"validation_status" example:"READY"`
	ValidationErrors  []offer.ValidationError `json:"validation_errors"`
	LastValidatedAt   *time.Time              `json:"last_validated_at,omitempty"`
	SyncStatus        string                  `json:"sync_status" example:"SYNCED"`
	SyncSource        string                  `json:"sync_source" example:"ALLEGRO_API"`
	SyncError         string                  `json:"sync_error,omitempty"`
	LastSyncedAt      *time.Time              `json:"last_synced_at,omitempty"`
	ProductID         *string                 `json:"product_id,omitempty"`
	RawData           map[string]any          `json:"raw_data,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// toOfferResponse converts an offer. The raw snapshot is only included on
// single-offer reads.
func toOfferResponse(o *offer.Offer, withRaw bool) OfferResponse {
	resp := OfferResponse{
		ID:                o.ID.String(),
		ExternalID:        o.ExternalID,
		Title:             o.Title,
		Description:       o.Description,
		CategoryID:        o.CategoryID,
		Price:             o.Price,
		Currency:          o.Currency,
		StockQuantity:     o.StockQuantity,
		Status:            string(o.Status),
		PublicationStatus: string(o.PublicationStatus),
		Images:            o.Images,
		ValidationStatus:  string(o.ValidationStatus),
		ValidationErrors:  o.ValidationErrors,
		LastValidatedAt:   o.LastValidatedAt,
		SyncStatus:        string(o.SyncStatus),
		SyncSource:        string(o.SyncSource),
		SyncError:         o.SyncError,
		LastSyncedAt:      o.LastSyncedAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	if resp.ValidationErrors == nil {
		resp.ValidationErrors = []offer.ValidationError{}
	}
	if o.ProductID != nil {
		id := o.ProductID.String()
		resp.ProductID = &id
	}
	if withRaw {
		resp.RawData = o.RawData
	}
	return resp
}

func toOfferResponses(offers []offer.Offer) []OfferResponse {
	out := make([]OfferResponse, len(offers))
	for i := range offers {
		out[i] = toOfferResponse(&offers[i], false)
	}
	return out
}

// OfferListQuery holds the filters of GET /offers
type OfferListQuery struct {
	Page              int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize          int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	Search            string `form:"search" binding:"omitempty,max=200"`
	ValidationStatus  string `form:"validation_status" binding:"omitempty,oneof=READY WARNINGS ERRORS"`
	SyncStatus        string `form:"sync_status" binding:"omitempty,oneof=PENDING SYNCED ERROR"`
	PublicationStatus string `form:"publication_status" binding:"omitempty,oneof=INACTIVE ACTIVATING ACTIVE ENDED"`
	ProductID         string `form:"product_id" binding:"omitempty,uuid"`
	OrderBy           string `form:"order_by" binding:"omitempty,oneof=created_at updated_at external_id title price stock_quantity validation_status sync_status last_synced_at"`
	OrderDir          string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

func (q OfferListQuery) toFilter() offer.OfferFilter {
	f := offer.OfferFilter{
		Page:             q.Page,
		PageSize:         q.PageSize,
		Search:           q.Search,
		ValidationStatus: offer.ValidationStatus(q.ValidationStatus),
		SyncStatus:       offer.SyncStatus(q.SyncStatus),
		PublicationState: offer.PublicationStatus(q.PublicationStatus),
		OrderBy:          q.OrderBy,
		OrderDir:         q.OrderDir,
	}
	if id, err := uuid.Parse(q.ProductID); err == nil {
		f.ProductID = &id
	}
	return f
}

// UpdateOfferRequest is a partial offer edit; omitted fields are unchanged
// @name HandlerUpdateOfferRequest
type UpdateOfferRequest struct {
	Title             *string          `json:"title,omitempty" binding:"omitempty,max=75" example:"Kubek ceramiczny 300 ml"`
	Description       *string          `json:"description,omitempty"`
	CategoryID        *string          `json:"category_id,omitempty" binding:"omitempty,max=32" example:"257931"`
	Price             *decimal.Decimal `json:"price,omitempty" swaggertype:"string" example:"49.99"`
	Currency          *string          `json:"currency,omitempty" binding:"omitempty,len=3" example:"PLN"`
	StockQuantity     *int             `json:"stock_quantity,omitempty" binding:"omitempty,min=0" example:"10"`
	Images            []string         `json:"images,omitempty" binding:"omitempty,dive,url"`
	Parameters        []map[string]any `json:"parameters,omitempty"`
	PublicationStatus *string          `json:"publication_status,omitempty" binding:"omitempty,oneof=INACTIVE ACTIVATING ACTIVE ENDED"`
	DeliveryOptions   map[string]any   `json:"delivery_options,omitempty"`
	PaymentOptions    map[string]any   `json:"payment_options,omitempty"`
}

func (r UpdateOfferRequest) toPatch() offer.OfferPatch {
	p := offer.OfferPatch{
		Title:           r.Title,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		Price:           r.Price,
		Currency:        r.Currency,
		StockQuantity:   r.StockQuantity,
		Images:          r.Images,
		Parameters:      r.Parameters,
		DeliveryOptions: r.DeliveryOptions,
		PaymentOptions:  r.PaymentOptions,
	}
	if r.PublicationStatus != nil {
		ps := offer.PublicationStatus(*r.PublicationStatus)
		p.PublicationStatus = &ps
	}
	return p
}

// UpdateStockRequest sets the stock of one offer
// @name HandlerUpdateStockRequest
type UpdateStockRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0" example:"12"`
}

// ValidateOfferResponse is the outcome of an on-demand validation
// @name HandlerValidateOfferResponse
type ValidateOfferResponse struct {
	Status string                  `json:"status" example:"WARNINGS"`
	Errors []offer.ValidationError `json:"errors"`
	Offer  OfferResponse           `json:"offer"`
}

// ApproveImportRequest names the marketplace offers to import
// @name HandlerApproveImportRequest
type ApproveImportRequest struct {
	ExternalIDs []string `json:"external_ids" binding:"required,min=1,dive,required" example:"7712345678"`
}

// ImportPayloadResponse is the result of importing one exported offer document
// @name HandlerImportPayloadResponse
type ImportPayloadResponse struct {
	Created bool          `json:"created"`
	Offer   OfferResponse `json:"offer"`
}

// AuthorizeResponse carries the marketplace consent URL
// @name HandlerAuthorizeResponse
type AuthorizeResponse struct {
	URL   string `json:"url" example:"https://allegro.pl/auth/oauth/authorize?response_type=code"`
	State string `json:"state"`
}

// CallbackResponse confirms a stored seller authorization
// @name HandlerCallbackResponse
type CallbackResponse struct {
	UserID    string    `json:"user_id" example:"seller-1"`
	UserName  string    `json:"user_name,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
