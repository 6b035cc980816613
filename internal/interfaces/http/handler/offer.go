package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OfferHandler handles offer-related API endpoints
type OfferHandler struct {
	BaseHandler
	offerService  *offerapp.OfferService
	exportService *offerapp.ExportService
}

// NewOfferHandler creates a new OfferHandler
func NewOfferHandler(offerService *offerapp.OfferService, exportService *offerapp.ExportService) *OfferHandler {
	return &OfferHandler{
		offerService:  offerService,
		exportService: exportService,
	}
}

func (h *OfferHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid offer ID format")
		return uuid.Nil, false
	}
	return id, true
}

// List godoc
// @ID           listOffers
// @Summary      List offers
// @Description  Retrieve a paginated list of local offers with optional filters
// @Tags         offers
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        search query string false "Search in title and external id"
// @Param        validation_status query string false "Validation status" Enums(READY, WARNINGS, ERRORS)
// @Param        sync_status query string false "Sync status" Enums(PENDING, SYNCED, ERROR)
// @Param        publication_status query string false "Publication status" Enums(INACTIVE, ACTIVATING, ACTIVE, ENDED)
// @Param        product_id query string false "Linked product ID" format(uuid)
// @Param        order_by query string false "Sort column" default(updated_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]OfferResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /offers [get]
func (h *OfferHandler) List(c *gin.Context) {
	var q OfferListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	offers, total, err := h.offerService.ListOffers(c.Request.Context(), q.toFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, toOfferResponses(offers), total, page, pageSize)
}

// GetByID godoc
// @ID           getOfferById
// @Summary      Get offer by ID
// @Description  Retrieve one offer including its last marketplace snapshot
// @Tags         offers
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Success      200 {object} APIResponse[OfferResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /offers/{id} [get]
func (h *OfferHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	o, err := h.offerService.GetOffer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOfferResponse(o, true))
}

// Update godoc
// @ID           updateOffer
// @Summary      Update an offer
// @Description  Apply a partial edit locally and queue the marketplace write. The response carries sync_status PENDING until the marketplace confirms.
// @Tags         offers
// @Accept       json
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Param        X-User-ID header string false "Seller whose marketplace authorization is used"
// @Param        request body UpdateOfferRequest true "Offer changes"
// @Success      200 {object} APIResponse[OfferResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /offers/{id} [patch]
func (h *OfferHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	o, err := h.offerService.UpdateOffer(c.Request.Context(), id, req.toPatch(), getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOfferResponse(o, false))
}

// UpdateStock godoc
// @ID           updateOfferStock
// @Summary      Set offer stock
// @Description  Set the stock of one offer, mirror it to the linked product and queue a stock-only marketplace write
// @Tags         offers
// @Accept       json
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Param        request body UpdateStockRequest true "New quantity"
// @Success      200 {object} APIResponse[OfferResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /offers/{id}/stock [put]
func (h *OfferHandler) UpdateStock(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	o, err := h.offerService.UpdateStock(c.Request.Context(), id, *req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOfferResponse(o, false))
}

// Validate godoc
// @ID           validateOffer
// @Summary      Validate an offer
// @Description  Recompute publish readiness. With a seller the snapshot is refreshed from the marketplace first.
// @Tags         offers
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Param        X-User-ID header string false "Seller whose marketplace authorization is used"
// @Success      200 {object} APIResponse[ValidateOfferResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /offers/{id}/validate [post]
func (h *OfferHandler) Validate(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	o, result, err := h.offerService.ValidateOffer(c.Request.Context(), id, getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ValidateOfferResponse{
		Status: string(result.Status),
		Errors: toOfferResponse(o, false).ValidationErrors,
		Offer:  toOfferResponse(o, false),
	})
}

func exportFilename(ext string) string {
	return "offers-" + time.Now().UTC().Format("20060102-150405") + "." + ext
}

// ExportCSV godoc
// @ID           exportOffersCsv
// @Summary      Export offers as CSV
// @Description  Download every local offer as a CSV file with all fields quoted
// @Tags         offers
// @Produce      text/csv
// @Success      200 {file} file
// @Failure      500 {object} ErrorResponse
// @Router       /offers/export.csv [get]
func (h *OfferHandler) ExportCSV(c *gin.Context) {
	out, err := h.exportService.ExportCSV(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename("csv")+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

// ExportXLSX godoc
// @ID           exportOffersXlsx
// @Summary      Export offers as a spreadsheet
// @Description  Download every local offer as an XLSX workbook
// @Tags         offers
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200 {file} file
// @Failure      500 {object} ErrorResponse
// @Router       /offers/export.xlsx [get]
func (h *OfferHandler) ExportXLSX(c *gin.Context) {
	data, err := h.exportService.ExportXLSX(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename("xlsx")+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
