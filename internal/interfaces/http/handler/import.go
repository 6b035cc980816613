package handler

import (
	"github.com/gin-gonic/gin"
	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
)

// ImportHandler handles marketplace import endpoints
type ImportHandler struct {
	BaseHandler
	importService *offerapp.ImportService
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(importService *offerapp.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// Preview godoc
// @ID           previewImport
// @Summary      Preview a marketplace import
// @Description  List every marketplace offer of the seller and flag the ones already stored. Nothing is written.
// @Tags         import
// @Produce      json
// @Param        X-User-ID header string true "Seller whose marketplace authorization is used"
// @Success      200 {object} APIResponse[offerapp.ImportPreview]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /import/preview [get]
func (h *ImportHandler) Preview(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	preview, err := h.importService.PreviewImport(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Approve godoc
// @ID           approveImport
// @Summary      Import selected offers
// @Description  Import the approved marketplace offers. Offers already stored are updated in place.
// @Tags         import
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Seller whose marketplace authorization is used"
// @Param        request body ApproveImportRequest true "Offers to import"
// @Success      200 {object} APIResponse[offerapp.ImportSummary]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /import/approve [post]
func (h *ImportHandler) Approve(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var req ApproveImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	summary, err := h.importService.ApproveImport(c.Request.Context(), userID, req.ExternalIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ImportAll godoc
// @ID           importAllOffers
// @Summary      Import every marketplace offer
// @Description  Page through the seller's marketplace offers and upsert each one by external id
// @Tags         import
// @Produce      json
// @Param        X-User-ID header string true "Seller whose marketplace authorization is used"
// @Success      200 {object} APIResponse[offerapp.ImportSummary]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /import/all [post]
func (h *ImportHandler) ImportAll(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	summary, err := h.importService.ImportAll(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ImportPayload godoc
// @ID           importOfferPayload
// @Summary      Import one exported offer document
// @Description  Store an offer document exported from the marketplace sales center. The body is the raw offer JSON.
// @Tags         import
// @Accept       json
// @Produce      json
// @Param        request body object true "Marketplace offer document"
// @Success      200 {object} APIResponse[ImportPayloadResponse]
// @Success      201 {object} APIResponse[ImportPayloadResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /import/payload [post]
func (h *ImportHandler) ImportPayload(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.BadRequest(c, "Could not read request body")
		return
	}
	o, created, err := h.importService.ImportPayload(c.Request.Context(), body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := ImportPayloadResponse{Created: created, Offer: toOfferResponse(o, false)}
	if created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// requireUser answers 400 when the request names no seller
func (h *BaseHandler) requireUser(c *gin.Context) (string, bool) {
	userID := getUserID(c)
	if userID == "" {
		h.BadRequest(c, "Seller is required, set the "+UserIDHeader+" header")
		return "", false
	}
	return userID, true
}
