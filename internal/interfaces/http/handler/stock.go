package handler

import (
	"github.com/gin-gonic/gin"
	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
)

// StockHandler triggers stock reconciliation
type StockHandler struct {
	BaseHandler
	stockService *offerapp.StockSyncService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *offerapp.StockSyncService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

// Reconcile godoc
// @ID           reconcileStock
// @Summary      Reconcile stock
// @Description  For every product linked to offers, pick the freshest stock report and push it to the product, the warehouse and the linked offers
// @Tags         stock
// @Produce      json
// @Success      200 {object} APIResponse[offerapp.ReconcileReport]
// @Failure      500 {object} ErrorResponse
// @Router       /stock/reconcile [post]
func (h *StockHandler) Reconcile(c *gin.Context) {
	report, err := h.stockService.ReconcileProducts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
