package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speakASAP/allegro-service/internal/infrastructure/scheduler"
)

// SyncMonitor exposes the state of the background writer
type SyncMonitor interface {
	GetJobHistory(limit int) []scheduler.PropagationJob
	Stats() scheduler.Stats
}

// SyncHandler reports on marketplace propagation
type SyncHandler struct {
	BaseHandler
	monitor SyncMonitor
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(monitor SyncMonitor) *SyncHandler {
	return &SyncHandler{monitor: monitor}
}

// SyncJobResponse is one finished propagation job
// @name HandlerSyncJobResponse
type SyncJobResponse struct {
	ID          string     `json:"id"`
	OfferID     string     `json:"offer_id"`
	ExternalID  string     `json:"external_id"`
	Mode        string     `json:"mode" example:"STOCK_ONLY"`
	Status      string     `json:"status" example:"SUCCEEDED"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts" example:"1"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Jobs godoc
// @ID           listSyncJobs
// @Summary      Recent propagation jobs
// @Description  Newest finished marketplace writes first
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" default(50)
// @Success      200 {object} APIResponse[[]SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync/jobs [get]
func (h *SyncHandler) Jobs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs := h.monitor.GetJobHistory(limit)
	out := make([]SyncJobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = SyncJobResponse{
			ID:          j.ID.String(),
			OfferID:     j.Write.OfferID.String(),
			ExternalID:  j.Write.ExternalID,
			Mode:        string(j.Write.Mode),
			Status:      string(j.Status),
			Error:       j.Error,
			Attempts:    j.Attempt,
			EnqueuedAt:  j.EnqueuedAt,
			CompletedAt: j.CompletedAt,
		}
	}
	h.Success(c, out)
}

// Stats godoc
// @ID           getSyncStats
// @Summary      Propagation worker state
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[scheduler.Stats]
// @Router       /sync/stats [get]
func (h *SyncHandler) Stats(c *gin.Context) {
	h.Success(c, h.monitor.Stats())
}
