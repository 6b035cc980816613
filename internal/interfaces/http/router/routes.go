package router

import (
	"net/http"

	"github.com/speakASAP/allegro-service/internal/interfaces/http/handler"
)

// Handlers groups the HTTP handlers served under the API prefix. Nil
// handlers leave their area unmounted.
type Handlers struct {
	Offers *handler.OfferHandler
	Import *handler.ImportHandler
	OAuth  *handler.OAuthHandler
	Stock  *handler.StockHandler
	Sync   *handler.SyncHandler
	System *handler.SystemHandler
}

// Groups builds the domain groups for h
func (h Handlers) Groups() []*DomainGroup {
	var groups []*DomainGroup

	if h.Offers != nil {
		g := NewDomainGroup("offers", "/offers")
		g.Handle(http.MethodGet, "", "List offers", h.Offers.List)
		// static export paths are registered ahead of the :id routes
		g.Handle(http.MethodGet, "/export.csv", "Export offers as CSV", h.Offers.ExportCSV)
		g.Handle(http.MethodGet, "/export.xlsx", "Export offers as XLSX", h.Offers.ExportXLSX)
		g.Handle(http.MethodGet, "/:id", "Get an offer with its raw snapshot", h.Offers.GetByID)
		g.Handle(http.MethodPatch, "/:id", "Update an offer and queue the marketplace write", h.Offers.Update)
		g.Handle(http.MethodPut, "/:id/stock", "Set offer stock", h.Offers.UpdateStock)
		g.Handle(http.MethodPost, "/:id/validate", "Validate an offer", h.Offers.Validate)
		groups = append(groups, g)
	}

	if h.Import != nil {
		g := NewDomainGroup("import", "/import")
		g.Handle(http.MethodGet, "/preview", "Preview marketplace offers", h.Import.Preview)
		g.Handle(http.MethodPost, "/approve", "Import selected offers", h.Import.Approve)
		g.Handle(http.MethodPost, "/all", "Import every marketplace offer", h.Import.ImportAll)
		g.Handle(http.MethodPost, "/payload", "Import one offer document", h.Import.ImportPayload)
		groups = append(groups, g)
	}

	if h.OAuth != nil {
		g := NewDomainGroup("oauth", "/oauth")
		g.Handle(http.MethodGet, "/authorize", "Start seller authorization", h.OAuth.Authorize)
		g.Handle(http.MethodGet, "/callback", "Complete seller authorization", h.OAuth.Callback)
		g.Handle(http.MethodDelete, "/token", "Forget a seller token", h.OAuth.Revoke)
		groups = append(groups, g)
	}

	if h.Stock != nil {
		g := NewDomainGroup("stock", "/stock")
		g.Handle(http.MethodPost, "/reconcile", "Reconcile product and offer stock", h.Stock.Reconcile)
		groups = append(groups, g)
	}

	if h.Sync != nil {
		g := NewDomainGroup("sync", "/sync")
		g.Handle(http.MethodGet, "/jobs", "Recent propagation jobs", h.Sync.Jobs)
		g.Handle(http.MethodGet, "/stats", "Propagation queue statistics", h.Sync.Stats)
		groups = append(groups, g)
	}

	if h.System != nil {
		g := NewDomainGroup("system", "/system")
		g.GET("/info", h.System.GetSystemInfo)
		g.GET("/ping", h.System.Ping)
		groups = append(groups, g)
	}

	return groups
}

// RegisterHandlers registers every group built from h
func (r *Router) RegisterHandlers(h Handlers) *Router {
	for _, g := range h.Groups() {
		r.Register(g)
	}
	return r
}
