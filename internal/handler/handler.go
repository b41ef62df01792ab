// Package handler exposes the order engine over HTTP. Routing uses
// net/http ServeMux patterns; request and response bodies go through
// go-faster/jx.
package handler

import (
	"net/http"
	"time"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/domain/order"
	"github.com/masalabox/cafe-pos/pkg/querycache"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ActiveOrdersTTL bounds staleness of the cached active-orders listing.
	ActiveOrdersTTL time.Duration
}

// Handler translates HTTP requests into order service and menu repository
// calls. Read endpoints for orders go through a query cache that every
// mutating endpoint invalidates.
type Handler struct {
	menu   menu.Repository
	orders *order.Service

	listings     *querycache.Cache[[]order.Order]
	orderByID    *querycache.Cache[*order.Order]
	orderUpdates *querycache.Optimistic[*order.Order]
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, menuRepo menu.Repository, orders *order.Service) *Handler {
	byID := querycache.New[*order.Order](cfg.ActiveOrdersTTL)
	return &Handler{
		menu:         menuRepo,
		orders:       orders,
		listings:     querycache.New[[]order.Order](cfg.ActiveOrdersTTL),
		orderByID:    byID,
		orderUpdates: querycache.NewOptimistic(byID),
	}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/menu", h.ListMenu)
	mux.HandleFunc("GET /api/menu/{id}", h.GetMenuItem)

	mux.HandleFunc("POST /api/orders", h.SubmitCart)
	mux.HandleFunc("GET /api/orders/active", h.ListActive)
	mux.HandleFunc("GET /api/orders/history", h.History)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /api/orders/{id}", h.EditOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.CancelOrder)

	mux.HandleFunc("POST /api/orders/{id}/items/{itemID}/serve", h.ServeItem)
	mux.HandleFunc("PUT /api/orders/{id}/items/{itemID}/served", h.SetServed)

	mux.HandleFunc("POST /api/orders/{id}/payments", h.AddPayments)
	mux.HandleFunc("PUT /api/orders/{id}/payments", h.ReplacePayments)
	mux.HandleFunc("POST /api/orders/{id}/complete", h.CompleteOrder)
}

const activeListingKey = "listing/active"

// invalidateListings drops cached listings after any order mutation. The
// per-order cache entry is maintained by the optimistic updater instead.
func (h *Handler) invalidateListings() {
	h.listings.InvalidatePrefix("listing/")
}
