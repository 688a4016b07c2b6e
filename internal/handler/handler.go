// Package handler implements the HTTP boundary: request decoding, caller
// authentication, and mapping of typed domain failures to response codes.
// No business rules live here.
package handler

import (
	"net/http"

	"github.com/xenking/digigoods/internal/domain/cart"
	"github.com/xenking/digigoods/internal/domain/order"
)

// Handler exposes the checkout and cart endpoints, delegating all business
// logic to the domain services.
type Handler struct {
	orders *order.Service
	carts  *cart.Service
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(orders *order.Service, carts *cart.Service) *Handler {
	return &Handler{
		orders: orders,
		carts:  carts,
	}
}

// Routes registers the API endpoints on the given mux. All routes require an
// authenticated caller; wrap the mux with Auth.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/carts", h.AddToCart)
	mux.HandleFunc("GET /api/carts", h.GetCart)
}
