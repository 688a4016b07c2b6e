package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// AddToCart handles POST /api/carts. The cart owner is always the
// authenticated caller.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	var (
		productID int64
		quantity  int
	)
	d := jx.Decode(r.Body, 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			id, err := d.Int64()
			productID = id
			return err
		case "quantity":
			q, err := d.Int()
			quantity = q
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	line, err := h.carts.AddOrUpdate(r.Context(), callerID, productID, quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str("Product added to cart successfully!") })
		e.Field("productName", func(e *jx.Encoder) { e.Str(line.ProductName) })
	})
	writeJSON(w, &e)
}

// GetCart handles GET /api/carts, returning the caller's cart lines.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	lines, err := h.carts.Read(r.Context(), callerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, line := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Int64(line.ProductID) })
				e.Field("productName", func(e *jx.Encoder) { e.Str(line.ProductName) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
			})
		}
	})
	writeJSON(w, &e)
}
