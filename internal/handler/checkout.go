package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/digigoods/internal/domain/order"
)

// Checkout handles POST /api/checkout. The payload's userId names the
// requested order owner; authorization against the authenticated caller
// happens in the domain layer.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	req, err := decodeCheckoutRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.CallerID = callerID

	o, err := h.orders.Checkout(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str("Order created successfully!") })
		// Final price as a JSON number with exactly 2 decimal places.
		e.Field("finalPrice", func(e *jx.Encoder) { e.RawStr(o.Total.StringFixed(2)) })
	})
	writeJSON(w, &e)
}

func decodeCheckoutRequest(r *http.Request) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest

	d := jx.Decode(r.Body, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "userId":
			id, err := d.Int64()
			req.OwnerID = id
			return err
		case "productIds":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Int64()
				req.ProductIDs = append(req.ProductIDs, id)
				return err
			})
		case "discountCodes":
			return d.Arr(func(d *jx.Decoder) error {
				code, err := d.Str()
				req.DiscountCodes = append(req.DiscountCodes, code)
				return err
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}
