package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/domain/cart"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
)

// writeJSON writes a 200 response with the encoder's buffered JSON body.
func writeJSON(w http.ResponseWriter, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

// writeError writes an error envelope {"code":N,"message":"..."}.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeDomainError maps typed domain failures to stable response codes.
// Anything unrecognized (including a missing owner user) is an internal
// condition: logged, answered with a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidDiscount   *discount.InvalidDiscountError
		productNotFound   *product.NotFoundError
		insufficientStock *product.InsufficientStockError
	)

	switch {
	case errors.Is(err, order.ErrUnauthorizedAccess):
		writeError(w, http.StatusForbidden, "User cannot place order for another user")
	case errors.As(err, &productNotFound):
		writeError(w, http.StatusNotFound, productNotFound.Error())
	case errors.As(err, &invalidDiscount):
		writeError(w, http.StatusBadRequest, invalidDiscount.Error())
	case errors.As(err, &insufficientStock):
		writeError(w, http.StatusBadRequest, insufficientStock.Error())
	case errors.Is(err, pricing.ErrExcessiveDiscount):
		writeError(w, http.StatusBadRequest, "discount exceeds 75% of the original subtotal")
	case errors.Is(err, order.ErrEmptyProducts), errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
