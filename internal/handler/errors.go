package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/domain/order"
)

// errUnknownMethod rejects payment methods outside cash/upi/card during
// decoding.
var errUnknownMethod = errors.New("unknown payment method")

// Query parameter validation failures for the history listing.
var (
	errBadLimit  = errors.New("limit must be a non-negative integer")
	errBadOffset = errors.New("offset must be a non-negative integer")
)

// writeError maps a domain error onto an HTTP status and a small JSON
// body. Validation problems are 400, missing resources 404, state machine
// and balance conflicts 409, overpayment 422; everything unrecognized is
// logged and becomes an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request handling failed", zap.Error(err))
		msg = "internal server error"
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

func classifyError(err error) (status int, code string) {
	var (
		serveErr *order.InvalidServeError
		overpay  *order.OverpaymentError
		stateErr *order.InvalidStateError
		notFound *order.MenuItemNotFoundError
		badQty   *order.InvalidQuantityError
		badTable *order.TableOutOfRangeError
	)
	switch {
	case errors.Is(err, order.ErrEmptyOrder):
		return http.StatusBadRequest, "empty_order"
	case errors.Is(err, order.ErrNonPositivePayment):
		return http.StatusBadRequest, "invalid_payment"
	case errors.As(err, &serveErr):
		return http.StatusBadRequest, "invalid_serve"
	case errors.As(err, &badQty):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.As(err, &badTable):
		return http.StatusBadRequest, "table_out_of_range"
	case errors.As(err, &notFound):
		return http.StatusBadRequest, "unknown_menu_item"
	case errors.Is(err, order.ErrNotFound), errors.Is(err, menu.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, order.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, order.ErrUnbalancedPayment):
		return http.StatusConflict, "unbalanced_payment"
	case errors.As(err, &stateErr):
		return http.StatusConflict, "invalid_state"
	case errors.As(err, &overpay):
		return http.StatusUnprocessableEntity, "overpayment"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// badRequest reports a malformed request body or parameter.
func badRequest(w http.ResponseWriter, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str("bad_request") })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, http.StatusBadRequest, e.Bytes())
}
