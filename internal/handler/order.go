package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/masalabox/cafe-pos/internal/domain/order"
)

func orderKey(id string) string { return "order/" + id }

type submitCartRequest struct {
	TableNumber  int
	CustomerName string
	Lines        []order.LineInput
}

func decodeSubmitCart(body []byte) (submitCartRequest, error) {
	var req submitCartRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tableNumber":
			v, err := d.Int()
			req.TableNumber = v
			return err
		case "customerName":
			v, err := d.Str()
			req.CustomerName = v
			return err
		case "items":
			lines, err := decodeLineInputs(d)
			req.Lines = lines
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// SubmitCart creates the table's order, or replaces the items of its
// still-active one.
func (h *Handler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := decodeSubmitCart(body)
	if err != nil {
		badRequest(w, "malformed order payload: "+err.Error())
		return
	}

	o, err := h.orders.SubmitCart(r.Context(), order.SubmitCartRequest{
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Lines:        req.Lines,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.orderByID.Put(orderKey(o.ID), o)
	h.invalidateListings()
	respondOrder(w, http.StatusCreated, o)
}

// GetOrder returns one order by id, served from the query cache when
// fresh.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if o, ok := h.orderByID.Get(orderKey(id)); ok {
		respondOrder(w, http.StatusOK, o)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.orderByID.Put(orderKey(id), o)
	respondOrder(w, http.StatusOK, o)
}

// ListActive returns all active orders, cached for the configured TTL.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	if orders, ok := h.listings.Get(activeListingKey); ok {
		respondOrderList(w, orders)
		return
	}

	orders, err := h.orders.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.listings.Put(activeListingKey, orders)
	respondOrderList(w, orders)
}

// History returns closed and canceled orders, newest first. Query
// parameters: from, to (RFC 3339 or YYYY-MM-DD), limit, offset.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	f, err := parseHistoryFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	orders, err := h.orders.History(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondOrderList(w, orders)
}

// EditOrder replaces the order's items and optionally reassigns customer
// name or table number.
func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req := order.EditOrderRequest{OrderID: r.PathValue("id")}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tableNumber":
			v, err := d.Int()
			req.TableNumber = &v
			return err
		case "customerName":
			v, err := d.Str()
			req.CustomerName = &v
			return err
		case "items":
			lines, err := decodeLineInputs(d)
			req.Lines = lines
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		badRequest(w, "malformed order payload: "+err.Error())
		return
	}

	h.mutateOrder(w, r, req.OrderID, http.StatusOK, func() (*order.Order, error) {
		return h.orders.EditOrder(r.Context(), req)
	})
}

// ServeItem records delivered units on one order item. The body may carry
// {"quantity": n}; an empty body serves one unit.
func (h *Handler) ServeItem(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	quantity := 1
	if len(body) > 0 {
		q, err := decodeQuantity(body)
		if err != nil {
			badRequest(w, "malformed serve payload: "+err.Error())
			return
		}
		quantity = q
	}

	id, itemID := r.PathValue("id"), r.PathValue("itemID")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.ServeItem(r.Context(), id, itemID, quantity)
	})
}

// SetServed sets an item's served count to an absolute value.
func (h *Handler) SetServed(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	quantity, err := decodeQuantity(body)
	if err != nil {
		badRequest(w, "malformed serve payload: "+err.Error())
		return
	}

	id, itemID := r.PathValue("id"), r.PathValue("itemID")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.SetServedQuantity(r.Context(), id, itemID, quantity)
	})
}

// AddPayments records a payment batch. The optional requestId field makes
// retried submissions idempotent.
func (h *Handler) AddPayments(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var (
		requestID string
		proposals []order.Proposal
	)
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "requestId":
			v, err := d.Str()
			requestID = v
			return err
		case "payments":
			ps, err := decodeProposals(d)
			proposals = ps
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		badRequest(w, "malformed payment payload: "+err.Error())
		return
	}

	id := r.PathValue("id")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.AddPayments(r.Context(), id, requestID, proposals)
	})
}

// ReplacePayments swaps the order's entire payment set.
func (h *Handler) ReplacePayments(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var proposals []order.Proposal
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "payments" {
			ps, err := decodeProposals(d)
			proposals = ps
			return err
		}
		return d.Skip()
	})
	if err != nil {
		badRequest(w, "malformed payment payload: "+err.Error())
		return
	}

	id := r.PathValue("id")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.ReplacePayments(r.Context(), id, proposals)
	})
}

// CompleteOrder transitions a fully reconciled order to paid.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.CompleteOrder(r.Context(), id)
	})
}

// CancelOrder transitions an active order to canceled.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mutateOrder(w, r, id, http.StatusOK, func() (*order.Order, error) {
		return h.orders.CancelOrder(r.Context(), id)
	})
}

// mutateOrder runs op through the optimistic per-order cache entry,
// invalidates the listings on success, and writes the updated order.
func (h *Handler) mutateOrder(w http.ResponseWriter, r *http.Request, id string, status int, op func() (*order.Order, error)) {
	updated, err := h.orderUpdates.Update(orderKey(id), op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateListings()
	respondOrder(w, status, updated)
}

func decodeQuantity(body []byte) (int, error) {
	var quantity int
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			v, err := d.Int()
			quantity = v
			return err
		}
		return d.Skip()
	})
	return quantity, err
}

func parseHistoryFilter(r *http.Request) (order.HistoryFilter, error) {
	var f order.HistoryFilter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return f, err
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadLimit
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadOffset
		}
		f.Offset = n
	}
	return f, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
