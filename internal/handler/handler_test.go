package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/domain/order"
)

type stubMenuRepo struct {
	items map[string]menu.Item
}

func newStubMenuRepo() *stubMenuRepo {
	return &stubMenuRepo{items: map[string]menu.Item{
		"m1": {ID: "m1", Name: "Masala Dosa", UnitPrice: 10000, Available: true},
		"m2": {ID: "m2", Name: "Filter Coffee", UnitPrice: 5000, Available: true},
	}}
}

func (s *stubMenuRepo) List(_ context.Context) ([]menu.Item, error) {
	out := make([]menu.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, nil
}

func (s *stubMenuRepo) GetByID(_ context.Context, id string) (*menu.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (s *stubMenuRepo) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	out := make([]menu.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type stubOrderRepo struct {
	orders   map[string]*order.Order
	requests map[string]bool
	seq      int64
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[string]*order.Order), requests: make(map[string]bool)}
}

func (s *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrderRepo) FindActiveByTable(_ context.Context, table int) (*order.Order, error) {
	for _, o := range s.orders {
		if o.TableNumber == table && o.Status == order.StatusActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *stubOrderRepo) ReplaceItems(_ context.Context, o *order.Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubOrderRepo) UpdateServed(_ context.Context, orderID, itemID string, served int) error {
	o, ok := s.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].QuantityServed = served
		}
	}
	return nil
}

func (s *stubOrderRepo) AddPayments(_ context.Context, orderID, requestID string, payments []order.Payment) error {
	if s.requests[requestID] {
		return order.ErrDuplicateRequest
	}
	o, ok := s.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	s.requests[requestID] = true
	o.Payments = append(o.Payments, payments...)
	return nil
}

func (s *stubOrderRepo) ReplacePayments(_ context.Context, orderID string, payments []order.Payment) error {
	o, ok := s.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Payments = payments
	return nil
}

func (s *stubOrderRepo) SetStatus(_ context.Context, orderID string, from, to order.Status) error {
	o, ok := s.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return &order.InvalidStateError{Op: "transition", Status: o.Status}
	}
	o.Status = to
	return nil
}

func (s *stubOrderRepo) ListActive(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.orders {
		if o.Status == order.StatusActive {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) History(_ context.Context, _ order.HistoryFilter) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.orders {
		if o.Status != order.StatusActive {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) NextOrderNumber(_ context.Context) (int64, error) {
	s.seq++
	return s.seq, nil
}

type noopReceipts struct{}

func (noopReceipts) Generate(_ context.Context, _ *order.Order) error { return nil }

func newTestMux(t *testing.T) (*http.ServeMux, *stubOrderRepo) {
	t.Helper()
	repo := newStubOrderRepo()
	svc := order.NewService(newStubMenuRepo(), repo, noopReceipts{},
		order.Config{GSTRatePercent: 18, MaxTables: 30})
	h := NewHandler(Config{ActiveOrdersTTL: 30 * time.Second}, newStubMenuRepo(), svc)

	mux := http.NewServeMux()
	h.Register(mux)
	return mux, repo
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

const submitBody = `{"tableNumber":4,"customerName":"Anand",
	"items":[{"menuItemId":"m1","quantity":2},{"menuItemId":"m2","quantity":1}]}`

func submitOrder(t *testing.T, mux *http.ServeMux) map[string]any {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/orders", submitBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody(t, rec)
}

func TestSubmitCart(t *testing.T) {
	mux, _ := newTestMux(t)

	got := submitOrder(t, mux)
	assert.Equal(t, "ORD-0001", got["orderNumber"])
	assert.Equal(t, "active", got["status"])
	assert.EqualValues(t, 25000, got["subtotal"])
	assert.EqualValues(t, 4500, got["gstAmount"])
	assert.EqualValues(t, 2250, got["sgst"])
	assert.EqualValues(t, 2250, got["cgst"])
	assert.EqualValues(t, 29500, got["totalAmount"])
	assert.EqualValues(t, 29500, got["outstanding"])
}

func TestSubmitCart_Validation(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders",
		`{"tableNumber":99,"items":[{"menuItemId":"m1","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "table_out_of_range", decodeBody(t, rec)["code"])

	rec = do(t, mux, http.MethodPost, "/api/orders",
		`{"tableNumber":1,"items":[{"menuItemId":"ghost","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_menu_item", decodeBody(t, rec)["code"])

	rec = do(t, mux, http.MethodPost, "/api/orders", `{"tableNumber":1,"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_order", decodeBody(t, rec)["code"])

	rec = do(t, mux, http.MethodPost, "/api/orders", `{"tableNumber":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)

	rec := do(t, mux, http.MethodGet, "/api/orders/"+created["id"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created["id"], decodeBody(t, rec)["id"])

	rec = do(t, mux, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListActive(t *testing.T) {
	mux, _ := newTestMux(t)
	submitOrder(t, mux)

	rec := do(t, mux, http.MethodGet, "/api/orders/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestListActive_InvalidatedByCancel(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)

	rec := do(t, mux, http.MethodGet, "/api/orders/active", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/orders/"+created["id"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", decodeBody(t, rec)["status"])

	// Cache was invalidated, the canceled order is gone from the listing.
	rec = do(t, mux, http.MethodGet, "/api/orders/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestServeItem(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)
	items := created["items"].([]any)
	itemID := items[0].(map[string]any)["id"].(string)

	url := "/api/orders/" + created["id"].(string) + "/items/" + itemID + "/serve"
	rec := do(t, mux, http.MethodPost, url, `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody(t, rec)["items"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 2, got["quantityServed"]) // clamped to ordered quantity
	assert.Equal(t, true, got["isServed"])
}

func TestPaymentsFlow(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)
	base := "/api/orders/" + created["id"].(string)

	rec := do(t, mux, http.MethodPost, base+"/payments",
		`{"requestId":"r1","payments":[{"method":"cash","amount":20000}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 9500, decodeBody(t, rec)["outstanding"])

	// Overpayment is 422 and leaves the payment list alone.
	rec = do(t, mux, http.MethodPost, base+"/payments",
		`{"requestId":"r2","payments":[{"method":"upi","amount":9600}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "overpayment", decodeBody(t, rec)["code"])

	// Completing now is a conflict.
	rec = do(t, mux, http.MethodPost, base+"/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "unbalanced_payment", decodeBody(t, rec)["code"])

	rec = do(t, mux, http.MethodPost, base+"/payments",
		`{"requestId":"r3","payments":[{"method":"upi","amount":9500}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, base+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decodeBody(t, rec)["status"])

	// Cancel after payment is a conflict.
	rec = do(t, mux, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, rec)["code"])
}

func TestAddPayments_UnknownMethod(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)

	rec := do(t, mux, http.MethodPost, "/api/orders/"+created["id"].(string)+"/payments",
		`{"payments":[{"method":"cheque","amount":100}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplacePayments(t *testing.T) {
	mux, _ := newTestMux(t)
	created := submitOrder(t, mux)
	base := "/api/orders/" + created["id"].(string)

	rec := do(t, mux, http.MethodPost, base+"/payments",
		`{"payments":[{"method":"cash","amount":29500}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, mux, http.MethodPost, base+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPut, base+"/payments",
		`{"payments":[{"method":"upi","amount":20000},{"method":"card","amount":9500}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "paid", got["status"])
	assert.Len(t, got["payments"].([]any), 2)

	// A replacement that breaks the exact match is rejected.
	rec = do(t, mux, http.MethodPut, base+"/payments",
		`{"payments":[{"method":"upi","amount":100}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHistory_BadParams(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/orders/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, mux, http.MethodGet, "/api/orders/history?from=notadate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, mux, http.MethodGet, "/api/orders/history?from=2026-08-01&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMenu(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/menu", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestGetMenuItem(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/menu/m1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Masala Dosa", got["name"])
	assert.EqualValues(t, 10000, got["unitPrice"])

	rec = do(t, mux, http.MethodGet, "/api/menu/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
