package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/domain/money"
	"github.com/masalabox/cafe-pos/internal/domain/order"
)

// maxBodyBytes caps request bodies; order payloads are small.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		badRequest(w, "reading request body")
		return nil, false
	}
	return body, true
}

func encodeMenuItem(e *jx.Encoder, it menu.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Int64(it.UnitPrice) })
		e.Field("isParcel", func(e *jx.Encoder) { e.Bool(it.IsParcel) })
	})
}

// encodeOrder writes the full order representation, including the derived
// fields clients render directly: the SGST/CGST split, the amount paid,
// and the outstanding balance floored at zero for display.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	sgst, cgst := money.SplitGST(o.GSTAmount)
	outstanding := o.Outstanding()
	if outstanding < 0 {
		outstanding = 0
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.OrderNumber) })
		e.Field("tableNumber", func(e *jx.Encoder) { e.Int(o.TableNumber) })
		e.Field("customerName", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeOrderItem(e, it)
				}
			})
		})
		e.Field("payments", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range o.Payments {
					encodePayment(e, p)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(o.Subtotal) })
		e.Field("gstAmount", func(e *jx.Encoder) { e.Int64(o.GSTAmount) })
		e.Field("sgst", func(e *jx.Encoder) { e.Int64(sgst) })
		e.Field("cgst", func(e *jx.Encoder) { e.Int64(cgst) })
		e.Field("totalAmount", func(e *jx.Encoder) { e.Int64(o.TotalAmount) })
		e.Field("amountPaid", func(e *jx.Encoder) { e.Int64(o.PaymentsTotal()) })
		e.Field("outstanding", func(e *jx.Encoder) { e.Int64(outstanding) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("menuItemId", func(e *jx.Encoder) { e.Str(it.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Int64(it.UnitPrice) })
		e.Field("isParcel", func(e *jx.Encoder) { e.Bool(it.IsParcel) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("quantityServed", func(e *jx.Encoder) { e.Int(it.QuantityServed) })
		e.Field("isServed", func(e *jx.Encoder) { e.Bool(it.IsServed()) })
	})
}

func encodePayment(e *jx.Encoder, p order.Payment) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("method", func(e *jx.Encoder) { e.Str(string(p.Method)) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(p.Amount) })
	})
}

func respondOrder(w http.ResponseWriter, status int, o *order.Order) {
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, status, e.Bytes())
}

func respondOrderList(w http.ResponseWriter, orders []order.Order) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func decodeLineInputs(d *jx.Decoder) ([]order.LineInput, error) {
	var lines []order.LineInput
	err := d.Arr(func(d *jx.Decoder) error {
		var in order.LineInput
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "menuItemId":
				v, err := d.Str()
				in.MenuItemID = v
				return err
			case "quantity":
				v, err := d.Int()
				in.Quantity = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		lines = append(lines, in)
		return nil
	})
	return lines, err
}

func decodeProposals(d *jx.Decoder) ([]order.Proposal, error) {
	var proposals []order.Proposal
	err := d.Arr(func(d *jx.Decoder) error {
		var (
			p         order.Proposal
			rawMethod string
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "method":
				v, err := d.Str()
				rawMethod = v
				return err
			case "amount":
				v, err := d.Int64()
				p.Amount = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		m, ok := order.ParseMethod(rawMethod)
		if !ok {
			return errUnknownMethod
		}
		p.Method = m
		proposals = append(proposals, p)
		return nil
	})
	return proposals, err
}
