// Package receipt holds receipt generator implementations. Rendering and
// printing are out of scope for the engine; the service only needs a
// collaborator to hand the final balanced order to.
package receipt

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/masalabox/cafe-pos/internal/domain/order"
)

var _ order.ReceiptGenerator = (*LogGenerator)(nil)

// LogGenerator records completed orders in the application log instead of
// producing a printable document. It never fails, so completion is never
// blocked on receipt output.
type LogGenerator struct{}

// NewLogGenerator returns a LogGenerator.
func NewLogGenerator() *LogGenerator {
	return &LogGenerator{}
}

// Generate logs a one-line receipt summary.
func (g *LogGenerator) Generate(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Receipt generated",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("table", o.TableNumber),
		zap.Int64("total_paise", o.TotalAmount),
		zap.Int("payments", len(o.Payments)),
	)
	return nil
}
