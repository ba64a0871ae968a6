package orders

import (
	"context"
	"fmt"

	"genericstore/internal/apperr"
	"genericstore/internal/events"
	"genericstore/internal/inventory"
	"genericstore/internal/model"
	"genericstore/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Fulfiller turns requested lines into line items and stock decrements,
// all of them or none.
type Fulfiller struct {
	store  *store.Store
	ledger *inventory.Ledger
	logger *zap.Logger
	opts   options
}

func NewFulfiller(s *store.Store, ledger *inventory.Ledger, logger *zap.Logger, opts ...Option) *Fulfiller {
	return &Fulfiller{store: s, ledger: ledger, logger: logger, opts: buildOptions(opts)}
}

// reservation is the validated demand for one product within a request.
type reservation struct {
	product   model.Product
	stock     model.StockRecord // zero value when the product has no record
	requested int
}

// Fulfill validates every line against the catalog and the ledger, then
// creates one line item per line and decrements stock, in one transaction.
// Lines naming the same product are checked against their summed quantity.
// On success the returned order carries all of its line items.
func (f *Fulfiller) Fulfill(ctx context.Context, orderID uint, lines []Line) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Fulfill")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", int64(orderID)),
		attribute.Int("order.lines", len(lines)),
	)

	if err := validateLines(orderID, lines); err != nil {
		recordError(span, err)
		return model.Order{}, err
	}

	var order model.Order
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		o, found, err := tx.FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrOrderNotFound)
		}
		order, err = f.fill(ctx, tx, o, lines)
		return err
	})
	if err != nil {
		recordError(span, err)
		f.logFailure(err, zap.Uint("order_id", orderID))
		return model.Order{}, err
	}

	span.SetStatus(codes.Ok, "order fulfilled")
	f.logger.Info("order fulfilled", zap.Uint("order_id", orderID), zap.Int("lines", len(lines)))

	f.opts.publish(ctx, f.logger, events.EventOrderFulfilled, order.ID, fulfilledPayload(order, lines))
	return order, nil
}

// fill runs the validation pass and then the commit pass for o inside tx.
// Lines must already be shape-checked. The returned order carries all of its
// line items.
func (f *Fulfiller) fill(ctx context.Context, tx *store.Store, o model.Order, lines []Line) (model.Order, error) {
	ledger := f.ledger.WithTx(tx)
	plan, err := reserve(ctx, tx, ledger, lines)
	if err != nil {
		return model.Order{}, err
	}

	for _, l := range lines {
		item := model.OrderItem{
			OrderID:   o.ID,
			ProductID: plan[l.ProductID].product.ID,
			Quantity:  l.Quantity,
		}
		if err := tx.CreateOrderItem(ctx, &item); err != nil {
			return model.Order{}, err
		}
		if _, err := ledger.Decrement(ctx, plan[l.ProductID].stock, l.Quantity); err != nil {
			return model.Order{}, err
		}
	}

	items, err := tx.ListOrderItems(ctx, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items
	return o, nil
}

// logFailure logs rejections at info and storage failures at error.
func (f *Fulfiller) logFailure(err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperr.IsDomain(err) {
		f.logger.Info("fulfillment rejected", fields...)
		return
	}
	f.logger.Error("fulfillment failed", fields...)
}

func fulfilledPayload(o model.Order, lines []Line) events.OrderFulfilledPayload {
	payload := events.OrderFulfilledPayload{OrderID: o.ID, UserID: o.UserID}
	for _, l := range lines {
		payload.Lines = append(payload.Lines, events.LineQty{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return payload
}

// validateLines checks the request shape before any storage access.
func validateLines(orderID uint, lines []Line) error {
	if orderID == 0 {
		return apperr.InvalidArgument("order id must be positive")
	}
	return checkLines(lines)
}

func checkLines(lines []Line) error {
	if len(lines) == 0 {
		return apperr.InvalidArgument("requested lines must not be empty")
	}
	for i, l := range lines {
		if l.ProductID == 0 {
			return apperr.InvalidArgument("line %d: product id must be positive", i)
		}
		if l.Quantity <= 0 {
			return apperr.InvalidArgument("line %d: quantity must be positive, got %d", i, l.Quantity)
		}
	}
	return nil
}

// reserve is the validation pass: it resolves each product once and checks
// the running total per product against the available quantity. It writes
// nothing.
func reserve(ctx context.Context, tx *store.Store, ledger *inventory.Ledger, lines []Line) (map[uint]*reservation, error) {
	plan := make(map[uint]*reservation, len(lines))
	for _, l := range lines {
		r, ok := plan[l.ProductID]
		if !ok {
			p, found, err := tx.FindProductByID(ctx, l.ProductID)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, &apperr.ProductNotFoundError{ProductID: l.ProductID}
			}
			rec, _, err := ledger.Lookup(ctx, l.ProductID)
			if err != nil {
				return nil, err
			}
			r = &reservation{product: p, stock: rec}
			plan[l.ProductID] = r
		}
		if l.Quantity > r.stock.Quantity-r.requested {
			return nil, &apperr.InsufficientStockError{
				ProductID: l.ProductID,
				Available: r.stock.Quantity,
				Requested: r.requested + l.Quantity,
			}
		}
		r.requested += l.Quantity
	}
	return plan, nil
}
