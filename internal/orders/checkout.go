package orders

import (
	"context"

	"genericstore/internal/apperr"
	"genericstore/internal/events"
	"genericstore/internal/model"
	"genericstore/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Checkout opens an order and fills it in one step. Either the order exists
// afterwards with all requested line items, or nothing was written.
type Checkout struct {
	manager   *Manager
	fulfiller *Fulfiller
}

func NewCheckout(m *Manager, f *Fulfiller) *Checkout {
	return &Checkout{manager: m, fulfiller: f}
}

// CreateAndFulfill checks the user like CreateOrder and the lines like
// Fulfill, then creates the order and its line items in one transaction.
func (c *Checkout) CreateAndFulfill(ctx context.Context, userID uint, lines []Line) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateAndFulfill")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("order.lines", len(lines)),
	)

	if userID == 0 {
		err := apperr.InvalidArgument("user id must be positive")
		recordError(span, err)
		return model.Order{}, err
	}
	if err := checkLines(lines); err != nil {
		recordError(span, err)
		return model.Order{}, err
	}
	u, err := c.manager.verifiedUser(ctx, userID)
	if err != nil {
		recordError(span, err)
		return model.Order{}, err
	}

	var order model.Order
	err = c.manager.store.Transaction(ctx, func(tx *store.Store) error {
		o := c.manager.newOrder(u)
		if err := tx.CreateOrder(ctx, &o); err != nil {
			return err
		}
		order, err = c.fulfiller.fill(ctx, tx, o, lines)
		return err
	})
	if err != nil {
		recordError(span, err)
		c.fulfiller.logFailure(err, zap.Uint("user_id", userID))
		return model.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", int64(order.ID)))
	span.SetStatus(codes.Ok, "order created and fulfilled")
	c.manager.logger.Info("order created and fulfilled",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", order.UserID),
		zap.Int("lines", len(lines)))

	c.manager.publishCreated(ctx, order)
	c.fulfiller.opts.publish(ctx, c.fulfiller.logger, events.EventOrderFulfilled, order.ID, fulfilledPayload(order, lines))
	return order, nil
}
