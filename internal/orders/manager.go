package orders

import (
	"context"
	"fmt"

	"genericstore/internal/apperr"
	"genericstore/internal/events"
	"genericstore/internal/model"
	"genericstore/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// UserDirectory resolves users. found=false means the id is unknown.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id uint) (model.User, bool, error)
}

// Manager owns the existence of orders and gates who may open one.
type Manager struct {
	store  *store.Store
	users  UserDirectory
	logger *zap.Logger
	opts   options
}

func NewManager(s *store.Store, users UserDirectory, logger *zap.Logger, opts ...Option) *Manager {
	return &Manager{store: s, users: users, logger: logger, opts: buildOptions(opts)}
}

// CreateOrder opens a Pending order for a user whose email is verified.
func (m *Manager) CreateOrder(ctx context.Context, userID uint) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	if userID == 0 {
		err := apperr.InvalidArgument("user id must be positive")
		recordError(span, err)
		return model.Order{}, err
	}

	u, err := m.verifiedUser(ctx, userID)
	if err != nil {
		recordError(span, err)
		return model.Order{}, err
	}

	o := m.newOrder(u)
	if err := m.store.CreateOrder(ctx, &o); err != nil {
		recordError(span, err)
		return model.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", int64(o.ID)))
	span.SetStatus(codes.Ok, "order created")
	m.logger.Info("order created", zap.Uint("order_id", o.ID), zap.Uint("user_id", o.UserID))
	m.publishCreated(ctx, o)
	return o, nil
}

// verifiedUser resolves userID and requires a verified email.
func (m *Manager) verifiedUser(ctx context.Context, userID uint) (model.User, error) {
	u, found, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	if !found {
		return model.User{}, fmt.Errorf("user %d: %w", userID, apperr.ErrUserNotExists)
	}
	if !u.EmailVerified {
		return model.User{}, fmt.Errorf("user %d: %w", userID, apperr.ErrEmailNotVerified)
	}
	return u, nil
}

func (m *Manager) newOrder(u model.User) model.Order {
	return model.Order{
		UserID:    u.ID,
		Status:    model.StatusPending,
		CreatedAt: m.opts.now().UTC(),
	}
}

func (m *Manager) publishCreated(ctx context.Context, o model.Order) {
	m.opts.publish(ctx, m.logger, events.EventOrderCreated, o.ID, events.OrderCreatedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
	})
}

// GetOrder returns the order with its line items. found=false means no such
// order; that is not an error.
func (m *Manager) GetOrder(ctx context.Context, orderID uint) (model.Order, bool, error) {
	o, found, err := m.store.FindOrderByID(ctx, orderID)
	if err != nil || !found {
		return model.Order{}, false, err
	}
	items, err := m.store.ListOrderItems(ctx, o.ID)
	if err != nil {
		return model.Order{}, false, err
	}
	o.Items = items
	return o, true, nil
}

// DeleteOrder removes an order and its line items.
func (m *Manager) DeleteOrder(ctx context.Context, orderID uint) error {
	if orderID == 0 {
		return apperr.InvalidArgument("order id must be positive")
	}
	err := m.store.Transaction(ctx, func(tx *store.Store) error {
		existed, err := tx.DeleteOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrOrderNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("order deleted", zap.Uint("order_id", orderID))
	return nil
}

// ListOrdersForUser returns the user's orders, oldest first.
func (m *Manager) ListOrdersForUser(ctx context.Context, userID uint) ([]model.Order, error) {
	if userID == 0 {
		return nil, apperr.InvalidArgument("user id must be positive")
	}
	_, found, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("user %d: %w", userID, apperr.ErrUserNotExists)
	}
	return m.store.ListOrdersByUser(ctx, userID)
}

// ListOrders returns every order, oldest first.
func (m *Manager) ListOrders(ctx context.Context) ([]model.Order, error) {
	return m.store.ListOrders(ctx)
}

// GetOrderItems returns the order's line items, possibly none.
func (m *Manager) GetOrderItems(ctx context.Context, orderID uint) ([]model.OrderItem, error) {
	if orderID == 0 {
		return nil, apperr.InvalidArgument("order id must be positive")
	}
	_, found, err := m.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrOrderNotFound)
	}
	return m.store.ListOrderItems(ctx, orderID)
}
