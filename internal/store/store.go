// Package store is the persistence gateway for orders, line items, stock
// records and the read-only catalog and user tables. Every method runs on the
// handle the Store was built with, so a Store obtained inside Transaction
// performs all of its reads and writes in that transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genericstore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn inside one database transaction. Any error returned by
// fn, or a panic, rolls back every write fn made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// first loads a single row into dst. found=false means no such row.
func (s *Store) first(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	err := s.db.WithContext(ctx).Where(query, args...).First(dst).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// FindProductByID resolves a catalog product. found=false means unknown id.
func (s *Store) FindProductByID(ctx context.Context, id uint) (model.Product, bool, error) {
	var p model.Product
	found, err := s.first(ctx, &p, "id = ?", id)
	if err != nil {
		return model.Product{}, false, fmt.Errorf("find product %d: %w", id, err)
	}
	return p, found, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

// FindUserByID resolves a user. found=false means unknown id.
func (s *Store) FindUserByID(ctx context.Context, id uint) (model.User, bool, error) {
	var u model.User
	found, err := s.first(ctx, &u, "id = ?", id)
	if err != nil {
		return model.User{}, false, fmt.Errorf("find user %d: %w", id, err)
	}
	return u, found, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *model.Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("create order: invalid status %q", o.Status)
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// FindOrderByID loads an order without its items. found=false means unknown id.
func (s *Store) FindOrderByID(ctx context.Context, id uint) (model.Order, bool, error) {
	var o model.Order
	found, err := s.first(ctx, &o, "id = ?", id)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("find order %d: %w", id, err)
	}
	return o, found, nil
}

// DeleteOrder removes an order and its line items. It reports whether the
// order existed. Callers wanting both deletes atomic run it in Transaction.
func (s *Store) DeleteOrder(ctx context.Context, id uint) (bool, error) {
	db := s.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
		return false, fmt.Errorf("delete items of order %d: %w", id, err)
	}
	res := db.Delete(&model.Order{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete order %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListOrdersByUser returns the user's orders, oldest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID uint) ([]model.Order, error) {
	var list []model.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list orders of user %d: %w", userID, err)
	}
	return list, nil
}

// ListOrders returns all orders, oldest first.
func (s *Store) ListOrders(ctx context.Context) ([]model.Order, error) {
	list := []model.Order{}
	err := s.db.WithContext(ctx).
		Order("created_at ASC").Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

func (s *Store) CreateOrderItem(ctx context.Context, it *model.OrderItem) error {
	if err := s.db.WithContext(ctx).Create(it).Error; err != nil {
		return fmt.Errorf("create item for order %d: %w", it.OrderID, err)
	}
	return nil
}

// ListOrderItems returns the order's line items in insertion order.
func (s *Store) ListOrderItems(ctx context.Context, orderID uint) ([]model.OrderItem, error) {
	list := []model.OrderItem{}
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list items of order %d: %w", orderID, err)
	}
	return list, nil
}

// FindStockByProduct loads the stock record of a product. found=false means
// the product has no record yet.
func (s *Store) FindStockByProduct(ctx context.Context, productID uint) (model.StockRecord, bool, error) {
	var rec model.StockRecord
	found, err := s.first(ctx, &rec, "product_id = ?", productID)
	if err != nil {
		return model.StockRecord{}, false, fmt.Errorf("find stock of product %d: %w", productID, err)
	}
	return rec, found, nil
}

// UpsertStock creates the product's stock record or overwrites its quantity.
func (s *Store) UpsertStock(ctx context.Context, productID uint, quantity int) (model.StockRecord, error) {
	rec := model.StockRecord{ProductID: productID, Quantity: quantity}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return model.StockRecord{}, fmt.Errorf("upsert stock of product %d: %w", productID, err)
	}
	saved, _, err := s.FindStockByProduct(ctx, productID)
	return saved, err
}

// DecrementStock subtracts amount from a stock record in a single conditional
// UPDATE, so the floor check and the write cannot interleave with another
// writer. ok=false means the record holds less than amount (or is gone) and
// nothing was written.
func (s *Store) DecrementStock(ctx context.Context, recordID uint, amount int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.StockRecord{}).
		Where("id = ? AND quantity >= ?", recordID, amount).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("decrement stock record %d: %w", recordID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
