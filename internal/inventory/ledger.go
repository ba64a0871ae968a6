// Package inventory owns the per-product available quantity.
package inventory

import (
	"context"
	"fmt"

	"genericstore/internal/apperr"
	"genericstore/internal/model"
	"genericstore/internal/store"
	rediskey "genericstore/pkg/redis"

	"go.uber.org/zap"
)

// Ledger is the single source of truth for stock quantities.
type Ledger struct {
	store  *store.Store
	cache  *rediskey.StockCache
	logger *zap.Logger
}

// NewLedger builds a ledger. cache may be nil.
func NewLedger(s *store.Store, cache *rediskey.StockCache, logger *zap.Logger) *Ledger {
	return &Ledger{store: s, cache: cache, logger: logger}
}

// WithTx returns a ledger whose reads and writes go through tx. The cache is
// detached because nothing written in tx is committed yet.
func (l *Ledger) WithTx(tx *store.Store) *Ledger {
	return &Ledger{store: tx, logger: l.logger}
}

// GetQuantity returns the available quantity of a product, 0 when the product
// has no stock record yet.
func (l *Ledger) GetQuantity(ctx context.Context, productID uint) (int, error) {
	if productID == 0 {
		return 0, apperr.InvalidArgument("product id must be positive")
	}
	if err := l.requireProduct(ctx, productID); err != nil {
		return 0, err
	}
	rec, found, err := l.Lookup(ctx, productID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return rec.Quantity, nil
}

// Lookup returns the stock record of a product without consulting the
// catalog. found=false means no record exists, i.e. quantity 0.
func (l *Ledger) Lookup(ctx context.Context, productID uint) (model.StockRecord, bool, error) {
	return l.store.FindStockByProduct(ctx, productID)
}

// SetQuantity creates the product's stock record or overwrites its quantity.
func (l *Ledger) SetQuantity(ctx context.Context, productID uint, quantity int) (model.StockRecord, error) {
	if productID == 0 {
		return model.StockRecord{}, apperr.InvalidArgument("product id must be positive")
	}
	if quantity < 0 {
		return model.StockRecord{}, apperr.InvalidArgument("quantity must not be negative, got %d", quantity)
	}
	if err := l.requireProduct(ctx, productID); err != nil {
		return model.StockRecord{}, err
	}
	rec, err := l.store.UpsertStock(ctx, productID, quantity)
	if err != nil {
		return model.StockRecord{}, err
	}
	if err := l.cache.Set(ctx, productID, rec.Quantity); err != nil {
		l.logger.Warn("stock cache refresh failed", zap.Uint("product_id", productID), zap.Error(err))
	}
	l.logger.Info("stock quantity set", zap.Uint("product_id", productID), zap.Int("quantity", rec.Quantity))
	return rec, nil
}

// Decrement subtracts amount from rec. The floor is checked by the database at
// write time, so a stale rec.Quantity can never drive the record negative.
func (l *Ledger) Decrement(ctx context.Context, rec model.StockRecord, amount int) (model.StockRecord, error) {
	if amount <= 0 {
		return model.StockRecord{}, apperr.InvalidArgument("decrement amount must be positive, got %d", amount)
	}
	if rec.ID == 0 {
		return model.StockRecord{}, &apperr.InsufficientStockError{ProductID: rec.ProductID, Requested: amount}
	}

	ok, err := l.store.DecrementStock(ctx, rec.ID, amount)
	if err != nil {
		return model.StockRecord{}, err
	}
	cur, found, err := l.store.FindStockByProduct(ctx, rec.ProductID)
	if err != nil {
		return model.StockRecord{}, err
	}
	if !ok {
		available := 0
		if found {
			available = cur.Quantity
		}
		return model.StockRecord{}, &apperr.InsufficientStockError{
			ProductID: rec.ProductID,
			Available: available,
			Requested: amount,
		}
	}
	return cur, nil
}

func (l *Ledger) requireProduct(ctx context.Context, productID uint) error {
	_, found, err := l.store.FindProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("resolve product %d: %w", productID, err)
	}
	if !found {
		return &apperr.ProductNotFoundError{ProductID: productID}
	}
	return nil
}
