// Package dbtest provides a throwaway migrated database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"genericstore/internal/db"
	"genericstore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// New opens a private in-memory sqlite database. A single connection keeps
// the memory database alive and serializes transactions.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	return open(t, dsn, 1)
}

// NewFile opens a migrated database file with a pool of maxConns
// connections, so concurrent transactions really overlap.
func NewFile(t testing.TB, maxConns int) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=1"
	return open(t, dsn, maxConns)
}

func open(t testing.TB, dsn string, maxConns int) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", dsn, maxConns)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// SeedProduct inserts a catalog product and returns it.
func SeedProduct(t testing.TB, gdb *gorm.DB, name string) model.Product {
	t.Helper()
	p := model.Product{Name: name}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedStock sets the stock record of a product directly.
func SeedStock(t testing.TB, gdb *gorm.DB, productID uint, quantity int) model.StockRecord {
	t.Helper()
	rec := model.StockRecord{ProductID: productID, Quantity: quantity}
	if err := gdb.Create(&rec).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return rec
}

// SeedUser inserts a user with the given verification flag.
func SeedUser(t testing.TB, gdb *gorm.DB, email string, verified bool) model.User {
	t.Helper()
	u := model.User{Email: email, EmailVerified: verified}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// StockOf reads the current quantity of a product, -1 when it has no record.
func StockOf(t testing.TB, gdb *gorm.DB, productID uint) int {
	t.Helper()
	var rec model.StockRecord
	err := gdb.Where("product_id = ?", productID).Limit(1).Find(&rec).Error
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if rec.ID == 0 {
		return -1
	}
	return rec.Quantity
}
