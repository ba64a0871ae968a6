package store

import (
	"context"
	"errors"
	"testing"

	"genericstore/internal/db/dbtest"
	"genericstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupsReportNotFound(t *testing.T) {
	s := New(dbtest.New(t))
	ctx := context.Background()

	_, found, err := s.FindProductByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.FindUserByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.FindOrderByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)

	items, err := s.ListOrderItems(ctx, 42)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCreateOrderRejectsUnknownStatus(t *testing.T) {
	s := New(dbtest.New(t))
	err := s.CreateOrder(context.Background(), &model.Order{UserID: 1, Status: "Shipped"})
	assert.Error(t, err)
}

func TestDecrementStockFloor(t *testing.T) {
	gdb := dbtest.New(t)
	s := New(gdb)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, gdb, "P")
	rec := dbtest.SeedStock(t, gdb, p.ID, 3)

	ok, err := s.DecrementStock(ctx, rec.ID, 4)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, dbtest.StockOf(t, gdb, p.ID))

	ok, err = s.DecrementStock(ctx, rec.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, dbtest.StockOf(t, gdb, p.ID))
}

func TestUpsertStock(t *testing.T) {
	gdb := dbtest.New(t)
	s := New(gdb)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, gdb, "P")

	first, err := s.UpsertStock(ctx, p.ID, 5)
	require.NoError(t, err)
	second, err := s.UpsertStock(ctx, p.ID, 8)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert keeps one record per product")
	assert.Equal(t, 8, second.Quantity)
}

func TestTransactionRollsBack(t *testing.T) {
	gdb := dbtest.New(t)
	s := New(gdb)
	ctx := context.Background()
	u := dbtest.SeedUser(t, gdb, "tx@example.com", true)
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.CreateOrder(ctx, &model.Order{UserID: u.ID, Status: model.StatusPending}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.ListOrdersByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
