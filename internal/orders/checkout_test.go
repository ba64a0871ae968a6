package orders

import (
	"context"
	"errors"
	"testing"

	"genericstore/internal/apperr"
	"genericstore/internal/db/dbtest"
	"genericstore/internal/events"
	"genericstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	list, err := f.manager.ListOrders(context.Background())
	require.NoError(t, err)
	return len(list)
}

func TestCreateAndFulfill(t *testing.T) {
	f := newFixture(t)
	u := dbtest.SeedUser(t, f.db, "checkout@example.com", true)
	p := dbtest.SeedProduct(t, f.db, "P")
	q := dbtest.SeedProduct(t, f.db, "Q")
	dbtest.SeedStock(t, f.db, p.ID, 10)
	dbtest.SeedStock(t, f.db, q.ID, 2)

	o, err := f.checkout.CreateAndFulfill(context.Background(), u.ID, []Line{
		{ProductID: p.ID, Quantity: 4},
		{ProductID: q.ID, Quantity: 2},
	})
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Equal(t, u.ID, o.UserID)
	assert.Equal(t, model.StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 6, dbtest.StockOf(t, f.db, p.ID))
	assert.Equal(t, 0, dbtest.StockOf(t, f.db, q.ID))
	assert.Equal(t, []string{events.EventOrderCreated, events.EventOrderFulfilled}, f.pub.types())
}

func TestCreateAndFulfillLeavesNoEmptyOrder(t *testing.T) {
	f := newFixture(t)
	verified := dbtest.SeedUser(t, f.db, "v@example.com", true)
	unverified := dbtest.SeedUser(t, f.db, "u@example.com", false)
	p := dbtest.SeedProduct(t, f.db, "P")
	dbtest.SeedStock(t, f.db, p.ID, 3)

	tests := []struct {
		name   string
		userID uint
		lines  []Line
		want   error
	}{
		{"insufficient stock", verified.ID, []Line{{ProductID: p.ID, Quantity: 4}}, apperr.ErrInsufficientStock},
		{"unknown product", verified.ID, []Line{{ProductID: p.ID, Quantity: 1}, {ProductID: 999, Quantity: 1}}, apperr.ErrProductNotFound},
		{"empty lines", verified.ID, nil, apperr.ErrInvalidArgument},
		{"zero user", 0, []Line{{ProductID: p.ID, Quantity: 1}}, apperr.ErrInvalidArgument},
		{"unknown user", 999, []Line{{ProductID: p.ID, Quantity: 1}}, apperr.ErrUserNotExists},
		{"unverified user", unverified.ID, []Line{{ProductID: p.ID, Quantity: 1}}, apperr.ErrEmailNotVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkout.CreateAndFulfill(context.Background(), tt.userID, tt.lines)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Zero(t, f.orderCount(t))
			assert.Equal(t, 3, dbtest.StockOf(t, f.db, p.ID))
		})
	}
	assert.Empty(t, f.pub.types())
}
