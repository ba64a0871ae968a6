package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: 7, Available: 5, Requested: 6}
	wrapped := fmt.Errorf("fulfill order 1: %w", err)

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.NotErrorIs(t, wrapped, ErrProductNotFound)

	var ise *InsufficientStockError
	if assert.True(t, errors.As(wrapped, &ise)) {
		assert.Equal(t, 5, ise.Available)
		assert.Equal(t, 6, ise.Requested)
	}
	assert.Equal(t, "insufficient stock for product 7: available 5, requested 6", err.Error())

	assert.ErrorIs(t, &ProductNotFoundError{ProductID: 999}, ErrProductNotFound)
	assert.ErrorIs(t, InvalidArgument("line %d: quantity must be positive", 2), ErrInvalidArgument)
}

func TestCode(t *testing.T) {
	cases := map[string]error{
		"INVALID_INPUT":      InvalidArgument("empty"),
		"USER_NOT_EXISTS":    ErrUserNotExists,
		"EMAIL_NOT_VERIFIED": fmt.Errorf("create order: %w", ErrEmailNotVerified),
		"ORDER_NOT_FOUND":    ErrOrderNotFound,
		"PRODUCT_NOT_FOUND":  &ProductNotFoundError{ProductID: 1},
		"INSUFFICIENT_STOCK": &InsufficientStockError{},
		"UNEXPECTED_ERROR":   errors.New("disk full"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Code(err), err.Error())
	}
	assert.False(t, IsDomain(errors.New("boom")))
	assert.True(t, IsDomain(ErrOrderNotFound))
}
