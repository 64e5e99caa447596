package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_ReserveReleaseKeepsCapacity(t *testing.T) {
	p := &Product{ID: "p1", OnHand: 5}

	require.NoError(t, p.Reserve(3))
	assert.Equal(t, 2, p.OnHand)
	assert.Equal(t, 3, p.Reserved)
	assert.Equal(t, 5, p.Capacity())

	require.NoError(t, p.Release(2))
	assert.Equal(t, 4, p.OnHand)
	assert.Equal(t, 1, p.Reserved)
	assert.Equal(t, 5, p.Capacity())
}

func TestProduct_ReserveReportsAvailable(t *testing.T) {
	p := &Product{ID: "p1", OnHand: 1}

	err := p.Reserve(2)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, p.OnHand)
}

func TestProduct_ReleaseCannotExceedReserved(t *testing.T) {
	p := &Product{ID: "p1", OnHand: 4, Reserved: 1}

	assert.ErrorIs(t, p.Release(2), ErrOverRelease)
	assert.Equal(t, 4, p.OnHand)
	assert.ErrorIs(t, p.Consume(2), ErrOverRelease)
}

func TestProduct_RejectsNonPositiveQuantities(t *testing.T) {
	p := &Product{ID: "p1", OnHand: 4}
	for _, q := range []int{0, -1} {
		assert.ErrorIs(t, p.Reserve(q), ErrInvalidQuantity)
		assert.ErrorIs(t, p.Release(q), ErrInvalidQuantity)
		assert.ErrorIs(t, p.Restock(q), ErrInvalidQuantity)
	}
}
