package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("validation errors match ErrInvalidInput", func(t *testing.T) {
		err := NewValidationError("quantity must be positive")
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("wrapped errors still match", func(t *testing.T) {
		err := fmt.Errorf("posting line 2: %w", NewValidationError("bad"))
		assert.True(t, errors.Is(err, ErrInvalidInput))
		var de *DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVALID_INPUT", de.Code)
	})
}

func TestNotFoundError(t *testing.T) {
	id := uuid.New()
	err := NewNotFoundError("Transfer", id)

	assert.Equal(t, "Transfer "+id.String()+" not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "NOT_FOUND", de.Code)
}

func TestInvalidStateTransitionError(t *testing.T) {
	id := uuid.New()
	err := NewInvalidStateTransitionError("ProductionBatch", id, "COMPLETED", "CANCELLED")

	assert.Contains(t, err.Error(), "cannot transition from COMPLETED to CANCELLED")
	assert.True(t, errors.Is(err, ErrInvalidState))

	var target *InvalidStateTransitionError
	require.True(t, errors.As(fmt.Errorf("cancel: %w", err), &target))
	assert.Equal(t, "COMPLETED", target.From)
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 10000, OrderDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 500, f.PageSize)
	assert.Equal(t, "asc", f.OrderDir)

	f = Filter{Page: 3, PageSize: 20, OrderDir: "desc"}.Normalize()
	assert.Equal(t, 40, f.Offset())
	assert.Equal(t, "desc", f.OrderDir)
}
