package dbretry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harborchat/harbor/internal/database/dbretry"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "nil error",
			err:       nil,
			retryable: false,
		},
		{
			name:      "validation error",
			err:       fmt.Errorf("%w: bad name", types.ErrValidation),
			retryable: false,
		},
		{
			name:      "not found error",
			err:       types.ErrServerNotFound,
			retryable: false,
		},
		{
			name:      "forbidden error",
			err:       types.ErrForbidden,
			retryable: false,
		},
		{
			name:      "rate limit error",
			err:       &types.RateLimitError{},
			retryable: false,
		},
		{
			name:      "connection reset",
			err:       errors.New("read tcp: connection reset by peer"),
			retryable: true,
		},
		{
			name:      "broken pipe",
			err:       errors.New("write: broken pipe"),
			retryable: true,
		},
		{
			name:      "context deadline",
			err:       context.DeadlineExceeded,
			retryable: true,
		},
		{
			name:      "arbitrary error",
			err:       errors.New("syntax error"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.retryable, dbretry.IsRetryableError(tt.err))
		})
	}
}

func TestIsRetryableCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      string
		retryable bool
	}{
		{
			name:      "serialization failure",
			code:      "40001",
			retryable: true,
		},
		{
			name:      "deadlock detected",
			code:      "40P01",
			retryable: true,
		},
		{
			name:      "connection failure",
			code:      "08006",
			retryable: true,
		},
		{
			name:      "too many connections",
			code:      "53300",
			retryable: true,
		},
		{
			name:      "lock not available",
			code:      "55P03",
			retryable: true,
		},
		{
			name:      "unique violation",
			code:      "23505",
			retryable: false,
		},
		{
			name:      "syntax error",
			code:      "42601",
			retryable: false,
		},
		{
			name:      "empty code",
			code:      "",
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.retryable, dbretry.IsRetryableCode(tt.code))
		})
	}
}

func TestOperationStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0

	_, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		calls++
		return 0, types.ErrChannelNotFound
	})

	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestOperationRetriesTransientError(t *testing.T) {
	t.Parallel()

	calls := 0

	result, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}

		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestNoResultPassesThroughSuccess(t *testing.T) {
	t.Parallel()

	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
}
