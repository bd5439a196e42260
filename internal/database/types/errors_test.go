package types_test

import (
	"testing"
	"time"

	"github.com/harborchat/harbor/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityErrorsMapToErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{
			name: "missing message maps to not found",
			err:  types.ErrMessageNotFound,
			kind: types.ErrNotFound,
		},
		{
			name: "category in another server maps to validation",
			err:  types.ErrCategoryServerMismatch,
			kind: types.ErrValidation,
		},
		{
			name: "reply outside channel maps to validation",
			err:  types.ErrReplyOutsideChannel,
			kind: types.ErrValidation,
		},
		{
			name: "duplicate member maps to conflict",
			err:  types.ErrDuplicateMember,
			kind: types.ErrConflict,
		},
		{
			name: "duplicate participant maps to conflict",
			err:  types.ErrDuplicateParticipant,
			kind: types.ErrConflict,
		},
		{
			name: "default role deletion maps to invariant violation",
			err:  types.ErrDefaultRoleImmutable,
			kind: types.ErrInvariantViolation,
		},
		{
			name: "owner leaving maps to invariant violation",
			err:  types.ErrOwnerCannotLeave,
			kind: types.ErrInvariantViolation,
		},
		{
			name: "unknown invite maps to not found",
			err:  types.ErrInviteNotFound,
			kind: types.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, tt.err, tt.kind)
		})
	}
}

func TestRateLimitErrorUnwrapsToKind(t *testing.T) {
	t.Parallel()

	err := &types.RateLimitError{RetryAfter: 3 * time.Second}

	require.ErrorIs(t, err, types.ErrRateLimited)
	assert.Contains(t, err.Error(), "3s")
}
