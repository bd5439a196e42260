package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// FriendModel handles database operations for friend edges.
type FriendModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFriend creates a new friend model.
func NewFriend(db *bun.DB, logger *zap.Logger) *FriendModel {
	return &FriendModel{
		db:     db,
		logger: logger.Named("db_friend"),
	}
}

// Request creates a pending friend edge from requester to addressee. A
// second request in either direction while an edge exists is a conflict.
func (r *FriendModel) Request(ctx context.Context, requesterID, addresseeID snowflake.ID) error {
	if requesterID == addresseeID {
		return types.ErrSelfFriend
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*types.FriendEdge)(nil)).
			Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
				requesterID, addresseeID, addresseeID, requesterID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check existing friend edge: %w", err)
		}

		if exists {
			return types.ErrDuplicateFriend
		}

		now := time.Now()
		edge := &types.FriendEdge{
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			State:       enum.FriendStatePending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if _, err := tx.NewInsert().Model(edge).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return types.ErrDuplicateFriend
			}

			return fmt.Errorf("failed to create friend edge: %w", err)
		}

		return nil
	})
}

// Accept moves a pending edge to accepted. Only the addressee may accept.
func (r *FriendModel) Accept(ctx context.Context, requesterID, addresseeID snowflake.ID) error {
	res, err := r.db.NewUpdate().
		Model((*types.FriendEdge)(nil)).
		Set("state = ?", enum.FriendStateAccepted).
		Set("updated_at = ?", time.Now()).
		Where("requester_id = ?", requesterID).
		Where("addressee_id = ?", addresseeID).
		Where("state = ?", enum.FriendStatePending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to accept friend request: %w", err)
	}

	return requireAffected(res, types.ErrFriendEdgeNotFound)
}

// Remove deletes the edge between two users regardless of direction or
// state, covering both declining a request and unfriending.
func (r *FriendModel) Remove(ctx context.Context, userID, otherID snowflake.ID) error {
	res, err := r.db.NewDelete().
		Model((*types.FriendEdge)(nil)).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID, otherID, otherID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove friend edge: %w", err)
	}

	return requireAffected(res, types.ErrFriendEdgeNotFound)
}

// Get retrieves the edge between two users in either direction.
func (r *FriendModel) Get(ctx context.Context, userID, otherID snowflake.ID) (*types.FriendEdge, error) {
	edge := new(types.FriendEdge)

	err := r.db.NewSelect().
		Model(edge).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID, otherID, otherID, userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrFriendEdgeNotFound
		}

		return nil, fmt.Errorf("failed to get friend edge: %w", err)
	}

	return edge, nil
}

// ListAccepted returns all accepted edges involving the user.
func (r *FriendModel) ListAccepted(ctx context.Context, userID snowflake.ID) ([]*types.FriendEdge, error) {
	var edges []*types.FriendEdge

	err := r.db.NewSelect().
		Model(&edges).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Where("state = ?", enum.FriendStateAccepted).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	return edges, nil
}

// ListIncoming returns pending requests addressed to the user.
func (r *FriendModel) ListIncoming(ctx context.Context, userID snowflake.ID) ([]*types.FriendEdge, error) {
	var edges []*types.FriendEdge

	err := r.db.NewSelect().
		Model(&edges).
		Where("addressee_id = ?", userID).
		Where("state = ?", enum.FriendStatePending).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}

	return edges, nil
}
