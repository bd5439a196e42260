package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MemberModel handles database operations for server memberships. Every
// write that changes the number of members updates the server's
// denormalized member_count inside the same transaction.
type MemberModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewMember creates a new member model.
func NewMember(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_member"),
	}
}

// Create adds a membership row and increments the server's member count.
// A duplicate (user, server) pair is a conflict; the unique constraint
// guarantees at most one row even under concurrent joins.
func (r *MemberModel) Create(ctx context.Context, member *types.ServerMember) error {
	if member.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate member ID: %w", err)
		}

		member.ID = id
	}

	member.JoinedAt = time.Now()

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(member).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return types.ErrDuplicateMember
			}

			return fmt.Errorf("failed to insert member: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*types.Server)(nil)).
			Set("member_count = member_count + 1").
			Where("id = ?", member.ServerID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to increment member count: %w", err)
		}

		return requireAffected(res, types.ErrServerNotFound)
	})
}

// Delete removes a membership and decrements the member count. Removing
// the owner's own membership is rejected until ownership is transferred.
func (r *MemberModel) Delete(ctx context.Context, serverID, userID snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		server := new(types.Server)

		err := tx.NewSelect().
			Model(server).
			Column("owner_id").
			Where("id = ?", serverID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrServerNotFound
			}

			return fmt.Errorf("failed to lock server row: %w", err)
		}

		if server.OwnerID == userID {
			return types.ErrOwnerCannotLeave
		}

		res, err := tx.NewDelete().
			Model((*types.ServerMember)(nil)).
			Where("server_id = ?", serverID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}

		if err := requireAffected(res, types.ErrMemberNotFound); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*types.Server)(nil)).
			Set("member_count = member_count - 1").
			Where("id = ?", serverID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to decrement member count: %w", err)
		}

		return nil
	})
}

// Get retrieves the membership of a user in a server.
func (r *MemberModel) Get(ctx context.Context, serverID, userID snowflake.ID) (*types.ServerMember, error) {
	member := new(types.ServerMember)

	err := r.db.NewSelect().
		Model(member).
		Where("server_id = ?", serverID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrMemberNotFound
		}

		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// List returns all memberships of a server ordered by join time.
func (r *MemberModel) List(ctx context.Context, serverID snowflake.ID) ([]*types.ServerMember, error) {
	var members []*types.ServerMember

	err := r.db.NewSelect().
		Model(&members).
		Where("server_id = ?", serverID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// AddRole appends a role to the member's granted set. Granting an already
// held role is a no-op.
func (r *MemberModel) AddRole(ctx context.Context, serverID, userID, roleID snowflake.ID) error {
	res, err := r.db.NewUpdate().
		Model((*types.ServerMember)(nil)).
		Set("role_ids = array_append(role_ids, ?)", roleID).
		Where("server_id = ?", serverID).
		Where("user_id = ?", userID).
		Where("NOT (? = ANY(role_ids))", roleID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		// Either the member is absent or the role is already held; an
		// existence probe tells them apart.
		exists, err := r.db.NewSelect().
			Model((*types.ServerMember)(nil)).
			Where("server_id = ?", serverID).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check member existence: %w", err)
		}

		if !exists {
			return types.ErrMemberNotFound
		}
	}

	return nil
}

// RemoveRole removes a role from the member's granted set.
func (r *MemberModel) RemoveRole(ctx context.Context, serverID, userID, roleID snowflake.ID) error {
	res, err := r.db.NewUpdate().
		Model((*types.ServerMember)(nil)).
		Set("role_ids = array_remove(role_ids, ?)", roleID).
		Where("server_id = ?", serverID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	return requireAffected(res, types.ErrMemberNotFound)
}

// SetNickname updates the member's per-server nickname.
func (r *MemberModel) SetNickname(ctx context.Context, serverID, userID snowflake.ID, nickname string) error {
	res, err := r.db.NewUpdate().
		Model((*types.ServerMember)(nil)).
		Set("nickname = ?", nickname).
		Where("server_id = ?", serverID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set nickname: %w", err)
	}

	return requireAffected(res, types.ErrMemberNotFound)
}

// StripRoleFromAll removes a role from every member of a server. Used when
// a role is deleted so no member keeps a dangling grant.
func (r *MemberModel) StripRoleFromAll(ctx context.Context, serverID, roleID snowflake.ID) error {
	_, err := r.db.NewUpdate().
		Model((*types.ServerMember)(nil)).
		Set("role_ids = array_remove(role_ids, ?)", roleID).
		Where("server_id = ?", serverID).
		Where("? = ANY(role_ids)", roleID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to strip role from members: %w", err)
	}

	return nil
}
