package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RoleModel handles database operations for roles.
type RoleModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewRole creates a new role model.
func NewRole(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *RoleModel {
	return &RoleModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_role"),
	}
}

// Create adds a role to a server.
func (r *RoleModel) Create(ctx context.Context, role *types.Role) error {
	if strings.TrimSpace(role.Name) == "" {
		return fmt.Errorf("%w: role name is empty", types.ErrValidation)
	}

	if role.IsDefault {
		return fmt.Errorf("%w: default role is created with the server", types.ErrValidation)
	}

	if role.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate role ID: %w", err)
		}

		role.ID = id
	}

	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	_, err := r.db.NewInsert().Model(role).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// Get retrieves a role by ID.
func (r *RoleModel) Get(ctx context.Context, id snowflake.ID) (*types.Role, error) {
	role := new(types.Role)

	err := r.db.NewSelect().Model(role).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrRoleNotFound
		}

		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// GetDefault retrieves the server's default role.
func (r *RoleModel) GetDefault(ctx context.Context, serverID snowflake.ID) (*types.Role, error) {
	role := new(types.Role)

	err := r.db.NewSelect().
		Model(role).
		Where("server_id = ?", serverID).
		Where("is_default = true").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrRoleNotFound
		}

		return nil, fmt.Errorf("failed to get default role: %w", err)
	}

	return role, nil
}

// ListByServer returns all roles of a server ordered for resolution.
func (r *RoleModel) ListByServer(ctx context.Context, serverID snowflake.ID) ([]*types.Role, error) {
	var roles []*types.Role

	err := r.db.NewSelect().
		Model(&roles).
		Where("server_id = ?", serverID).
		Order("position DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// GetApplicable returns the roles that apply to a member: the server's
// default role plus the explicitly granted set. Grants referencing deleted
// roles are skipped.
func (r *RoleModel) GetApplicable(ctx context.Context, serverID snowflake.ID, roleIDs []snowflake.ID) ([]*types.Role, error) {
	var roles []*types.Role

	q := r.db.NewSelect().
		Model(&roles).
		Where("server_id = ?", serverID)

	if len(roleIDs) > 0 {
		q = q.Where("is_default = true OR id IN (?)", bun.In(roleIDs))
	} else {
		q = q.Where("is_default = true")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get applicable roles: %w", err)
	}

	return roles, nil
}

// UpdatePermissions replaces the role's permission overlay.
func (r *RoleModel) UpdatePermissions(ctx context.Context, id snowflake.ID, overlay types.Overlay) error {
	res, err := r.db.NewUpdate().
		Model((*types.Role)(nil)).
		Set("perm_allow = ?", overlay.Allow).
		Set("perm_deny = ?", overlay.Deny).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update role permissions: %w", err)
	}

	return requireAffected(res, types.ErrRoleNotFound)
}

// SetPosition moves a role in the precedence order. The default role is
// pinned at position 0.
func (r *RoleModel) SetPosition(ctx context.Context, id snowflake.ID, position int) error {
	if position < 0 {
		return fmt.Errorf("%w: role position must not be negative", types.ErrValidation)
	}

	res, err := r.db.NewUpdate().
		Model((*types.Role)(nil)).
		Set("position = ?", position).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("is_default = false").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set role position: %w", err)
	}

	return requireAffected(res, types.ErrRoleNotFound)
}

// Rename updates the role's display attributes.
func (r *RoleModel) Rename(ctx context.Context, id snowflake.ID, name, color string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: role name is empty", types.ErrValidation)
	}

	res, err := r.db.NewUpdate().
		Model((*types.Role)(nil)).
		Set("name = ?", name).
		Set("color = ?", color).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to rename role: %w", err)
	}

	return requireAffected(res, types.ErrRoleNotFound)
}

// Delete removes a role, strips it from members that hold it, and detaches
// it from private channel allow-lists, all in one transaction. The default
// role is immutable.
func (r *RoleModel) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		role := new(types.Role)

		err := tx.NewSelect().Model(role).Where("id = ?", id).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrRoleNotFound
			}

			return fmt.Errorf("failed to get role: %w", err)
		}

		if role.IsDefault {
			return types.ErrDefaultRoleImmutable
		}

		if _, err := tx.NewDelete().
			Model((*types.Role)(nil)).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.ServerMember)(nil)).
			Set("role_ids = array_remove(role_ids, ?)", id).
			Where("server_id = ?", role.ServerID).
			Where("? = ANY(role_ids)", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to strip deleted role from members: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.Channel)(nil)).
			Set("allowed_role_ids = array_remove(allowed_role_ids, ?)", id).
			Where("server_id = ?", role.ServerID).
			Where("? = ANY(allowed_role_ids)", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to strip deleted role from channel allow-lists: %w", err)
		}

		return nil
	})
}
