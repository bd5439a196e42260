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
	"github.com/harborchat/harbor/internal/database/types/enum"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for users.
type UserModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewUser creates a new user model.
func NewUser(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_user"),
	}
}

// Create registers a new user. A caller-supplied ID makes the operation
// idempotent under retry; with a zero ID the store generates one and a
// retried call creates a second row.
func (r *UserModel) Create(ctx context.Context, user *types.User) error {
	if strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("%w: username is empty", types.ErrValidation)
	}

	if user.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate user ID: %w", err)
		}

		user.ID = id
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user", types.ErrConflict)
		}

		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID.
func (r *UserModel) Get(ctx context.Context, id snowflake.ID) (*types.User, error) {
	user := new(types.User)

	err := r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Exists reports whether a non-deleted user with the given ID is present.
func (r *UserModel) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*types.User)(nil)).
		Where("id = ?", id).
		Where("is_deleted = false").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// SetPresence updates the user's advertised status fields.
func (r *UserModel) SetPresence(ctx context.Context, id snowflake.ID, status enum.UserStatus, customStatus string) error {
	res, err := r.db.NewUpdate().
		Model((*types.User)(nil)).
		Set("status = ?", status).
		Set("custom_status = ?", customStatus).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return requireAffected(res, types.ErrUserNotFound)
}

// TouchLastSeen records presence activity for the user.
func (r *UserModel) TouchLastSeen(ctx context.Context, id snowflake.ID) error {
	_, err := r.db.NewUpdate().
		Model((*types.User)(nil)).
		Set("last_seen = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch last seen: %w", err)
	}

	return nil
}

// SoftDelete marks the user deleted without removing the row; messages and
// memberships keep referencing the ID.
func (r *UserModel) SoftDelete(ctx context.Context, id snowflake.ID) error {
	res, err := r.db.NewUpdate().
		Model((*types.User)(nil)).
		Set("is_deleted = true").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to soft delete user: %w", err)
	}

	return requireAffected(res, types.ErrUserNotFound)
}

// requireAffected converts a zero-row update into the given not-found error.
func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}
