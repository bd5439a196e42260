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

// BadgeModel handles database operations for badges and badge grants.
type BadgeModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewBadge creates a new badge model.
func NewBadge(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *BadgeModel {
	return &BadgeModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_badge"),
	}
}

// Create registers a new global badge.
func (r *BadgeModel) Create(ctx context.Context, badge *types.Badge) error {
	if strings.TrimSpace(badge.Name) == "" {
		return fmt.Errorf("%w: badge name is empty", types.ErrValidation)
	}

	if badge.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate badge ID: %w", err)
		}

		badge.ID = id
	}

	badge.CreatedAt = time.Now()

	_, err := r.db.NewInsert().Model(badge).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create badge: %w", err)
	}

	return nil
}

// Get retrieves a badge by ID.
func (r *BadgeModel) Get(ctx context.Context, id snowflake.ID) (*types.Badge, error) {
	badge := new(types.Badge)

	err := r.db.NewSelect().Model(badge).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrBadgeNotFound
		}

		return nil, fmt.Errorf("failed to get badge: %w", err)
	}

	return badge, nil
}

// Grant gives a badge to a user. Granting the same badge twice is a no-op.
func (r *BadgeModel) Grant(ctx context.Context, userID, badgeID snowflake.ID) error {
	grant := &types.UserBadge{
		UserID:    userID,
		BadgeID:   badgeID,
		GrantedAt: time.Now(),
	}

	_, err := r.db.NewInsert().
		Model(grant).
		On("CONFLICT (user_id, badge_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to grant badge: %w", err)
	}

	return nil
}

// Revoke removes a badge grant from a user.
func (r *BadgeModel) Revoke(ctx context.Context, userID, badgeID snowflake.ID) error {
	_, err := r.db.NewDelete().
		Model((*types.UserBadge)(nil)).
		Where("user_id = ?", userID).
		Where("badge_id = ?", badgeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke badge: %w", err)
	}

	return nil
}

// ListForUser returns the badges a user holds that still exist. Grants
// referencing deleted badges are weak references and are silently skipped.
func (r *BadgeModel) ListForUser(ctx context.Context, userID snowflake.ID) ([]*types.Badge, error) {
	var badges []*types.Badge

	err := r.db.NewSelect().
		Model(&badges).
		Join("JOIN user_badges AS ub ON ub.badge_id = badge.id").
		Where("ub.user_id = ?", userID).
		Order("ub.granted_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	return badges, nil
}
