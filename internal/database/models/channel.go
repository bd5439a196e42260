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
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

// ChannelModel handles database operations for channels.
type ChannelModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewChannel creates a new channel model.
func NewChannel(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *ChannelModel {
	return &ChannelModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_channel"),
	}
}

// Create adds a channel to a server. When a category is given it must
// belong to the same server; the check runs in the insert transaction so a
// concurrent category move cannot invalidate it.
func (r *ChannelModel) Create(ctx context.Context, channel *types.Channel) error {
	if strings.TrimSpace(channel.Name) == "" {
		return fmt.Errorf("%w: channel name is empty", types.ErrValidation)
	}

	if channel.SlowModeSeconds < 0 {
		return fmt.Errorf("%w: slow mode must not be negative", types.ErrValidation)
	}

	if channel.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate channel ID: %w", err)
		}

		channel.ID = id
	}

	channel.CreatedAt = time.Now()

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.checkCategory(ctx, tx, channel); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(channel).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert channel: %w", err)
		}

		return nil
	})
}

// Get retrieves a channel by ID.
func (r *ChannelModel) Get(ctx context.Context, id snowflake.ID) (*types.Channel, error) {
	channel := new(types.Channel)

	err := r.db.NewSelect().Model(channel).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrChannelNotFound
		}

		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// ListByServer returns a server's channels in display order.
func (r *ChannelModel) ListByServer(ctx context.Context, serverID snowflake.ID) ([]*types.Channel, error) {
	var channels []*types.Channel

	err := r.db.NewSelect().
		Model(&channels).
		Where("server_id = ?", serverID).
		Order("position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	return channels, nil
}

// Update persists mutable channel attributes, re-validating the category
// reference inside the transaction.
func (r *ChannelModel) Update(ctx context.Context, channel *types.Channel) error {
	if strings.TrimSpace(channel.Name) == "" {
		return fmt.Errorf("%w: channel name is empty", types.ErrValidation)
	}

	if channel.SlowModeSeconds < 0 {
		return fmt.Errorf("%w: slow mode must not be negative", types.ErrValidation)
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.checkCategory(ctx, tx, channel); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model(channel).
			Column("name", "topic", "position", "category_id", "slow_mode_seconds").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update channel: %w", err)
		}

		return requireAffected(res, types.ErrChannelNotFound)
	})
}

// SetPrivacy toggles the private flag and replaces the allow-list.
func (r *ChannelModel) SetPrivacy(ctx context.Context, id snowflake.ID, private bool, allowedRoleIDs []snowflake.ID) error {
	res, err := r.db.NewUpdate().
		Model((*types.Channel)(nil)).
		Set("is_private = ?", private).
		Set("allowed_role_ids = ?", pgdialect.Array(allowedRoleIDs)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set channel privacy: %w", err)
	}

	return requireAffected(res, types.ErrChannelNotFound)
}

// Delete removes a channel and its messages.
func (r *ChannelModel) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*types.Message)(nil)).
			Where("channel_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete channel messages: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*types.Channel)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete channel: %w", err)
		}

		return requireAffected(res, types.ErrChannelNotFound)
	})
}

func (r *ChannelModel) checkCategory(ctx context.Context, tx bun.Tx, channel *types.Channel) error {
	if channel.CategoryID == 0 {
		return nil
	}

	category := new(types.Category)

	err := tx.NewSelect().
		Model(category).
		Column("server_id").
		Where("id = ?", channel.CategoryID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrCategoryNotFound
		}

		return fmt.Errorf("failed to get category: %w", err)
	}

	if category.ServerID != channel.ServerID {
		return types.ErrCategoryServerMismatch
	}

	return nil
}
