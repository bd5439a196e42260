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

// CategoryModel handles database operations for channel categories.
type CategoryModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewCategory creates a new category model.
func NewCategory(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *CategoryModel {
	return &CategoryModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_category"),
	}
}

// Create adds a category to a server.
func (r *CategoryModel) Create(ctx context.Context, category *types.Category) error {
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: category name is empty", types.ErrValidation)
	}

	if category.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate category ID: %w", err)
		}

		category.ID = id
	}

	category.CreatedAt = time.Now()

	_, err := r.db.NewInsert().Model(category).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// Get retrieves a category by ID.
func (r *CategoryModel) Get(ctx context.Context, id snowflake.ID) (*types.Category, error) {
	category := new(types.Category)

	err := r.db.NewSelect().Model(category).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrCategoryNotFound
		}

		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return category, nil
}

// ListByServer returns a server's categories in display order.
func (r *CategoryModel) ListByServer(ctx context.Context, serverID snowflake.ID) ([]*types.Category, error) {
	var categories []*types.Category

	err := r.db.NewSelect().
		Model(&categories).
		Where("server_id = ?", serverID).
		Order("position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}

// SetPosition moves a category in display order.
func (r *CategoryModel) SetPosition(ctx context.Context, id snowflake.ID, position int) error {
	res, err := r.db.NewUpdate().
		Model((*types.Category)(nil)).
		Set("position = ?", position).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set category position: %w", err)
	}

	return requireAffected(res, types.ErrCategoryNotFound)
}

// Delete removes a category and detaches its channels; the channels
// survive with a null category.
func (r *CategoryModel) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*types.Channel)(nil)).
			Set("category_id = NULL").
			Where("category_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to detach channels: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*types.Category)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}

		return requireAffected(res, types.ErrCategoryNotFound)
	})
}
