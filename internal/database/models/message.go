package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/dbretry"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MessageModel handles database operations for channel messages.
//
// Ordering: the insert transaction bumps the channel's last_sequence with a
// row-locking UPDATE and stamps the returned value on the message. The row
// lock serializes concurrent posts to one channel, so sequence keys never
// collide and commit order matches sequence order; the slow-mode check runs
// under the same lock, which removes the lost-update race between two posts
// by one author.
type MessageModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewMessage creates a new message model.
func NewMessage(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_message"),
	}
}

// Create appends a message to its channel. ServerID is stamped from the
// channel row, never taken from the caller. A reply must reference a
// message in the same channel at write time; after that the reference is
// weak. Slow-mode violations roll the transaction back, sequence bump
// included, and report the remaining wait.
func (r *MessageModel) Create(ctx context.Context, msg *types.Message) error {
	if msg.Content == "" && len(msg.Attachments) == 0 {
		return fmt.Errorf("%w: message is empty", types.ErrValidation)
	}

	if msg.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		msg.ID = id
	}

	return dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		channel := new(types.Channel)

		// Bump the sequence first; RETURNING gives us the channel fields
		// and the UPDATE takes the row lock everything below relies on.
		err := tx.NewUpdate().
			Model(channel).
			Set("last_sequence = last_sequence + 1").
			Where("id = ?", msg.ChannelID).
			Returning("server_id, slow_mode_seconds, last_sequence").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrChannelNotFound
			}

			return fmt.Errorf("failed to assign sequence: %w", err)
		}

		if channel.LastSequence <= 0 {
			return fmt.Errorf("%w: channel %d sequence counter is %d",
				types.ErrInvariantViolation, msg.ChannelID, channel.LastSequence)
		}

		now := time.Now()

		if channel.SlowModeSeconds > 0 {
			var lastPosted time.Time

			err := tx.NewSelect().
				Model((*types.Message)(nil)).
				Column("created_at").
				Where("channel_id = ?", msg.ChannelID).
				Where("author_id = ?", msg.AuthorID).
				// Matches the (channel_id, author_id, created_at DESC)
				// index so the probe stays an index-only scan.
				Order("created_at DESC").
				Limit(1).
				Scan(ctx, &lastPosted)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check slow mode: %w", err)
			}

			slowMode := time.Duration(channel.SlowModeSeconds) * time.Second
			if wait := types.SlowModeRetryAfter(lastPosted, slowMode, now); wait > 0 {
				return &types.RateLimitError{RetryAfter: wait}
			}
		}

		if msg.ReplyToID != 0 {
			parent := new(types.Message)

			err := tx.NewSelect().
				Model(parent).
				Column("channel_id").
				Where("id = ?", msg.ReplyToID).
				Scan(ctx)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: reply parent", types.ErrNotFound)
				}

				return fmt.Errorf("failed to get reply parent: %w", err)
			}

			if parent.ChannelID != msg.ChannelID {
				return types.ErrReplyOutsideChannel
			}
		}

		msg.ServerID = channel.ServerID
		msg.Sequence = channel.LastSequence
		msg.CreatedAt = now

		if _, err := tx.NewInsert().Model(msg).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		return nil
	})
}

// Get retrieves a message by ID.
func (r *MessageModel) Get(ctx context.Context, id snowflake.ID) (*types.Message, error) {
	msg := new(types.Message)

	err := r.db.NewSelect().Model(msg).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrMessageNotFound
		}

		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// Edit replaces the message content. Last write wins; no history is kept.
func (r *MessageModel) Edit(ctx context.Context, id snowflake.ID, content string) error {
	if content == "" {
		return fmt.Errorf("%w: message content is empty", types.ErrValidation)
	}

	res, err := r.db.NewUpdate().
		Model((*types.Message)(nil)).
		Set("content = ?", content).
		Set("edited = true").
		Set("edited_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return requireAffected(res, types.ErrMessageNotFound)
}

// SetPinned sets the pin flag. Pinning an already pinned message (or
// unpinning an unpinned one) is a successful no-op.
func (r *MessageModel) SetPinned(ctx context.Context, id snowflake.ID, pinned bool) error {
	exists, err := r.db.NewSelect().
		Model((*types.Message)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check message existence: %w", err)
	}

	if !exists {
		return types.ErrMessageNotFound
	}

	if _, err := r.db.NewUpdate().
		Model((*types.Message)(nil)).
		Set("is_pinned = ?", pinned).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to set pin flag: %w", err)
	}

	return nil
}

// Delete removes a message. Replies keep their dangling reference and
// render it as unavailable.
func (r *MessageModel) Delete(ctx context.Context, id snowflake.ID) error {
	res, err := r.db.NewDelete().
		Model((*types.Message)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return requireAffected(res, types.ErrMessageNotFound)
}

// ListAfter returns up to limit messages of a channel with sequence greater
// than after, in sequence order. A zero cursor starts from the beginning.
func (r *MessageModel) ListAfter(ctx context.Context, channelID snowflake.ID, after int64, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []*types.Message

	err := r.db.NewSelect().
		Model(&messages).
		Where("channel_id = ?", channelID).
		Where("sequence > ?", after).
		Order("sequence ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// ListPinned returns the pinned messages of a channel in sequence order.
func (r *MessageModel) ListPinned(ctx context.Context, channelID snowflake.ID) ([]*types.Message, error) {
	var messages []*types.Message

	err := r.db.NewSelect().
		Model(&messages).
		Where("channel_id = ?", channelID).
		Where("is_pinned = true").
		Order("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned messages: %w", err)
	}

	return messages, nil
}
