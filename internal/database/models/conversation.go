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

// ConversationModel handles database operations for direct-message threads.
// Sequence assignment mirrors the channel ledger: the insert transaction
// bumps the conversation's last_sequence under its row lock.
type ConversationModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewConversation creates a new conversation model.
func NewConversation(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *ConversationModel {
	return &ConversationModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_conversation"),
	}
}

// Create opens a conversation with the given participants. Duplicates in
// the participant list are deduped; at least two distinct users are
// required.
func (r *ConversationModel) Create(ctx context.Context, conv *types.Conversation, participantIDs []snowflake.ID) error {
	seen := make(map[snowflake.ID]struct{}, len(participantIDs))
	distinct := make([]snowflake.ID, 0, len(participantIDs))

	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	if len(distinct) < 2 {
		return fmt.Errorf("%w: a conversation needs at least two participants", types.ErrValidation)
	}

	if conv.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate conversation ID: %w", err)
		}

		conv.ID = id
	}

	now := time.Now()
	conv.CreatedAt = now

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(conv).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}

		for _, userID := range distinct {
			pid, err := r.gen.Next()
			if err != nil {
				return fmt.Errorf("failed to generate participant ID: %w", err)
			}

			participant := &types.ConversationParticipant{
				ID:             pid,
				ConversationID: conv.ID,
				UserID:         userID,
				JoinedAt:       now,
			}

			if _, err := tx.NewInsert().Model(participant).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return types.ErrDuplicateParticipant
				}

				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}

		return nil
	})
}

// Get retrieves a conversation by ID.
func (r *ConversationModel) Get(ctx context.Context, id snowflake.ID) (*types.Conversation, error) {
	conv := new(types.Conversation)

	err := r.db.NewSelect().Model(conv).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrConversationNotFound
		}

		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// AddParticipant joins a user to an existing conversation. A duplicate
// (user, conversation) pair is a conflict.
func (r *ConversationModel) AddParticipant(ctx context.Context, conversationID, userID snowflake.ID) error {
	pid, err := r.gen.Next()
	if err != nil {
		return fmt.Errorf("failed to generate participant ID: %w", err)
	}

	participant := &types.ConversationParticipant{
		ID:             pid,
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	}

	if _, err := r.db.NewInsert().Model(participant).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return types.ErrDuplicateParticipant
		}

		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// GetParticipant retrieves a user's participation in a conversation.
func (r *ConversationModel) GetParticipant(ctx context.Context, conversationID, userID snowflake.ID) (*types.ConversationParticipant, error) {
	participant := new(types.ConversationParticipant)

	err := r.db.NewSelect().
		Model(participant).
		Where("conversation_id = ?", conversationID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrParticipantNotFound
		}

		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return participant, nil
}

// ListParticipants returns everyone in a conversation.
func (r *ConversationModel) ListParticipants(ctx context.Context, conversationID snowflake.ID) ([]*types.ConversationParticipant, error) {
	var participants []*types.ConversationParticipant

	err := r.db.NewSelect().
		Model(&participants).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}

// CreateDirectMessage appends a direct message under the conversation's
// sequence lock, mirroring MessageModel.Create without slow mode.
func (r *ConversationModel) CreateDirectMessage(ctx context.Context, dm *types.DirectMessage) error {
	if dm.Content == "" && len(dm.Attachments) == 0 {
		return fmt.Errorf("%w: message is empty", types.ErrValidation)
	}

	if dm.ID == 0 {
		id, err := r.gen.Next()
		if err != nil {
			return fmt.Errorf("failed to generate direct message ID: %w", err)
		}

		dm.ID = id
	}

	return dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		conv := new(types.Conversation)

		err := tx.NewUpdate().
			Model(conv).
			Set("last_sequence = last_sequence + 1").
			Where("id = ?", dm.ConversationID).
			Returning("last_sequence").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrConversationNotFound
			}

			return fmt.Errorf("failed to assign sequence: %w", err)
		}

		if conv.LastSequence <= 0 {
			return fmt.Errorf("%w: conversation %d sequence counter is %d",
				types.ErrInvariantViolation, dm.ConversationID, conv.LastSequence)
		}

		dm.Sequence = conv.LastSequence
		dm.CreatedAt = time.Now()

		if _, err := tx.NewInsert().Model(dm).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert direct message: %w", err)
		}

		return nil
	})
}

// GetDirectMessage retrieves a direct message by ID.
func (r *ConversationModel) GetDirectMessage(ctx context.Context, id snowflake.ID) (*types.DirectMessage, error) {
	dm := new(types.DirectMessage)

	err := r.db.NewSelect().Model(dm).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrDirectMessageNotFound
		}

		return nil, fmt.Errorf("failed to get direct message: %w", err)
	}

	return dm, nil
}

// EditDirectMessage replaces the content of a direct message.
func (r *ConversationModel) EditDirectMessage(ctx context.Context, id snowflake.ID, content string) error {
	if content == "" {
		return fmt.Errorf("%w: message content is empty", types.ErrValidation)
	}

	res, err := r.db.NewUpdate().
		Model((*types.DirectMessage)(nil)).
		Set("content = ?", content).
		Set("edited = true").
		Set("edited_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to edit direct message: %w", err)
	}

	return requireAffected(res, types.ErrDirectMessageNotFound)
}

// MarkRead flags a direct message as read. Marking twice is a no-op.
func (r *ConversationModel) MarkRead(ctx context.Context, id snowflake.ID) error {
	exists, err := r.db.NewSelect().
		Model((*types.DirectMessage)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check direct message existence: %w", err)
	}

	if !exists {
		return types.ErrDirectMessageNotFound
	}

	if _, err := r.db.NewUpdate().
		Model((*types.DirectMessage)(nil)).
		Set("read = true").
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}

	return nil
}

// ListDirectMessagesAfter returns up to limit messages of a conversation
// with sequence greater than after, in sequence order.
func (r *ConversationModel) ListDirectMessagesAfter(ctx context.Context, conversationID snowflake.ID, after int64, limit int) ([]*types.DirectMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []*types.DirectMessage

	err := r.db.NewSelect().
		Model(&messages).
		Where("conversation_id = ?", conversationID).
		Where("sequence > ?", after).
		Order("sequence ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct messages: %w", err)
	}

	return messages, nil
}
