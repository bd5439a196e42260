package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/events"
	"go.uber.org/zap"
)

// DirectMessageParams carries the caller-controlled fields of a new direct
// message. ID is optional for idempotent retry.
type DirectMessageParams struct {
	ID             snowflake.ID
	ConversationID snowflake.ID
	Content        string
	Attachments    json.RawMessage
	MentionIDs     []snowflake.ID
}

// ConversationService is the direct-message mirror of the channel ledger,
// scoped to conversations instead of channels.
type ConversationService struct {
	conversation *models.ConversationModel
	user         *models.UserModel
	publisher    events.Publisher
	logger       *zap.Logger
}

// NewConversation creates a new conversation service.
func NewConversation(
	conversation *models.ConversationModel,
	user *models.UserModel,
	publisher events.Publisher,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		conversation: conversation,
		user:         user,
		publisher:    publisher,
		logger:       logger.Named("conversation_service"),
	}
}

// Create opens a conversation between the creator and the given users.
func (s *ConversationService) Create(
	ctx context.Context, creatorID snowflake.ID, participantIDs []snowflake.ID,
) (*types.Conversation, error) {
	all := append([]snowflake.ID{creatorID}, participantIDs...)

	for _, id := range all {
		exists, err := s.user.Exists(ctx, id)
		if err != nil {
			return nil, err
		}

		if !exists {
			return nil, fmt.Errorf("%w: participant %d", types.ErrNotFound, id)
		}
	}

	conv := new(types.Conversation)
	if err := s.conversation.Create(ctx, conv, all); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindConversation, conv.ID, events.OpCreate, creatorID).
		InConversation(conv.ID))

	return conv, nil
}

// Send appends a direct message. The author must be a participant; a
// conversation the author is not part of reports forbidden rather than
// confirming it exists.
func (s *ConversationService) Send(
	ctx context.Context, authorID snowflake.ID, params DirectMessageParams,
) (*types.DirectMessage, error) {
	if err := s.requireParticipant(ctx, params.ConversationID, authorID); err != nil {
		return nil, err
	}

	dm := &types.DirectMessage{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		AuthorID:       authorID,
		Content:        params.Content,
		Attachments:    params.Attachments,
		MentionIDs:     params.MentionIDs,
	}

	if err := s.conversation.CreateDirectMessage(ctx, dm); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindDirectMessage, dm.ID, events.OpCreate, authorID).
		InConversation(dm.ConversationID).
		WithSequence(dm.Sequence))

	return dm, nil
}

// Edit replaces a direct message's content. Only the author may edit.
func (s *ConversationService) Edit(
	ctx context.Context, actorID, messageID snowflake.ID, content string,
) (*types.DirectMessage, error) {
	dm, err := s.conversation.GetDirectMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if dm.AuthorID != actorID {
		return nil, fmt.Errorf("%w: only the author can edit a direct message", types.ErrForbidden)
	}

	if err := s.conversation.EditDirectMessage(ctx, messageID, content); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindDirectMessage, messageID, events.OpEdit, actorID).
		InConversation(dm.ConversationID).
		WithSequence(dm.Sequence))

	return s.conversation.GetDirectMessage(ctx, messageID)
}

// MarkRead acknowledges a direct message on behalf of a recipient. The
// author cannot mark their own message read; the reader must be a
// participant. Marking twice is a no-op success.
func (s *ConversationService) MarkRead(ctx context.Context, readerID, messageID snowflake.ID) error {
	dm, err := s.conversation.GetDirectMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if dm.AuthorID == readerID {
		return types.ErrAuthorCannotMarkRead
	}

	if err := s.requireParticipant(ctx, dm.ConversationID, readerID); err != nil {
		return err
	}

	if err := s.conversation.MarkRead(ctx, messageID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindDirectMessage, messageID, events.OpRead, readerID).
		InConversation(dm.ConversationID).
		WithSequence(dm.Sequence))

	return nil
}

// AddParticipant joins another user into an existing conversation. Only a
// current participant may add.
func (s *ConversationService) AddParticipant(ctx context.Context, actorID, conversationID, userID snowflake.ID) error {
	if err := s.requireParticipant(ctx, conversationID, actorID); err != nil {
		return err
	}

	exists, err := s.user.Exists(ctx, userID)
	if err != nil {
		return err
	}

	if !exists {
		return types.ErrUserNotFound
	}

	if err := s.conversation.AddParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindConversation, conversationID, events.OpUpdate, actorID).
		InConversation(conversationID))

	return nil
}

// List returns direct messages after the given sequence cursor; the reader
// must be a participant.
func (s *ConversationService) List(
	ctx context.Context, readerID, conversationID snowflake.ID, after int64, limit int,
) ([]*types.DirectMessage, error) {
	if err := s.requireParticipant(ctx, conversationID, readerID); err != nil {
		return nil, err
	}

	return s.conversation.ListDirectMessagesAfter(ctx, conversationID, after, limit)
}

func (s *ConversationService) requireParticipant(ctx context.Context, conversationID, userID snowflake.ID) error {
	_, err := s.conversation.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// Not-found upgrades to forbidden so outsiders cannot probe
			// which conversations exist.
			return fmt.Errorf("%w: not a participant of this conversation", types.ErrForbidden)
		}

		return err
	}

	return nil
}
