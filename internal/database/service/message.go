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

// PostParams carries the caller-controlled fields of a new message. ID is
// optional: supplying one makes the post idempotent under retry.
type PostParams struct {
	ID          snowflake.ID
	ChannelID   snowflake.ID
	Content     string
	Attachments json.RawMessage
	MentionIDs  []snowflake.ID
	ReplyToID   snowflake.ID
}

// MessageService is the channel message ledger: permission-checked,
// slow-mode-enforced, per-channel ordered writes.
type MessageService struct {
	channel    *models.ChannelModel
	message    *models.MessageModel
	user       *models.UserModel
	permission *PermissionService
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewMessage creates a new message service.
func NewMessage(
	channel *models.ChannelModel,
	message *models.MessageModel,
	user *models.UserModel,
	permission *PermissionService,
	publisher events.Publisher,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		channel:    channel,
		message:    message,
		user:       user,
		permission: permission,
		publisher:  publisher,
		logger:     logger.Named("message_service"),
	}
}

// Post appends a message to a channel on behalf of the author. Requires
// the send capability; slow-mode violations surface a RateLimitError with
// the remaining wait.
func (s *MessageService) Post(ctx context.Context, authorID snowflake.ID, params PostParams) (*types.Message, error) {
	channel, err := s.channel.Get(ctx, params.ChannelID)
	if err != nil {
		return nil, err
	}

	exists, err := s.user.Exists(ctx, authorID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, types.ErrUserNotFound
	}

	perms, err := s.permission.Resolve(ctx, authorID, channel.ServerID, channel.ID)
	if err != nil {
		return nil, err
	}

	if !perms.Has(types.CapViewChannels) {
		// The channel exists but the caller cannot see it. Forbidden, not
		// not-found: membership checks already told them the server exists.
		return nil, fmt.Errorf("%w: channel not visible", types.ErrForbidden)
	}

	if !perms.Has(types.CapSendMessages) {
		return nil, fmt.Errorf("%w: missing send messages capability", types.ErrForbidden)
	}

	// Mass mentions are gated; small mention lists are always allowed.
	if len(params.MentionIDs) > 10 && !perms.Has(types.CapMentionEveryone) {
		return nil, fmt.Errorf("%w: missing mention everyone capability", types.ErrForbidden)
	}

	if len(params.Attachments) > 0 && !perms.Has(types.CapAttachFiles) {
		return nil, fmt.Errorf("%w: missing attach files capability", types.ErrForbidden)
	}

	msg := &types.Message{
		ID:          params.ID,
		ChannelID:   params.ChannelID,
		AuthorID:    authorID,
		Content:     params.Content,
		Attachments: params.Attachments,
		MentionIDs:  params.MentionIDs,
		ReplyToID:   params.ReplyToID,
	}

	if err := s.message.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindMessage, msg.ID, events.OpCreate, authorID).
		InServer(msg.ServerID, msg.ChannelID).
		WithSequence(msg.Sequence))

	return msg, nil
}

// Edit replaces a message's content. Only the author or a member with
// manage messages may edit; history is not retained.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID snowflake.ID, content string) (*types.Message, error) {
	msg, err := s.authorizeModeration(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.message.Edit(ctx, messageID, content); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindMessage, messageID, events.OpEdit, actorID).
		InServer(msg.ServerID, msg.ChannelID).
		WithSequence(msg.Sequence))

	return s.message.Get(ctx, messageID)
}

// Pin marks a message as pinned. Requires manage messages; pinning an
// already pinned message succeeds without effect.
func (s *MessageService) Pin(ctx context.Context, actorID, messageID snowflake.ID) error {
	return s.setPinned(ctx, actorID, messageID, true, events.OpPin)
}

// Unpin clears the pin flag under the same rules as Pin.
func (s *MessageService) Unpin(ctx context.Context, actorID, messageID snowflake.ID) error {
	return s.setPinned(ctx, actorID, messageID, false, events.OpUnpin)
}

// Delete removes a message. Author or manage messages.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID snowflake.ID) error {
	msg, err := s.authorizeModeration(ctx, actorID, messageID)
	if err != nil {
		return err
	}

	if err := s.message.Delete(ctx, messageID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindMessage, messageID, events.OpDelete, actorID).
		InServer(msg.ServerID, msg.ChannelID).
		WithSequence(msg.Sequence))

	return nil
}

// List returns channel messages after the given sequence cursor, provided
// the caller can view the channel.
func (s *MessageService) List(
	ctx context.Context, actorID, channelID snowflake.ID, after int64, limit int,
) ([]*types.Message, error) {
	channel, err := s.channel.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if err := s.requireView(ctx, actorID, channel); err != nil {
		return nil, err
	}

	return s.message.ListAfter(ctx, channelID, after, limit)
}

// ListPinned returns the channel's pinned messages under the same
// visibility rule as List.
func (s *MessageService) ListPinned(ctx context.Context, actorID, channelID snowflake.ID) ([]*types.Message, error) {
	channel, err := s.channel.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if err := s.requireView(ctx, actorID, channel); err != nil {
		return nil, err
	}

	return s.message.ListPinned(ctx, channelID)
}

func (s *MessageService) setPinned(ctx context.Context, actorID, messageID snowflake.ID, pinned bool, op string) error {
	msg, err := s.message.Get(ctx, messageID)
	if err != nil {
		return err
	}

	perms, err := s.permission.Resolve(ctx, actorID, msg.ServerID, msg.ChannelID)
	if err != nil {
		return err
	}

	if !perms.Has(types.CapManageMessages) {
		return fmt.Errorf("%w: missing manage messages capability", types.ErrForbidden)
	}

	if err := s.message.SetPinned(ctx, messageID, pinned); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindMessage, messageID, op, actorID).
		InServer(msg.ServerID, msg.ChannelID).
		WithSequence(msg.Sequence))

	return nil
}

// authorizeModeration loads a message and verifies the actor is its author
// or holds manage messages in its channel. A message the actor cannot see
// reports forbidden rather than leaking its absence or presence.
func (s *MessageService) authorizeModeration(ctx context.Context, actorID, messageID snowflake.ID) (*types.Message, error) {
	msg, err := s.message.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	perms, err := s.permission.Resolve(ctx, actorID, msg.ServerID, msg.ChannelID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: message not accessible", types.ErrForbidden)
		}

		return nil, err
	}

	if msg.AuthorID == actorID {
		return msg, nil
	}

	if !perms.Has(types.CapManageMessages) {
		return nil, fmt.Errorf("%w: missing manage messages capability", types.ErrForbidden)
	}

	return msg, nil
}

func (s *MessageService) requireView(ctx context.Context, actorID snowflake.ID, channel *types.Channel) error {
	perms, err := s.permission.Resolve(ctx, actorID, channel.ServerID, channel.ID)
	if err != nil {
		return err
	}

	if !perms.Has(types.CapViewChannels) {
		return fmt.Errorf("%w: channel not visible", types.ErrForbidden)
	}

	return nil
}
