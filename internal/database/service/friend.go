package service

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/events"
	"go.uber.org/zap"
)

// FriendService manages the friend graph. Edges are symmetric once
// accepted; a pending edge only the addressee can accept, either side can
// remove.
type FriendService struct {
	friend    *models.FriendModel
	user      *models.UserModel
	publisher events.Publisher
	logger    *zap.Logger
}

// NewFriend creates a new friend service.
func NewFriend(
	friend *models.FriendModel,
	user *models.UserModel,
	publisher events.Publisher,
	logger *zap.Logger,
) *FriendService {
	return &FriendService{
		friend:    friend,
		user:      user,
		publisher: publisher,
		logger:    logger.Named("friend_service"),
	}
}

// Request creates a pending edge from requester to addressee.
func (s *FriendService) Request(ctx context.Context, requesterID, addresseeID snowflake.ID) error {
	for _, id := range []snowflake.ID{requesterID, addresseeID} {
		exists, err := s.user.Exists(ctx, id)
		if err != nil {
			return err
		}

		if !exists {
			return types.ErrUserNotFound
		}
	}

	if err := s.friend.Request(ctx, requesterID, addresseeID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindFriend, addresseeID, events.OpCreate, requesterID))

	return nil
}

// Accept flips the pending request from requesterID to the acting user
// into an accepted edge.
func (s *FriendService) Accept(ctx context.Context, userID, requesterID snowflake.ID) error {
	if err := s.friend.Accept(ctx, requesterID, userID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindFriend, requesterID, events.OpUpdate, userID))

	return nil
}

// Remove deletes the edge between the acting user and another user in any
// state, covering both declining a request and unfriending.
func (s *FriendService) Remove(ctx context.Context, userID, otherID snowflake.ID) error {
	if err := s.friend.Remove(ctx, userID, otherID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindFriend, otherID, events.OpDelete, userID))

	return nil
}

// ListFriends returns the accepted edges touching a user.
func (s *FriendService) ListFriends(ctx context.Context, userID snowflake.ID) ([]*types.FriendEdge, error) {
	return s.friend.ListAccepted(ctx, userID)
}

// ListIncoming returns pending requests where the user is the addressee.
func (s *FriendService) ListIncoming(ctx context.Context, userID snowflake.ID) ([]*types.FriendEdge, error) {
	return s.friend.ListIncoming(ctx, userID)
}
