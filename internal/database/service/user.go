package service

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/database/types/enum"
	"github.com/harborchat/harbor/internal/events"
	"go.uber.org/zap"
)

// UserService covers the account surface: registration, presence, and
// badge grants. Authentication happens upstream; every method trusts the
// caller-supplied user ID.
type UserService struct {
	user      *models.UserModel
	badge     *models.BadgeModel
	publisher events.Publisher
	logger    *zap.Logger
}

// NewUser creates a new user service.
func NewUser(
	user *models.UserModel,
	badge *models.BadgeModel,
	publisher events.Publisher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		user:      user,
		badge:     badge,
		publisher: publisher,
		logger:    logger.Named("user_service"),
	}
}

// Register creates a user account.
func (s *UserService) Register(ctx context.Context, user *types.User) (*types.User, error) {
	if err := s.user.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindUser, user.ID, events.OpCreate, user.ID))

	return user, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id snowflake.ID) (*types.User, error) {
	return s.user.Get(ctx, id)
}

// SetPresence updates the user's own status and custom status text.
func (s *UserService) SetPresence(
	ctx context.Context, userID snowflake.ID, status enum.UserStatus, customStatus string,
) error {
	if err := s.user.SetPresence(ctx, userID, status, customStatus); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindUser, userID, events.OpUpdate, userID))

	return nil
}

// TouchLastSeen records activity without changing the advertised status.
func (s *UserService) TouchLastSeen(ctx context.Context, userID snowflake.ID) error {
	return s.user.TouchLastSeen(ctx, userID)
}

// Deactivate soft-deletes the account. Rows referencing the user stay
// intact; the identity simply stops resolving.
func (s *UserService) Deactivate(ctx context.Context, userID snowflake.ID) error {
	if err := s.user.SoftDelete(ctx, userID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindUser, userID, events.OpDelete, userID))

	return nil
}

// GrantBadge awards a badge. Granting an already-held badge is a no-op.
func (s *UserService) GrantBadge(ctx context.Context, actorID, userID, badgeID snowflake.ID) error {
	if _, err := s.badge.Get(ctx, badgeID); err != nil {
		return err
	}

	exists, err := s.user.Exists(ctx, userID)
	if err != nil {
		return err
	}

	if !exists {
		return types.ErrUserNotFound
	}

	if err := s.badge.Grant(ctx, userID, badgeID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindUser, userID, events.OpUpdate, actorID))

	return nil
}

// RevokeBadge removes a granted badge.
func (s *UserService) RevokeBadge(ctx context.Context, actorID, userID, badgeID snowflake.ID) error {
	if err := s.badge.Revoke(ctx, userID, badgeID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindUser, userID, events.OpUpdate, actorID))

	return nil
}

// ListBadges returns the badges a user currently holds. Grants whose badge
// was deleted are skipped rather than erroring.
func (s *UserService) ListBadges(ctx context.Context, userID snowflake.ID) ([]*types.Badge, error) {
	return s.badge.ListForUser(ctx, userID)
}
