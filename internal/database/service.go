package database

import (
	"github.com/harborchat/harbor/internal/database/service"
	"github.com/harborchat/harbor/internal/events"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Service provides the business-logic surface on top of the repository.
type Service struct {
	permission   *service.PermissionService
	server       *service.ServerService
	membership   *service.MembershipService
	message      *service.MessageService
	conversation *service.ConversationService
	friend       *service.FriendService
	user         *service.UserService
}

// NewService creates a new service instance with all business logic
// services. The cache client may be nil to disable permission caching.
func NewService(
	repo *Repository,
	cache rueidis.Client,
	publisher events.Publisher,
	logger *zap.Logger,
) *Service {
	permission := service.NewPermission(
		repo.Server(), repo.Member(), repo.Role(), repo.Channel(), cache, logger,
	)

	return &Service{
		permission: permission,
		server: service.NewServer(
			repo.Server(), repo.Channel(), repo.Category(), repo.Role(),
			repo.User(), permission, publisher, logger,
		),
		membership: service.NewMembership(
			repo.Server(), repo.Member(), repo.Role(), repo.User(),
			permission, publisher, logger,
		),
		message: service.NewMessage(
			repo.Channel(), repo.Message(), repo.User(), permission, publisher, logger,
		),
		conversation: service.NewConversation(
			repo.Conversation(), repo.User(), publisher, logger,
		),
		friend: service.NewFriend(
			repo.Friend(), repo.User(), publisher, logger,
		),
		user: service.NewUser(
			repo.User(), repo.Badge(), publisher, logger,
		),
	}
}

// Permission returns the permission resolution service.
func (s *Service) Permission() *service.PermissionService {
	return s.permission
}

// Server returns the server administration service.
func (s *Service) Server() *service.ServerService {
	return s.server
}

// Membership returns the membership service.
func (s *Service) Membership() *service.MembershipService {
	return s.membership
}

// Message returns the message service.
func (s *Service) Message() *service.MessageService {
	return s.message
}

// Conversation returns the conversation service.
func (s *Service) Conversation() *service.ConversationService {
	return s.conversation
}

// Friend returns the friend graph service.
func (s *Service) Friend() *service.FriendService {
	return s.friend
}

// User returns the account service.
func (s *Service) User() *service.UserService {
	return s.user
}
