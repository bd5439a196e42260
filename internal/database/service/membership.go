package service

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/events"
	"go.uber.org/zap"
)

// MembershipService governs the join/leave/role-assignment lifecycle.
// Membership state moves one way: none → member → removed. A removed
// membership is never resurrected; rejoining creates a fresh row.
type MembershipService struct {
	server     *models.ServerModel
	member     *models.MemberModel
	role       *models.RoleModel
	user       *models.UserModel
	permission *PermissionService
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewMembership creates a new membership service.
func NewMembership(
	server *models.ServerModel,
	member *models.MemberModel,
	role *models.RoleModel,
	user *models.UserModel,
	permission *PermissionService,
	publisher events.Publisher,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		server:     server,
		member:     member,
		role:       role,
		user:       user,
		permission: permission,
		publisher:  publisher,
		logger:     logger.Named("membership_service"),
	}
}

// Join adds a user to a server resolved from an invite code, or directly by
// server ID when the code is empty. The default role applies implicitly;
// the new membership starts with an empty explicit role set.
func (s *MembershipService) Join(
	ctx context.Context, userID, serverID snowflake.ID, inviteCode string,
) (*types.ServerMember, error) {
	exists, err := s.user.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, types.ErrUserNotFound
	}

	var server *types.Server

	if inviteCode != "" {
		server, err = s.server.GetByInviteCode(ctx, inviteCode)
	} else {
		server, err = s.server.Get(ctx, serverID)
	}

	if err != nil {
		return nil, err
	}

	member := &types.ServerMember{
		UserID:   userID,
		ServerID: server.ID,
	}

	if err := s.member.Create(ctx, member); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindMember, member.ID, events.OpJoin, userID).
		InServer(server.ID, 0))

	return member, nil
}

// Leave removes the caller's own membership. The server owner cannot leave
// until ownership is transferred.
func (s *MembershipService) Leave(ctx context.Context, userID, serverID snowflake.ID) error {
	member, err := s.member.Get(ctx, serverID, userID)
	if err != nil {
		return err
	}

	if err := s.member.Delete(ctx, serverID, userID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, serverID)
	s.publisher.Publish(ctx, events.New(events.KindMember, member.ID, events.OpLeave, userID).
		InServer(serverID, 0))

	return nil
}

// Kick removes another member. The actor needs the kick capability and must
// outrank the target's highest role; the owner cannot be kicked.
func (s *MembershipService) Kick(ctx context.Context, actorID, serverID, targetID snowflake.ID) error {
	if actorID == targetID {
		return fmt.Errorf("%w: use leave to remove yourself", types.ErrValidation)
	}

	actorPerms, err := s.permission.RequireMember(ctx, actorID, serverID, 0)
	if err != nil {
		return err
	}

	if !actorPerms.Has(types.CapKickMembers) {
		return fmt.Errorf("%w: missing kick members capability", types.ErrForbidden)
	}

	target, err := s.member.Get(ctx, serverID, targetID)
	if err != nil {
		// An absent target membership stays not-found: membership of a
		// server the actor already belongs to is not a secret.
		return err
	}

	if !actorPerms.IsOwner {
		actorHighest, err := s.highestPosition(ctx, serverID, actorID)
		if err != nil {
			return err
		}

		targetHighest, err := s.highestPositionOf(ctx, serverID, target)
		if err != nil {
			return err
		}

		if targetHighest >= actorHighest {
			return fmt.Errorf("%w: target outranks or equals you", types.ErrForbidden)
		}
	}

	if err := s.member.Delete(ctx, serverID, targetID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, serverID)
	s.publisher.Publish(ctx, events.New(events.KindMember, target.ID, events.OpKick, actorID).
		InServer(serverID, 0))

	return nil
}

// AssignRole grants a role to a member. The actor needs manage roles and
// may only assign roles positioned strictly below their own highest role;
// nobody hands out a role that outranks themselves.
func (s *MembershipService) AssignRole(ctx context.Context, actorID, targetID, roleID snowflake.ID) error {
	role, err := s.role.Get(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.checkRoleAuthority(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.member.AddRole(ctx, role.ServerID, targetID, roleID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, role.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindMember, targetID, events.OpUpdate, actorID).
		InServer(role.ServerID, 0))

	return nil
}

// RevokeRole removes a granted role from a member under the same authority
// rules as AssignRole.
func (s *MembershipService) RevokeRole(ctx context.Context, actorID, targetID, roleID snowflake.ID) error {
	role, err := s.role.Get(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.checkRoleAuthority(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.member.RemoveRole(ctx, role.ServerID, targetID, roleID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, role.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindMember, targetID, events.OpUpdate, actorID).
		InServer(role.ServerID, 0))

	return nil
}

// SetNickname changes a member's own per-server nickname.
func (s *MembershipService) SetNickname(ctx context.Context, userID, serverID snowflake.ID, nickname string) error {
	if len(nickname) > 64 {
		return fmt.Errorf("%w: nickname too long", types.ErrValidation)
	}

	return s.member.SetNickname(ctx, serverID, userID, nickname)
}

// TransferOwnership hands the server to another member. Only the current
// owner may transfer.
func (s *MembershipService) TransferOwnership(ctx context.Context, actorID, serverID, newOwnerID snowflake.ID) error {
	server, err := s.server.Get(ctx, serverID)
	if err != nil {
		return err
	}

	if server.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can transfer ownership", types.ErrForbidden)
	}

	if err := s.server.TransferOwnership(ctx, serverID, newOwnerID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, serverID)
	s.publisher.Publish(ctx, events.New(events.KindServer, serverID, events.OpUpdate, actorID).
		InServer(serverID, 0))

	return nil
}

// checkRoleAuthority enforces manage-roles plus the hierarchy rule for
// granting or revoking the given role.
func (s *MembershipService) checkRoleAuthority(ctx context.Context, actorID snowflake.ID, role *types.Role) error {
	actorPerms, err := s.permission.RequireMember(ctx, actorID, role.ServerID, 0)
	if err != nil {
		return err
	}

	if !actorPerms.Has(types.CapManageRoles) {
		return fmt.Errorf("%w: missing manage roles capability", types.ErrForbidden)
	}

	if actorPerms.IsOwner {
		return nil
	}

	actorHighest, err := s.highestPosition(ctx, role.ServerID, actorID)
	if err != nil {
		return err
	}

	if !types.Outranks(actorHighest, role.Position) {
		return fmt.Errorf("%w: role position %d is not below your highest role position %d",
			types.ErrForbidden, role.Position, actorHighest)
	}

	return nil
}

func (s *MembershipService) highestPosition(ctx context.Context, serverID, userID snowflake.ID) (int, error) {
	member, err := s.member.Get(ctx, serverID, userID)
	if err != nil {
		return -1, err
	}

	return s.highestPositionOf(ctx, serverID, member)
}

func (s *MembershipService) highestPositionOf(ctx context.Context, serverID snowflake.ID, member *types.ServerMember) (int, error) {
	roles, err := s.role.GetApplicable(ctx, serverID, member.RoleIDs)
	if err != nil {
		return -1, err
	}

	return types.HighestPosition(roles), nil
}
