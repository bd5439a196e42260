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

// ServerService handles server provisioning and the administrative surface:
// channels, categories, roles, invites. Every permission-affecting change
// invalidates the server's resolution cache in the same call.
type ServerService struct {
	server     *models.ServerModel
	channel    *models.ChannelModel
	category   *models.CategoryModel
	role       *models.RoleModel
	user       *models.UserModel
	permission *PermissionService
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewServer creates a new server service.
func NewServer(
	server *models.ServerModel,
	channel *models.ChannelModel,
	category *models.CategoryModel,
	role *models.RoleModel,
	user *models.UserModel,
	permission *PermissionService,
	publisher events.Publisher,
	logger *zap.Logger,
) *ServerService {
	return &ServerService{
		server:     server,
		channel:    channel,
		category:   category,
		role:       role,
		user:       user,
		permission: permission,
		publisher:  publisher,
		logger:     logger.Named("server_service"),
	}
}

// Create provisions a server owned by the given user, including the
// default role, default channel, and the owner's membership.
func (s *ServerService) Create(ctx context.Context, ownerID snowflake.ID, server *types.Server) (*types.Server, error) {
	exists, err := s.user.Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, types.ErrUserNotFound
	}

	server.OwnerID = ownerID

	if err := s.server.Create(ctx, server); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindServer, server.ID, events.OpCreate, ownerID).
		InServer(server.ID, 0))

	return server, nil
}

// Delete tears a server down. Owner only.
func (s *ServerService) Delete(ctx context.Context, actorID, serverID snowflake.ID) error {
	server, err := s.server.Get(ctx, serverID)
	if err != nil {
		return err
	}

	if server.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can delete a server", types.ErrForbidden)
	}

	if err := s.server.Delete(ctx, serverID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, serverID)
	s.publisher.Publish(ctx, events.New(events.KindServer, serverID, events.OpDelete, actorID).
		InServer(serverID, 0))

	return nil
}

// CreateChannel adds a channel. Requires manage channels; the category, if
// given, must belong to the same server.
func (s *ServerService) CreateChannel(ctx context.Context, actorID snowflake.ID, channel *types.Channel) (*types.Channel, error) {
	if err := s.requireCapability(ctx, actorID, channel.ServerID, types.CapManageChannels); err != nil {
		return nil, err
	}

	if err := s.channel.Create(ctx, channel); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindChannel, channel.ID, events.OpCreate, actorID).
		InServer(channel.ServerID, channel.ID))

	return channel, nil
}

// UpdateChannel persists channel attribute changes under manage channels.
func (s *ServerService) UpdateChannel(ctx context.Context, actorID snowflake.ID, channel *types.Channel) error {
	if err := s.requireCapability(ctx, actorID, channel.ServerID, types.CapManageChannels); err != nil {
		return err
	}

	if err := s.channel.Update(ctx, channel); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindChannel, channel.ID, events.OpUpdate, actorID).
		InServer(channel.ServerID, channel.ID))

	return nil
}

// SetChannelPrivacy toggles a channel's private flag and allow-list, then
// invalidates cached resolutions since visibility changed.
func (s *ServerService) SetChannelPrivacy(
	ctx context.Context, actorID, channelID snowflake.ID, private bool, allowedRoleIDs []snowflake.ID,
) error {
	channel, err := s.channel.Get(ctx, channelID)
	if err != nil {
		return err
	}

	if err := s.requireCapability(ctx, actorID, channel.ServerID, types.CapManageChannels); err != nil {
		return err
	}

	if err := s.channel.SetPrivacy(ctx, channelID, private, allowedRoleIDs); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, channel.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindChannel, channelID, events.OpUpdate, actorID).
		InServer(channel.ServerID, channelID))

	return nil
}

// DeleteChannel removes a channel and its messages under manage channels.
func (s *ServerService) DeleteChannel(ctx context.Context, actorID, channelID snowflake.ID) error {
	channel, err := s.channel.Get(ctx, channelID)
	if err != nil {
		return err
	}

	if err := s.requireCapability(ctx, actorID, channel.ServerID, types.CapManageChannels); err != nil {
		return err
	}

	if err := s.channel.Delete(ctx, channelID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindChannel, channelID, events.OpDelete, actorID).
		InServer(channel.ServerID, channelID))

	return nil
}

// CreateCategory adds a channel category under manage channels.
func (s *ServerService) CreateCategory(ctx context.Context, actorID snowflake.ID, category *types.Category) (*types.Category, error) {
	if err := s.requireCapability(ctx, actorID, category.ServerID, types.CapManageChannels); err != nil {
		return nil, err
	}

	if err := s.category.Create(ctx, category); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindCategory, category.ID, events.OpCreate, actorID).
		InServer(category.ServerID, 0))

	return category, nil
}

// DeleteCategory removes a category; its channels survive uncategorized.
func (s *ServerService) DeleteCategory(ctx context.Context, actorID, categoryID snowflake.ID) error {
	category, err := s.category.Get(ctx, categoryID)
	if err != nil {
		return err
	}

	if err := s.requireCapability(ctx, actorID, category.ServerID, types.CapManageChannels); err != nil {
		return err
	}

	if err := s.category.Delete(ctx, categoryID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.New(events.KindCategory, categoryID, events.OpDelete, actorID).
		InServer(category.ServerID, 0))

	return nil
}

// CreateRole adds a role under manage roles. The new role must sit below
// the actor's highest role unless the actor owns the server.
func (s *ServerService) CreateRole(ctx context.Context, actorID snowflake.ID, role *types.Role) (*types.Role, error) {
	perms, err := s.requirePerms(ctx, actorID, role.ServerID, types.CapManageRoles)
	if err != nil {
		return nil, err
	}

	if !perms.IsOwner {
		highest, err := s.actorHighestPosition(ctx, role.ServerID, actorID)
		if err != nil {
			return nil, err
		}

		if !types.Outranks(highest, role.Position) {
			return nil, fmt.Errorf("%w: cannot create a role at or above your highest position", types.ErrForbidden)
		}
	}

	if err := s.role.Create(ctx, role); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.New(events.KindRole, role.ID, events.OpCreate, actorID).
		InServer(role.ServerID, 0))

	return role, nil
}

// UpdateRolePermissions replaces a role's overlay and invalidates cached
// resolutions.
func (s *ServerService) UpdateRolePermissions(
	ctx context.Context, actorID, roleID snowflake.ID, overlay types.Overlay,
) error {
	role, err := s.role.Get(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleAuthority(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.role.UpdatePermissions(ctx, roleID, overlay); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, role.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindRole, roleID, events.OpUpdate, actorID).
		InServer(role.ServerID, 0))

	return nil
}

// SetRolePosition moves a role in the hierarchy and invalidates cached
// resolutions.
func (s *ServerService) SetRolePosition(ctx context.Context, actorID, roleID snowflake.ID, position int) error {
	role, err := s.role.Get(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleAuthority(ctx, actorID, role); err != nil {
		return err
	}

	perms, err := s.permission.Resolve(ctx, actorID, role.ServerID, 0)
	if err != nil {
		return err
	}

	if !perms.IsOwner {
		highest, err := s.actorHighestPosition(ctx, role.ServerID, actorID)
		if err != nil {
			return err
		}

		if !types.Outranks(highest, position) {
			return fmt.Errorf("%w: cannot raise a role to or above your highest position", types.ErrForbidden)
		}
	}

	if err := s.role.SetPosition(ctx, roleID, position); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, role.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindRole, roleID, events.OpUpdate, actorID).
		InServer(role.ServerID, 0))

	return nil
}

// DeleteRole removes a role and invalidates cached resolutions. The
// default role is immutable.
func (s *ServerService) DeleteRole(ctx context.Context, actorID, roleID snowflake.ID) error {
	role, err := s.role.Get(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleAuthority(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.role.Delete(ctx, roleID); err != nil {
		return err
	}

	s.permission.Invalidate(ctx, role.ServerID)
	s.publisher.Publish(ctx, events.New(events.KindRole, roleID, events.OpDelete, actorID).
		InServer(role.ServerID, 0))

	return nil
}

// ResolveInvite maps an invite code to its server.
func (s *ServerService) ResolveInvite(ctx context.Context, code string) (*types.Server, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: invite code is empty", types.ErrValidation)
	}

	return s.server.GetByInviteCode(ctx, code)
}

// GetInvite returns the server's current invite code. Members with the
// create invites capability may read it and pass it on.
func (s *ServerService) GetInvite(ctx context.Context, actorID, serverID snowflake.ID) (string, error) {
	if err := s.requireCapability(ctx, actorID, serverID, types.CapCreateInvites); err != nil {
		return "", err
	}

	server, err := s.server.Get(ctx, serverID)
	if err != nil {
		return "", err
	}

	return server.InviteCode, nil
}

// RegenerateInvite replaces the server's invite code under manage server.
func (s *ServerService) RegenerateInvite(ctx context.Context, actorID, serverID snowflake.ID) (string, error) {
	if err := s.requireCapability(ctx, actorID, serverID, types.CapManageServer); err != nil {
		return "", err
	}

	code, err := s.server.RegenerateInvite(ctx, serverID)
	if err != nil {
		return "", err
	}

	s.publisher.Publish(ctx, events.New(events.KindServer, serverID, events.OpUpdate, actorID).
		InServer(serverID, 0))

	return code, nil
}

func (s *ServerService) requireCapability(ctx context.Context, actorID, serverID snowflake.ID, capability types.Capability) error {
	_, err := s.requirePerms(ctx, actorID, serverID, capability)
	return err
}

func (s *ServerService) requirePerms(
	ctx context.Context, actorID, serverID snowflake.ID, capability types.Capability,
) (types.EffectivePermissions, error) {
	perms, err := s.permission.RequireMember(ctx, actorID, serverID, 0)
	if err != nil {
		return types.NoAccess(), err
	}

	if !perms.Has(capability) {
		return types.NoAccess(), fmt.Errorf("%w: missing %s capability", types.ErrForbidden, capability)
	}

	return perms, nil
}

// requireRoleAuthority checks manage roles plus hierarchy dominance over
// the role being changed.
func (s *ServerService) requireRoleAuthority(ctx context.Context, actorID snowflake.ID, role *types.Role) error {
	perms, err := s.requirePerms(ctx, actorID, role.ServerID, types.CapManageRoles)
	if err != nil {
		return err
	}

	if perms.IsOwner {
		return nil
	}

	highest, err := s.actorHighestPosition(ctx, role.ServerID, actorID)
	if err != nil {
		return err
	}

	if !types.Outranks(highest, role.Position) {
		return fmt.Errorf("%w: role outranks or equals your highest role", types.ErrForbidden)
	}

	return nil
}

func (s *ServerService) actorHighestPosition(ctx context.Context, serverID, actorID snowflake.ID) (int, error) {
	member, err := s.permission.member.Get(ctx, serverID, actorID)
	if err != nil {
		return -1, err
	}

	roles, err := s.role.GetApplicable(ctx, serverID, member.RoleIDs)
	if err != nil {
		return -1, err
	}

	return types.HighestPosition(roles), nil
}
