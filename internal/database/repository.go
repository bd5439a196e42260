package database

import (
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	user         *models.UserModel
	badge        *models.BadgeModel
	friend       *models.FriendModel
	server       *models.ServerModel
	member       *models.MemberModel
	role         *models.RoleModel
	category     *models.CategoryModel
	channel      *models.ChannelModel
	message      *models.MessageModel
	conversation *models.ConversationModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *Repository {
	return &Repository{
		user:         models.NewUser(db, gen, logger),
		badge:        models.NewBadge(db, gen, logger),
		friend:       models.NewFriend(db, logger),
		server:       models.NewServer(db, gen, logger),
		member:       models.NewMember(db, gen, logger),
		role:         models.NewRole(db, gen, logger),
		category:     models.NewCategory(db, gen, logger),
		channel:      models.NewChannel(db, gen, logger),
		message:      models.NewMessage(db, gen, logger),
		conversation: models.NewConversation(db, gen, logger),
	}
}

// User returns the user model repository.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Badge returns the badge model repository.
func (r *Repository) Badge() *models.BadgeModel {
	return r.badge
}

// Friend returns the friend edge model repository.
func (r *Repository) Friend() *models.FriendModel {
	return r.friend
}

// Server returns the server model repository.
func (r *Repository) Server() *models.ServerModel {
	return r.server
}

// Member returns the server member model repository.
func (r *Repository) Member() *models.MemberModel {
	return r.member
}

// Role returns the role model repository.
func (r *Repository) Role() *models.RoleModel {
	return r.role
}

// Category returns the category model repository.
func (r *Repository) Category() *models.CategoryModel {
	return r.category
}

// Channel returns the channel model repository.
func (r *Repository) Channel() *models.ChannelModel {
	return r.channel
}

// Message returns the message model repository.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// Conversation returns the conversation model repository.
func (r *Repository) Conversation() *models.ConversationModel {
	return r.conversation
}
