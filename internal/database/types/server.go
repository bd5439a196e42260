package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrServerNotFound = fmt.Errorf("%w: server", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("%w: server member", ErrNotFound)
	ErrInviteNotFound = fmt.Errorf("%w: invite code", ErrNotFound)

	ErrDuplicateMember = fmt.Errorf("%w: server member", ErrConflict)

	// ErrOwnerCannotLeave rejects removing the owner's own membership while
	// they still own the server. Ownership must be transferred first.
	ErrOwnerCannotLeave = fmt.Errorf("%w: owner must transfer ownership before leaving", ErrInvariantViolation)
)

// Server is a community owned by exactly one user. MemberCount is
// denormalized and must equal the count of ServerMember rows; every write
// path that changes membership updates it in the same transaction.
type Server struct {
	ID          snowflake.ID `bun:"id,pk"                  json:"id"`
	Name        string       `bun:"name,notnull"           json:"name"`
	Description string       `bun:"description,nullzero"   json:"description,omitempty"`
	IconURL     string       `bun:"icon_url,nullzero"      json:"iconUrl,omitempty"`
	BannerURL   string       `bun:"banner_url,nullzero"    json:"bannerUrl,omitempty"`
	OwnerID     snowflake.ID `bun:"owner_id,notnull"       json:"ownerId"`
	InviteCode  string       `bun:"invite_code,nullzero"   json:"inviteCode,omitempty"`
	IsOfficial  bool         `bun:"is_official,notnull,default:false"  json:"isOfficial"`
	IsVerified  bool         `bun:"is_verified,notnull,default:false"  json:"isVerified"`
	IsPartnered bool         `bun:"is_partnered,notnull,default:false" json:"isPartnered"`
	Tags        []string     `bun:"tags,array"             json:"tags,omitempty"`

	// DefaultChannelID is a weak reference; the channel may have been
	// deleted since it was set.
	DefaultChannelID snowflake.ID `bun:"default_channel_id,nullzero" json:"defaultChannelId,omitempty"`

	MemberCount int       `bun:"member_count,notnull,default:0" json:"memberCount"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// ServerMember joins a user to a server, unique on (user_id, server_id).
// A removed membership is never resurrected; rejoining creates a new row
// with a new ID and default nickname and roles.
type ServerMember struct {
	ID       snowflake.ID `bun:"id,pk"             json:"id"`
	UserID   snowflake.ID `bun:"user_id,notnull"   json:"userId"`
	ServerID snowflake.ID `bun:"server_id,notnull" json:"serverId"`
	Nickname string       `bun:"nickname,nullzero" json:"nickname,omitempty"`

	// RoleLabel is the legacy free-text role name. Permission resolution
	// ignores it; only RoleIDs and the server's default role count.
	RoleLabel string `bun:"role_label,nullzero" json:"roleLabel,omitempty"`

	// RoleIDs are additional roles granted to this member. The server's
	// default role applies implicitly and need not appear here.
	RoleIDs []snowflake.ID `bun:"role_ids,array" json:"roleIds,omitempty"`

	JoinedAt time.Time `bun:"joined_at,notnull" json:"joinedAt"`
}

// HasRole reports whether the member was explicitly granted the role.
func (m *ServerMember) HasRole(roleID snowflake.ID) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}

	return false
}
