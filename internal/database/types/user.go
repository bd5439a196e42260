package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types/enum"
)

var (
	ErrUserNotFound  = fmt.Errorf("%w: user", ErrNotFound)
	ErrBadgeNotFound = fmt.Errorf("%w: badge", ErrNotFound)
)

// User is a global identity. Friend relationships live on FriendEdge rows,
// not on the user itself.
type User struct {
	ID            snowflake.ID    `bun:"id,pk"                   json:"id"`
	Username      string          `bun:"username,notnull"        json:"username"`
	Discriminator string          `bun:"discriminator,nullzero"  json:"discriminator,omitempty"`
	Email         string          `bun:"email,nullzero"          json:"email,omitempty"`
	Status        enum.UserStatus `bun:"status,notnull,default:0" json:"status"`
	CustomStatus  string          `bun:"custom_status,nullzero"  json:"customStatus,omitempty"`
	LastSeen      time.Time       `bun:"last_seen,nullzero"      json:"lastSeen"`
	IsDeleted     bool            `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	CreatedAt     time.Time       `bun:"created_at,notnull"      json:"createdAt"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"      json:"updatedAt"`
}

// DisplayName is the name#discriminator pair when a discriminator is set.
func (u *User) DisplayName() string {
	if u.Discriminator == "" {
		return u.Username
	}

	return u.Username + "#" + u.Discriminator
}

// Badge is a global cosmetic entity. User references are weak: a granted
// badge may be deleted later and simply fails to render.
type Badge struct {
	ID          snowflake.ID `bun:"id,pk"            json:"id"`
	Name        string       `bun:"name,notnull"     json:"name"`
	Description string       `bun:"description,nullzero" json:"description,omitempty"`
	IconURL     string       `bun:"icon_url,nullzero" json:"iconUrl,omitempty"`
	CreatedAt   time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

// UserBadge grants a badge to a user. No foreign key on badge_id.
type UserBadge struct {
	UserID    snowflake.ID `bun:"user_id,pk"  json:"userId"`
	BadgeID   snowflake.ID `bun:"badge_id,pk" json:"badgeId"`
	GrantedAt time.Time    `bun:"granted_at,notnull" json:"grantedAt"`
}
