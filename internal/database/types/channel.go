package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types/enum"
)

var (
	ErrChannelNotFound  = fmt.Errorf("%w: channel", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("%w: category", ErrNotFound)

	// ErrCategoryServerMismatch rejects attaching a channel to a category
	// that belongs to a different server.
	ErrCategoryServerMismatch = fmt.Errorf("%w: category belongs to a different server", ErrValidation)
)

// Category groups channels within a server for display ordering.
type Category struct {
	ID       snowflake.ID `bun:"id,pk"             json:"id"`
	ServerID snowflake.ID `bun:"server_id,notnull" json:"serverId"`
	Name     string       `bun:"name,notnull"      json:"name"`
	Position int          `bun:"position,notnull,default:0" json:"position"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Channel is a message container inside a server. CategoryID is a weak
// reference and may be zero; when set it must point at a category of the
// same server. LastSequence is the per-channel ordering counter: the insert
// transaction bumps it with a row-locking UPDATE, which both hands out the
// authoritative sequence key and serializes concurrent posts.
type Channel struct {
	ID         snowflake.ID     `bun:"id,pk"               json:"id"`
	ServerID   snowflake.ID     `bun:"server_id,notnull"   json:"serverId"`
	CategoryID snowflake.ID     `bun:"category_id,nullzero" json:"categoryId,omitempty"`
	Name       string           `bun:"name,notnull"        json:"name"`
	Type       enum.ChannelType `bun:"type,notnull,default:0"     json:"type"`
	Position   int              `bun:"position,notnull,default:0" json:"position"`
	Topic      string           `bun:"topic,nullzero"      json:"topic,omitempty"`

	// SlowModeSeconds is the minimum interval between successive messages
	// from one author in this channel. Zero disables slow mode.
	SlowModeSeconds int `bun:"slow_mode_seconds,notnull,default:0" json:"slowModeSeconds"`

	// AllowedRoleIDs is consulted only while IsPrivate is true.
	IsPrivate      bool           `bun:"is_private,notnull,default:false" json:"isPrivate"`
	AllowedRoleIDs []snowflake.ID `bun:"allowed_role_ids,array" json:"allowedRoleIds,omitempty"`

	LastSequence int64     `bun:"last_sequence,notnull,default:0" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// SlowMode returns the slow-mode interval as a duration.
func (c *Channel) SlowMode() time.Duration {
	return time.Duration(c.SlowModeSeconds) * time.Second
}
