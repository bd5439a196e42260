package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)

	// ErrReplyOutsideChannel rejects a reply referencing a message from a
	// different channel at write time. After the fact the reference is a
	// weak one: a deleted parent leaves it dangling, which readers treat as
	// "reply context lost" rather than an error.
	ErrReplyOutsideChannel = fmt.Errorf("%w: reply references a message in another channel", ErrValidation)
)

// Message is a channel message. ServerID is stamped from the channel at
// write time, never taken from the caller, so it always matches the
// channel's server. Sequence is the channel-scoped ordering key; CreatedAt
// is retained for display only.
type Message struct {
	ID        snowflake.ID `bun:"id,pk"              json:"id"`
	ChannelID snowflake.ID `bun:"channel_id,notnull" json:"channelId"`
	ServerID  snowflake.ID `bun:"server_id,notnull"  json:"serverId"`
	AuthorID  snowflake.ID `bun:"author_id,notnull"  json:"authorId"`
	Sequence  int64        `bun:"sequence,notnull"   json:"sequence"`

	Content     string          `bun:"content,notnull"        json:"content"`
	Attachments json.RawMessage `bun:"attachments,nullzero,type:jsonb" json:"attachments,omitempty"`
	MentionIDs  []snowflake.ID  `bun:"mention_ids,array"      json:"mentionIds,omitempty"`

	IsPinned bool      `bun:"is_pinned,notnull,default:false" json:"isPinned"`
	Edited   bool      `bun:"edited,notnull,default:false"    json:"edited"`
	EditedAt time.Time `bun:"edited_at,nullzero"              json:"editedAt,omitempty"`

	// ReplyToID is a weak reference to another message in the same channel.
	ReplyToID snowflake.ID `bun:"reply_to_id,nullzero" json:"replyToId,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// SlowModeRetryAfter computes how long an author must still wait before
// posting again, given their previous post time. A non-positive result
// means the write may proceed.
func SlowModeRetryAfter(lastPosted time.Time, slowMode time.Duration, now time.Time) time.Duration {
	if slowMode <= 0 || lastPosted.IsZero() {
		return 0
	}

	return slowMode - now.Sub(lastPosted)
}
