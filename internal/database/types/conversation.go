package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrConversationNotFound  = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrParticipantNotFound   = fmt.Errorf("%w: conversation participant", ErrNotFound)
	ErrDirectMessageNotFound = fmt.Errorf("%w: direct message", ErrNotFound)

	ErrDuplicateParticipant = fmt.Errorf("%w: conversation participant", ErrConflict)

	// ErrAuthorCannotMarkRead rejects an author acknowledging their own
	// direct message; only the recipient toggles the read flag.
	ErrAuthorCannotMarkRead = fmt.Errorf("%w: author cannot mark own message read", ErrValidation)
)

// Conversation is a direct-message thread outside any server. Ordering
// mirrors channels: LastSequence hands out conversation-scoped sequence
// keys inside the insert transaction.
type Conversation struct {
	ID           snowflake.ID `bun:"id,pk" json:"id"`
	LastSequence int64        `bun:"last_sequence,notnull,default:0" json:"-"`
	CreatedAt    time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

// ConversationParticipant joins a user to a conversation, unique on
// (user_id, conversation_id).
type ConversationParticipant struct {
	ID             snowflake.ID `bun:"id,pk"                   json:"id"`
	ConversationID snowflake.ID `bun:"conversation_id,notnull" json:"conversationId"`
	UserID         snowflake.ID `bun:"user_id,notnull"         json:"userId"`
	JoinedAt       time.Time    `bun:"joined_at,notnull"       json:"joinedAt"`
}

// DirectMessage mirrors Message scoped to a conversation, with an extra
// recipient-acknowledged read flag.
type DirectMessage struct {
	ID             snowflake.ID `bun:"id,pk"                   json:"id"`
	ConversationID snowflake.ID `bun:"conversation_id,notnull" json:"conversationId"`
	AuthorID       snowflake.ID `bun:"author_id,notnull"       json:"authorId"`
	Sequence       int64        `bun:"sequence,notnull"        json:"sequence"`

	Content     string          `bun:"content,notnull"                 json:"content"`
	Attachments json.RawMessage `bun:"attachments,nullzero,type:jsonb" json:"attachments,omitempty"`
	MentionIDs  []snowflake.ID  `bun:"mention_ids,array"               json:"mentionIds,omitempty"`

	Edited   bool      `bun:"edited,notnull,default:false" json:"edited"`
	EditedAt time.Time `bun:"edited_at,nullzero"           json:"editedAt,omitempty"`
	Read     bool      `bun:"read,notnull,default:false"   json:"read"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
