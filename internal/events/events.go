package events

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Entity kinds carried on the outbound stream.
const (
	KindServer        = "server"
	KindMember        = "member"
	KindRole          = "role"
	KindCategory      = "category"
	KindChannel       = "channel"
	KindMessage       = "message"
	KindConversation  = "conversation"
	KindDirectMessage = "direct_message"
	KindFriend        = "friend"
	KindUser          = "user"
)

// Operations carried on the outbound stream.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpJoin   = "join"
	OpLeave  = "leave"
	OpKick   = "kick"
	OpEdit   = "edit"
	OpPin    = "pin"
	OpUnpin  = "unpin"
	OpRead   = "read"
)

// Event is emitted after every successful write. Notification, search, and
// telemetry collaborators consume it; nothing inside the core does.
type Event struct {
	ID             uuid.UUID    `json:"id"`
	EntityKind     string       `json:"entityKind"`
	EntityID       snowflake.ID `json:"entityId"`
	Operation      string       `json:"operation"`
	ServerID       snowflake.ID `json:"serverId,omitempty"`
	ChannelID      snowflake.ID `json:"channelId,omitempty"`
	ConversationID snowflake.ID `json:"conversationId,omitempty"`
	SequenceKey    int64        `json:"sequenceKey,omitempty"`
	ActorID        snowflake.ID `json:"actorId"`
	OccurredAt     time.Time    `json:"occurredAt"`
}

// New builds an event with a fresh ID and timestamp.
func New(kind string, entityID snowflake.ID, operation string, actorID snowflake.ID) *Event {
	return &Event{
		ID:         uuid.New(),
		EntityKind: kind,
		EntityID:   entityID,
		Operation:  operation,
		ActorID:    actorID,
		OccurredAt: time.Now(),
	}
}

// InServer scopes the event to a server, optionally to a channel.
func (e *Event) InServer(serverID, channelID snowflake.ID) *Event {
	e.ServerID = serverID
	e.ChannelID = channelID

	return e
}

// InConversation scopes the event to a direct-message thread.
func (e *Event) InConversation(conversationID snowflake.ID) *Event {
	e.ConversationID = conversationID

	return e
}

// WithSequence attaches the causal position of the write.
func (e *Event) WithSequence(seq int64) *Event {
	e.SequenceKey = seq

	return e
}

// Publisher delivers events to external consumers. Publish is best-effort:
// implementations log failures and never propagate them into the write path
// that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event *Event)
	Close()
}

// NoopPublisher drops every event. Used in tests and embedded setups that
// have no external consumers.
type NoopPublisher struct{}

// NewNoop creates a publisher that discards all events.
func NewNoop() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) Publish(context.Context, *Event) {}

func (*NoopPublisher) Close() {}
