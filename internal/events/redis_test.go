package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/events"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupPublisher(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(client.Close)

	return mr, client
}

func TestRedisPublisherDeliversEvents(t *testing.T) {
	mr, client := setupPublisher(t)

	sub := mr.NewSubscriber()
	defer sub.Close()

	sub.Subscribe(events.StreamChannel)

	publisher := events.NewRedisPublisher(client, 1, zap.NewNop())

	actor := snowflake.ID(42)
	event := events.New(events.KindMessage, snowflake.ID(100), events.OpCreate, actor).
		InServer(snowflake.ID(7), snowflake.ID(8)).
		WithSequence(3)

	publisher.Publish(context.Background(), event)
	publisher.Close()

	select {
	case msg := <-sub.Messages():
		var got events.Event

		require.NoError(t, sonic.Unmarshal([]byte(msg.Message), &got))
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, events.KindMessage, got.EntityKind)
		assert.Equal(t, events.OpCreate, got.Operation)
		assert.Equal(t, snowflake.ID(100), got.EntityID)
		assert.Equal(t, snowflake.ID(7), got.ServerID)
		assert.Equal(t, snowflake.ID(8), got.ChannelID)
		assert.Equal(t, int64(3), got.SequenceKey)
		assert.Equal(t, actor, got.ActorID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestRedisPublisherCloseDrainsQueue(t *testing.T) {
	mr, client := setupPublisher(t)

	sub := mr.NewSubscriber()
	defer sub.Close()

	sub.Subscribe(events.StreamChannel)

	publisher := events.NewRedisPublisher(client, 2, zap.NewNop())

	const count = 10

	for i := range count {
		publisher.Publish(context.Background(),
			events.New(events.KindServer, snowflake.ID(i+1), events.OpUpdate, snowflake.ID(1)))
	}

	publisher.Close()

	for range count {
		select {
		case <-sub.Messages():
		case <-time.After(2 * time.Second):
			t.Fatal("queued event was dropped on close")
		}
	}
}

func TestEventBuilder(t *testing.T) {
	t.Parallel()

	event := events.New(events.KindDirectMessage, snowflake.ID(5), events.OpEdit, snowflake.ID(9)).
		InConversation(snowflake.ID(11)).
		WithSequence(4)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", event.ID.String())
	assert.Equal(t, events.KindDirectMessage, event.EntityKind)
	assert.Equal(t, snowflake.ID(11), event.ConversationID)
	assert.Equal(t, int64(4), event.SequenceKey)
	assert.WithinDuration(t, time.Now(), event.OccurredAt, time.Minute)
}
