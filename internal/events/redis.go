package events

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// StreamChannel is the Redis pub/sub channel external consumers subscribe to.
const StreamChannel = "harbor:events"

const publishTimeout = 5 * time.Second

// RedisPublisher fans events out over Redis pub/sub. Publishing is
// asynchronous: the producing write path only enqueues, and delivery
// failures are logged rather than surfaced, so a slow or absent consumer
// never blocks or rolls back a committed write.
type RedisPublisher struct {
	client rueidis.Client
	queue  chan *Event
	wg     conc.WaitGroup
	logger *zap.Logger
}

// NewRedisPublisher starts a publisher with the given number of delivery
// workers. Close drains the queue before returning.
func NewRedisPublisher(client rueidis.Client, workers int, logger *zap.Logger) *RedisPublisher {
	if workers <= 0 {
		workers = 2
	}

	p := &RedisPublisher{
		client: client,
		queue:  make(chan *Event, 256),
		logger: logger.Named("events"),
	}

	for range workers {
		p.wg.Go(p.deliver)
	}

	return p
}

// Publish enqueues the event for delivery. When the queue is full the event
// is dropped and logged; the stream is best-effort by contract.
func (p *RedisPublisher) Publish(_ context.Context, event *Event) {
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("Event queue full, dropping event",
			zap.String("entityKind", event.EntityKind),
			zap.String("operation", event.Operation),
			zap.Uint64("entityID", uint64(event.EntityID)))
	}
}

// Close stops accepting events and waits for the queue to drain.
func (p *RedisPublisher) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *RedisPublisher) deliver() {
	for event := range p.queue {
		payload, err := sonic.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		err = p.client.Do(ctx,
			p.client.B().Publish().Channel(StreamChannel).Message(string(payload)).Build(),
		).Error()
		cancel()

		if err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("entityKind", event.EntityKind),
				zap.String("operation", event.Operation),
				zap.Error(err))
		}
	}
}
