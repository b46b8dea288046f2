package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// channelPrefix namespaces every bus channel in the Redis key space so
	// the engine can share an instance with other tooling.
	channelPrefix = "arb:bus:"
	// streamPrefix namespaces the durable signal streams.
	streamPrefix = "arb:stream:"

	// streamRetention is the approximate per-stream entry cap, enforced via
	// XADD MAXLEN ~. Detection runs a few times per second at most, so this
	// covers well over an hour of replay.
	streamRetention int64 = 4096

	// subscribeBuffer bounds how many undelivered payloads a slow consumer
	// may queue before the forwarding goroutine blocks on it.
	subscribeBuffer = 128
)

// SignalBus implements domain.SignalBus on Redis. Pub/Sub carries the
// ephemeral opportunity, execution, and risk channels; Streams give replayable
// history for consumers that reconnect.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

func channelKey(ch domain.BusChannel) string {
	return channelPrefix + string(ch)
}

func streamKey(stream string) string {
	return streamPrefix + stream
}

// Publish sends a payload to one bus channel. Delivery is fire-and-forget:
// subscribers that are not connected at publish time never see the message.
func (sb *SignalBus) Publish(ctx context.Context, channel domain.BusChannel, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channelKey(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on one bus channel and returns a read-only
// payload channel. The subscription lives until ctx is cancelled; the returned
// channel is closed when the forwarding goroutine exits.
func (sb *SignalBus) Subscribe(ctx context.Context, channel domain.BusChannel) (<-chan []byte, error) {
	pubsub := sb.rdb.Subscribe(ctx, channelKey(channel))

	// Receive the subscription confirmation before handing the channel out,
	// so a bad connection surfaces here rather than as a silent dead feed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go sb.forward(ctx, pubsub, out)
	return out, nil
}

// forward copies messages from the Redis subscription into out until ctx is
// cancelled or the subscription's channel closes.
func (sb *SignalBus) forward(ctx context.Context, pubsub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer pubsub.Close()

	in := pubsub.Channel(redis.WithChannelSize(subscribeBuffer))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// StreamAppend appends a payload to a durable signal stream. Entries carry
// the payload under "body" and a publish timestamp under "at"; the stream is
// trimmed to roughly streamRetention entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(stream),
		MaxLen: streamRetention,
		Approx: true,
		Values: map[string]interface{}{
			"body": payload,
			"at":   time.Now().UnixMilli(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID. Pass "0" to replay
// from the oldest retained entry or "$" for new entries only. An empty stream
// yields a nil slice, not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamKey(stream), lastID},
		Count:   int64(count),
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, res := range results {
		for _, entry := range res.Messages {
			body, ok := decodeStreamBody(entry.Values)
			if !ok {
				continue
			}
			messages = append(messages, domain.StreamMessage{ID: entry.ID, Payload: body})
		}
	}
	return messages, nil
}

// decodeStreamBody extracts the payload bytes from one stream entry. Redis
// hands values back as strings; entries without a body field are skipped.
func decodeStreamBody(values map[string]interface{}) ([]byte, bool) {
	raw, ok := values["body"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	}
	return nil, false
}

var _ domain.SignalBus = (*SignalBus)(nil)
