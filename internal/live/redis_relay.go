package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kursadbilgin/medtransit/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRelayChannel = "medtransit:notifications"

// RedisRelay shares fan-out between instances: Broadcast publishes to a Redis
// channel and Run feeds every received notification into the local registry.
type RedisRelay struct {
	client   *goredis.Client
	registry *Registry
	channel  string
	logger   *zap.Logger
}

func NewRedisRelay(client *goredis.Client, registry *Registry, channel string, logger *zap.Logger) (*RedisRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("live registry is required")
	}
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisRelay{
		client:   client,
		registry: registry,
		channel:  channel,
		logger:   logger,
	}, nil
}

// Broadcast publishes n for every instance. When Redis is unavailable the
// notification is still delivered to local subscriptions.
func (r *RedisRelay) Broadcast(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(NewNotificationPayload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal live notification: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.registry.Publish(n)
		return fmt.Errorf("failed to publish live notification: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and blocks until ctx is canceled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close() //nolint:errcheck // best-effort unsubscribe

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe live relay channel %q: %w", r.channel, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(raw string) {
	var payload NotificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		r.logger.Warn("ignoring malformed live relay message", zap.Error(err))
		return
	}
	r.registry.Publish(payload.Notification())
}
