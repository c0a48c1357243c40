package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const defaultChannelPrefix = "jukebox:requests"

// RedisBroker is a [Broker] backed by Redis pub/sub, one channel per owner.
type RedisBroker struct {
	client *redis.Client
	prefix string
	buffer int
	logger *log.Logger
}

// NewRedisBroker creates a broker publishing on "<prefix>:<owner id>" channels.
func NewRedisBroker(client *redis.Client, prefix string, buffer int, logger *log.Logger) *RedisBroker {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RedisBroker{client: client, prefix: strings.TrimRight(prefix, ":"), buffer: buffer, logger: logger}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %w", shared.ErrInvalidConfig, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis: %w", shared.ErrServiceUnavailable, err)
	}
	return client, nil
}

// Channel returns the pub/sub channel for ownerID.
func (b *RedisBroker) Channel(ownerID string) string {
	return b.prefix + ":" + ownerID
}

func (b *RedisBroker) Publish(ctx context.Context, e models.ChangeEvent) error {
	if e.OwnerID == "" {
		return fmt.Errorf("%w: event without owner", shared.ErrInvalidInput)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(e.OwnerID), data).Err(); err != nil {
		return fmt.Errorf("%w: publish: %w", shared.ErrServiceUnavailable, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events published
// after it returns are delivered.
func (b *RedisBroker) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", shared.ErrInvalidInput)
	}

	ps := b.client.Subscribe(ctx, b.Channel(ownerID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("%w: subscribe: %w", shared.ErrServiceUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(ownerID, b.buffer)
	sub.stop = func() {
		cancel()
		ps.Close()
	}

	go b.relay(runCtx, ps, sub)
	return sub, nil
}

// relay decodes messages into sub until the subscription is closed or falls behind.
func (b *RedisBroker) relay(ctx context.Context, ps *redis.PubSub, sub *Subscription) {
	defer close(sub.events)
	defer ps.Close()

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			e, err := models.DecodeChangeEvent([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			if e.OwnerID != sub.ownerID {
				continue
			}
			select {
			case sub.events <- e:
			default:
				b.logger.Warn("evicting slow subscriber", "owner", sub.ownerID)
				return
			}
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ Broker = (*RedisBroker)(nil)
