package redisinfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/signcast/notify/internal/config"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/bus"
	"github.com/sirupsen/logrus"
)

// channel is the shared Pub/Sub channel for cross-instance fan-out.
const channel = "notify:outbox:events"

// envelope wraps an outbox record with its target screen so every
// instance can replay it into its local hub.
type envelope struct {
	ScreenID string                    `json:"screen_id"`
	Record   domain.NotificationRecord `json:"record"`
	SentAt   time.Time                 `json:"sent_at"`
}

// Bridge connects the local in-process hub with a Redis Pub/Sub
// channel so an enqueue on any gateway instance reaches devices
// connected to every instance. Without it the hub is process-local,
// which is fine for single-instance deployments: reconnect catch-up
// still covers anything a device misses.
type Bridge struct {
	client *redis.Client
	hub    *bus.Hub
}

func NewBridge(cfg *config.Config, hub *bus.Hub) *Bridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Bridge{client: client, hub: hub}
}

// Publish sends the record to the shared channel. On failure it falls
// back to the local hub so locally connected devices still get pushed.
func (b *Bridge) Publish(screenID string, rec domain.NotificationRecord) {
	body, err := json.Marshal(envelope{ScreenID: screenID, Record: rec, SentAt: time.Now().UTC()})
	if err != nil {
		logrus.WithError(err).Error("bridge: encode envelope")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		logrus.WithError(err).Warn("bridge: redis publish failed, delivering locally")
		b.hub.Publish(screenID, rec)
	}
}

// Run subscribes to the shared channel and fans incoming records into
// the local hub. It is the gateway instance's single outbox-consumer
// goroutine; it returns when ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	// Ensure the subscription is established before reading messages.
	if _, err := pubsub.Receive(ctx); err != nil {
		logrus.WithError(err).Error("bridge: subscribe failed")
		return
	}
	logrus.WithField("channel", channel).Info("bridge: subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logrus.WithError(err).Warn("bridge: decode envelope")
				continue
			}
			if env.ScreenID == "" {
				continue
			}
			b.hub.Publish(env.ScreenID, env.Record)
		}
	}
}

// Close releases the Redis client.
func (b *Bridge) Close() error { return b.client.Close() }
