package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultChannel is the Redis channel change signals are published on.
const DefaultChannel = "eventroom:changes"

type envelope struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
}

// Redis is a Notifier that also shares signals with other processes
// through Redis pub/sub, so live queries in one process see writes made by
// another against the same database.
//
// Local watchers are woken synchronously by Notify; signals published by
// this process are not delivered back to it.
type Redis struct {
	local   *Local
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	origin  string
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// RedisOption configures a Redis notifier.
type RedisOption func(*Redis)

// WithChannel overrides the pub/sub channel.
func WithChannel(name string) RedisOption {
	return func(r *Redis) { r.channel = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis connects to the Redis server at url (redis://host:port/db),
// subscribes to the change channel and starts relaying remote signals.
func NewRedis(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	r := &Redis{
		local:   NewLocal(),
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.pubsub = client.Subscribe(ctx, r.channel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		r.pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.relay(runCtx, r.pubsub.Channel())
	return r, nil
}

// Notify wakes local watchers and publishes the signal.
func (r *Redis) Notify(ctx context.Context, topic string) error {
	if err := r.local.Notify(ctx, topic); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Origin: r.origin, Topic: topic})
	if err != nil {
		return fmt.Errorf("marshal change signal: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change signal: %w", err)
	}
	return nil
}

// Watch implements Notifier.
func (r *Redis) Watch(topic string) (<-chan struct{}, func()) {
	return r.local.Watch(topic)
}

// Close stops relaying and closes the connection.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		err = r.pubsub.Close()
		r.wg.Wait()
		if cerr := r.client.Close(); err == nil {
			err = cerr
		}
		r.local.Close()
	})
	return err
}

func (r *Redis) relay(ctx context.Context, messages <-chan *redis.Message) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("ignoring malformed change signal", "channel", msg.Channel, "error", err)
				continue
			}
			if env.Origin == r.origin || env.Topic == "" {
				continue
			}
			r.logger.Debug("remote change", "topic", env.Topic)
			_ = r.local.Notify(ctx, env.Topic)
		}
	}
}
