// Package redis carries bridge frames over Redis pub/sub.
//
// Every bridge listens on its own channel name and addresses remote bridges by
// theirs. Frames are published verbatim; the receiving side reports the
// channel name as the event origin. Pub/sub carries no sender address, so
// events have no Source: replies go to the target configured on the bridge.
package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/transport"
)

// NewClient connects to Redis and verifies the connection with PING.
//
// addr is either host:port or a redis:// or rediss:// URL.
func NewClient(ctx context.Context, addr string) (redis.UniversalClient, error) {
	opts := &redis.UniversalOptions{Addrs: []string{addr}}

	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		opts = &redis.UniversalOptions{
			Addrs:     []string{parsed.Addr},
			Username:  parsed.Username,
			Password:  parsed.Password,
			DB:        parsed.DB,
			TLSConfig: parsed.TLSConfig,
		}
	}

	client := redis.NewUniversalClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Channel is the local endpoint subscribed to one pub/sub channel.
type Channel struct {
	log       *slog.Logger
	client    redis.UniversalClient
	name      string
	listeners transport.Listeners

	readyOnce sync.Once
	ready     chan struct{}
}

// Compile-time verification that Channel implements config.Endpoint.
var _ config.Endpoint = (*Channel)(nil)

// New creates an endpoint for the named channel. Call Run to subscribe.
func New(log *slog.Logger, client redis.UniversalClient, name string) *Channel {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Channel{
		log:    log.With("component", "redis", "channel", name),
		client: client,
		name:   name,
		ready:  make(chan struct{}),
	}
}

// Name returns the channel this endpoint listens on.
func (c *Channel) Name() string { return c.name }

// Ready is closed once the subscription is confirmed by the server.
// Frames published before that are not received.
func (c *Channel) Ready() <-chan struct{} { return c.ready }

// Subscribe registers a listener for frames published on the channel.
func (c *Channel) Subscribe(listener func(config.MessageEvent)) func() {
	return c.listeners.Add(listener)
}

// IsSelf reports whether target publishes back onto this channel.
func (c *Channel) IsSelf(target config.Peer) bool {
	if target == nil {
		return true
	}

	topic, ok := target.(*Topic)

	return ok && topic.name == c.name
}

// To returns a peer that publishes on the named channel.
func (c *Channel) To(name string) config.Peer {
	return &Topic{client: c.client, name: name}
}

// Run subscribes and delivers frames until ctx ends or the subscription is
// closed by the server. An ended ctx returns nil.
func (c *Channel) Run(ctx context.Context) error {
	pubsub := c.client.Subscribe(ctx, c.name)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("subscribe %s: %w", c.name, err)
	}

	c.readyOnce.Do(func() { close(c.ready) })
	c.log.Debug("Subscribed")

	messages := pubsub.Channel()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return errors.ErrTransportClosed
			}

			c.listeners.Notify(config.MessageEvent{
				Data:   msg.Payload,
				Origin: msg.Channel,
			})

		case <-ctx.Done():
			c.log.Debug("Unsubscribing")

			return nil
		}
	}
}

// Topic publishes frames on one channel.
type Topic struct {
	client redis.UniversalClient
	name   string
}

// Name returns the channel frames are published on.
func (t *Topic) Name() string { return t.name }

// PostMessage publishes message. The target origin is not checked; the
// channel name is the address.
func (t *Topic) PostMessage(ctx context.Context, message, _ string) error {
	if err := t.client.Publish(ctx, t.name, message).Err(); err != nil {
		if stderrors.Is(err, redis.ErrClosed) {
			return fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
		}

		return fmt.Errorf("publish %s: %w", t.name, err)
	}

	return nil
}
