//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/wagiedev/postbridge-go"
)

// redisClient connects to POSTBRIDGE_TEST_REDIS or skips the test.
func redisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	addr := os.Getenv("POSTBRIDGE_TEST_REDIS")
	if addr == "" {
		t.Skip("POSTBRIDGE_TEST_REDIS not set")
	}

	client, err := postbridge.NewRedisClient(context.Background(), addr)
	if err != nil {
		t.Skipf("Redis at %s unavailable: %v", addr, err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// runChannel reads ch until the test ends and waits for its subscription.
func runChannel(t *testing.T, ch *postbridge.RedisChannel) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = ch.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	<-ch.Ready()
}
