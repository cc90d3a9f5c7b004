package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	once           sync.Once
	redisContainer *tcredis.RedisContainer
	redisURL       string
	startErr       error
	wg             sync.WaitGroup
)

// UseRedis returns a client for a Redis container shared by every test in
// the run. Keys are not flushed between tests, so tests should use their own
// stream and set names.
func UseRedis(t *testing.T) *redis.Client {
	t.Helper()

	once.Do(func() {
		ctx := context.Background()
		redisContainer, startErr = tcredis.Run(ctx, "redis:7-alpine")
		if startErr != nil {
			return
		}
		redisURL, startErr = redisContainer.ConnectionString(ctx)
	})

	if startErr != nil {
		t.Fatalf("failed to start redis container: %v", startErr)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}

	client := redis.NewClient(opts)
	wg.Add(1)
	t.Cleanup(func() {
		client.Close()
		wg.Done()
	})
	return client
}

func TerminateRedisForE2E() {
	wg.Wait()
	if err := testcontainers.TerminateContainer(redisContainer); err != nil {
		fmt.Printf("failed to terminate redis container: %v", err)
	}
}
