package authz_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-authz"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisUsageRecorderKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	now := time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)
	r := authz.NewRedisUsageRecorder(client,
		authz.WithUsageKeyPrefix("app:usage"),
		authz.WithUsageClock(func() time.Time { return now }),
	)

	id := uuid.MustParse("0b9e2a47-51d3-4e78-a6c4-8f1d2e3b4c02")
	assert.Equal(t, "app:usage:0b9e2a47-51d3-4e78-a6c4-8f1d2e3b4c02:rewrites:2026-01", r.Key(id, authz.UsageRewrites))
}

func TestRedisUsageRecorderShortCircuits(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	r := authz.NewRedisUsageRecorder(client)

	ok, err := r.IncrementUsage(context.Background(), uuid.New(), authz.UsageRewrites, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.IncrementUsage(context.Background(), uuid.New(), authz.UsageType("tweets"), 5)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryBadInput))

	assert.Panics(t, func() { authz.NewRedisUsageRecorder(nil) })
}

func TestRedisUsageRecorderIncrement(t *testing.T) {
	url := os.Getenv("AUTHZ_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AUTHZ_TEST_REDIS_URL not set")
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	r := authz.NewRedisUsageRecorder(client, authz.WithUsageKeyPrefix("authz-test:"+uuid.NewString()))
	id := uuid.New()
	defer client.Del(ctx, r.Key(id, authz.UsageAIRequests))

	for i := 0; i < 3; i++ {
		ok, err := r.IncrementUsage(ctx, id, authz.UsageAIRequests, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := r.IncrementUsage(ctx, id, authz.UsageAIRequests, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, r.Key(id, authz.UsageAIRequests)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ok, err = r.IncrementUsage(ctx, id, authz.UsageAIRequests, authz.Unlimited)
	require.NoError(t, err)
	assert.True(t, ok)
}
