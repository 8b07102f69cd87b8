package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger via t.Logf
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Info(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[INFO] %s %v", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[ERROR] %s %v", msg, keysAndValues)
}

func (l *testLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[WARN] %s %v", msg, keysAndValues)
}

func (l *testLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[DEBUG] %s %v", msg, keysAndValues)
}

// setupLimiter connects to Redis DB 15 on localhost, skipping when absent
func setupLimiter(t *testing.T) (*RateLimiter, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available on localhost:6379: %v", err)
	}
	require.NoError(t, rdb.FlushDB(ctx).Err())

	return NewRateLimiter(rdb, &testLogger{t: t}), ctx
}

func TestRateLimiter_UserLimit(t *testing.T) {
	limiter, ctx := setupLimiter(t)

	for i := 1; i <= 3; i++ {
		res, err := limiter.CheckUserLimit(ctx, "alice", 3, 60)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
		assert.Equal(t, int64(i), res.CurrentCount)
		assert.Equal(t, int64(0), res.RetryAfterSeconds)
	}

	res, err := limiter.CheckUserLimit(ctx, "alice", 3, 60)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(3), res.Limit)
	assert.Greater(t, res.RetryAfterSeconds, int64(0))

	// Other callers have their own window
	res, err = limiter.CheckUserLimit(ctx, "bob", 3, 60)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiter_ResetAndCount(t *testing.T) {
	limiter, ctx := setupLimiter(t)

	_, err := limiter.CheckGlobalLimit(ctx, 100)
	require.NoError(t, err)
	_, err = limiter.CheckGlobalLimit(ctx, 100)
	require.NoError(t, err)

	count, err := limiter.GetCurrentCount(ctx, limiter.GlobalKey())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, limiter.ResetLimit(ctx, limiter.GlobalKey()))
	count, err = limiter.GetCurrentCount(ctx, limiter.GlobalKey())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLimits_Normalize(t *testing.T) {
	got := Limits{Global: 0, User: -1}.Normalize()
	assert.Equal(t, DefaultLimits, got)

	got = Limits{Global: 5, User: 2}.Normalize()
	assert.Equal(t, Limits{Global: 5, User: 2}, got)
}
