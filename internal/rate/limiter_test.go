package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedisLimiter(client, "", 3, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 5, 0, time.UTC)
	l.Now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4|/sign-in")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(3-i), res.Remaining)
		assert.Equal(t, int64(i), res.CurrentHits)
	}

	res, err := l.Allow(ctx, "1.2.3.4|/sign-in")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// otra clave no comparte contador
	res, err = l.Allow(ctx, "5.6.7.8|/sign-in")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	key := "rl:1.2.3.4|/sign-in:" + "1735725600"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// ventana siguiente
	now = now.Add(time.Minute)
	res, err = l.Allow(ctx, "1.2.3.4|/sign-in")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_KeyExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedisLimiter(client, "otp:", 1, 30*time.Second)

	_, err := l.Allow(ctx, "a b")
	require.NoError(t, err)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "otp:a_b:")

	mr.FastForward(31 * time.Second)
	assert.Empty(t, mr.Keys())
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	_, err := NewRedisLimiter(client, "", 1, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	res, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining)

	res, _ = l.Allow(ctx, "ip")
	assert.True(t, res.Allowed)
	assert.Zero(t, res.Remaining)

	res, _ = l.Allow(ctx, "ip")
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	res, _ = l.Allow(ctx, "other")
	assert.True(t, res.Allowed)

	// un token se repone cada Window/Max
	now = now.Add(30 * time.Second)
	res, _ = l.Allow(ctx, "ip")
	assert.True(t, res.Allowed)
}
