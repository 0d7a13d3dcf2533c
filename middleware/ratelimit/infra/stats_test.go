package infra

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"lookup-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByRouteAndKey(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	t0 := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: true, Remaining: 1, At: t0}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: false, Remaining: 0, At: t0.Add(time.Second)}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "b", Route: "chat", Allowed: true, Remaining: 4, At: t0}))

	assert.Equal(t, Counters{Allowed: 2, Denied: 1}, s.Total())
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByRoute()["lookup"])
	assert.Equal(t, KeyStats{Counters: Counters{Allowed: 1}, Remaining: 4, LastSeen: t0}, s.ByKey()["b"])
	assert.Equal(t, KeyStats{Counters: Counters{Allowed: 1, Denied: 1}, Remaining: 0, LastSeen: t0.Add(time.Second)}, s.ByKey()["a"])
}

func TestMemoryStatsStore_LateEventKeepsLatestRemaining(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: true, Remaining: 3, At: t0.Add(time.Second)})
	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: true, Remaining: 9, At: t0})

	got := s.ByKey()["a"]
	assert.Equal(t, int64(2), got.Allowed)
	assert.Equal(t, 3, got.Remaining)
	assert.Equal(t, t0.Add(time.Second), got.LastSeen)
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "a", Route: "lookup", Allowed: true})
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_Record(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	prefix := "test:ratelimit:" + time.Now().Format("150405.000000")
	s := NewRedisStatsStore(rdb, WithStatsPrefix(prefix), WithStatsTTL(time.Minute), WithStatsTrackKeys(true))
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: true, Remaining: 1, At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Route: "lookup", Allowed: false, Remaining: 0, At: at}))

	total, err := rdb.HGetAll(ctx, prefix+":total").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", total["allowed"])
	assert.Equal(t, "1", total["denied"])

	// a série por minuto usa o horário do evento, não o do processo
	minute, err := rdb.HGetAll(ctx, prefix+":minute:202405011230").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", minute["allowed"])

	perKey, err := rdb.HGetAll(ctx, prefix+":key:a").Result()
	require.NoError(t, err)
	assert.Equal(t, "0", perKey["remaining"])
	assert.Equal(t, strconv.FormatInt(at.Unix(), 10), perKey["last_seen"])

	_ = rdb.Del(ctx, prefix+":total", prefix+":route", prefix+":minute:202405011230", prefix+":key:a").Err()
}

func TestChanPool_ReportsInUse(t *testing.T) {
	p := NewChanPool(2)
	release, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 1, p.InUse())
	release()
	assert.Equal(t, 0, p.InUse())
}
