package infra

import (
	"testing"
	"time"

	"lookup-gateway/clock"
	"lookup-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStore_DeniesAtLimitAndResetsWholesale(t *testing.T) {
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	s := NewWindowStore(WithClock(fc))
	cfg := domain.Config{Interval: time.Minute, MaxRequests: 3}

	for i := 0; i < 3; i++ {
		res := s.Check("k", cfg)
		require.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	fc.Advance(20 * time.Second)
	res := s.Check("k", cfg)
	require.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	// Sem refill parcial: ainda bloqueado perto do fim da janela.
	fc.Advance(39 * time.Second)
	assert.False(t, s.Check("k", cfg).Allowed)

	fc.Advance(time.Second)
	res = s.Check("k", cfg)
	require.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestWindowStore_CleanupRemovesExpiredWindows(t *testing.T) {
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	s := NewWindowStore(WithClock(fc), WithIdleTTL(time.Minute), WithSweepEvery(0))
	cfg := domain.Config{Interval: time.Minute, MaxRequests: 3}

	s.Check("old", cfg)
	fc.Advance(3 * time.Minute)
	s.Check("new", cfg)

	assert.Equal(t, 1, s.Len())
}
