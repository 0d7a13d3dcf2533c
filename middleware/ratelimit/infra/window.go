package infra

import (
	"sync"
	"time"

	"lookup-gateway/middleware/ratelimit/domain"
)

// WindowStore é o contador de janela: mais estrito que o bucket, zera tudo
// quando a janela vence em vez de repor aos poucos.
type WindowStore struct {
	mu       sync.Mutex
	counters map[domain.Key]*windowCounter
	sweeper
}

type windowCounter struct {
	count     int
	resetTime time.Time
}

var _ domain.Limiter = (*WindowStore)(nil)

func NewWindowStore(opts ...StoreOption) *WindowStore {
	return &WindowStore{
		counters: make(map[domain.Key]*windowCounter),
		sweeper:  newSweeper(opts),
	}
}

// Check implementa domain.Limiter.
func (s *WindowStore) Check(key domain.Key, cfg domain.Config) domain.Result {
	if cfg.MaxRequests <= 0 || cfg.Interval <= 0 {
		return domain.Result{Allowed: true}
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.due(now) {
		s.cleanupLocked(now)
	}

	c, ok := s.counters[key]
	if !ok {
		c = &windowCounter{resetTime: now.Add(cfg.Interval)}
		s.counters[key] = c
	}
	if !now.Before(c.resetTime) {
		c.count = 0
		c.resetTime = now.Add(cfg.Interval)
	}

	if c.count >= cfg.MaxRequests {
		return domain.Result{
			Allowed:    false,
			Limit:      cfg.MaxRequests,
			Remaining:  0,
			ResetAt:    c.resetTime,
			RetryAfter: retryAfterSeconds(c.resetTime.Sub(now)),
		}
	}

	c.count++
	return domain.Result{
		Allowed:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - c.count,
		ResetAt:   c.resetTime,
	}
}

func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

func (s *WindowStore) Cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(now)
}

// cleanupLocked remove contadores cuja janela venceu há mais de idleTTL.
func (s *WindowStore) cleanupLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for k, c := range s.counters {
		if c.resetTime.Before(cutoff) {
			delete(s.counters, k)
		}
	}
}

func (s *WindowStore) StartJanitor(ctx DoneContext) {
	s.sweeper.startJanitor(ctx, s.Cleanup)
}
