package infra

import (
	"math"
	"sync"
	"time"

	"lookup-gateway/middleware/ratelimit/domain"
)

// BucketStore é um token bucket por chave, em memória do processo.
//
// O refill é proporcional ao tempo decorrido e nunca passa da capacidade.
// Entradas inativas são removidas pela limpeza oportunista ou pelo janitor.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[domain.Key]*bucket
	sweeper
}

type bucket struct {
	tokens      int
	lastRefill  time.Time
	windowStart time.Time
	lastSeen    time.Time
}

var _ domain.Limiter = (*BucketStore)(nil)

func NewBucketStore(opts ...StoreOption) *BucketStore {
	return &BucketStore{
		buckets: make(map[domain.Key]*bucket),
		sweeper: newSweeper(opts),
	}
}

// Check implementa domain.Limiter.
func (s *BucketStore) Check(key domain.Key, cfg domain.Config) domain.Result {
	if cfg.MaxRequests <= 0 || cfg.Interval <= 0 {
		return domain.Result{Allowed: true}
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.due(now) {
		s.cleanupLocked(now)
	}

	b, ok := s.buckets[key]
	if !ok {
		s.buckets[key] = &bucket{
			tokens:      cfg.MaxRequests - 1,
			lastRefill:  now,
			windowStart: now,
			lastSeen:    now,
		}
		return domain.Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - 1,
			ResetAt:   now.Add(cfg.Interval),
		}
	}
	b.lastSeen = now

	elapsed := now.Sub(b.lastRefill)
	refill := int(math.Floor(float64(elapsed) / float64(cfg.Interval) * float64(cfg.MaxRequests)))
	if refill > 0 {
		b.tokens = min(cfg.MaxRequests, b.tokens+refill)
		b.lastRefill = now
	}
	if elapsed >= cfg.Interval {
		b.windowStart = now
	}

	if b.tokens > 0 {
		b.tokens--
		return domain.Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: b.tokens,
			ResetAt:   b.windowStart.Add(cfg.Interval),
		}
	}

	wait := b.lastRefill.Add(cfg.Interval).Sub(now)
	return domain.Result{
		Allowed:    false,
		Limit:      cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    b.lastRefill.Add(cfg.Interval),
		RetryAfter: retryAfterSeconds(wait),
	}
}

// Len retorna quantas chaves estão sendo rastreadas.
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *BucketStore) Cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(now)
}

func (s *BucketStore) cleanupLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	s.sweeper.startJanitor(ctx, s.Cleanup)
}

// retryAfterSeconds arredonda para cima em segundos inteiros, com piso de 1s.
func retryAfterSeconds(wait time.Duration) time.Duration {
	secs := int64(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
