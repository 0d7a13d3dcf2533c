package infra

import (
	"context"
	"sync"
	"time"

	"lookup-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// KeyStats soma os contadores de uma chave e guarda o último estado visto.
type KeyStats struct {
	Counters
	Remaining int       `json:"remaining"`
	LastSeen  time.Time `json:"lastSeen"`
}

// MemoryStatsStore guarda contadores em memória, por rota e opcionalmente por chave.
// Útil para testes e para o endpoint de diagnóstico de uma instância.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[domain.Key]KeyStats

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[domain.Key]KeyStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bump(&s.total, ev.Allowed)

	c := s.byRoute[ev.Route]
	bump(&c, ev.Allowed)
	s.byRoute[ev.Route] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		bump(&k.Counters, ev.Allowed)
		// eventos podem chegar fora de ordem; fica o mais recente
		if !ev.At.Before(k.LastSeen) {
			k.Remaining = ev.Remaining
			k.LastSeen = ev.At
		}
		s.byKey[ev.Key] = k
	}
	return nil
}

func bump(c *Counters, allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]KeyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]KeyStats, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
