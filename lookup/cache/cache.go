package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"lookup-gateway/clock"
	"lookup-gateway/lookup/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 50
	// DefaultNamespace muda de versão quando o formato da entrada muda.
	DefaultNamespace = "username-lookup:v2:"
)

// Entry é uma busca concluída guardada no cache.
type Entry struct {
	Key       string                `json:"key"`
	Timestamp int64                 `json:"timestamp"`
	Results   []domain.ResultRecord `json:"results"`
	Web       domain.WebResults     `json:"web"`

	FromCache bool `json:"-"`
}

// WrittenAt é o horário de escrita (Timestamp em milissegundos).
func (e Entry) WrittenAt() time.Time { return time.UnixMilli(e.Timestamp) }

type Stats struct {
	Count     int
	SizeBytes int
}

// Cache guarda resultados de buscas recentes, limitado por TTL e por
// quantidade de entradas.
//
// É uma otimização best-effort: nenhuma falha do Storage chega ao chamador.
type Cache struct {
	storage   Storage
	clock     clock.Clock
	log       zerolog.Logger
	ttl       time.Duration
	max       int
	namespace string
}

type Option func(*Cache)

func WithClock(c clock.Clock) Option { return func(cc *Cache) { cc.clock = c } }

func WithLogger(log zerolog.Logger) Option { return func(cc *Cache) { cc.log = log } }

func WithTTL(d time.Duration) Option { return func(cc *Cache) { cc.ttl = d } }

func WithMaxEntries(n int) Option { return func(cc *Cache) { cc.max = n } }

func WithNamespace(ns string) Option { return func(cc *Cache) { cc.namespace = ns } }

func New(storage Storage, opts ...Option) *Cache {
	c := &Cache{
		storage:   storage,
		clock:     clock.Real(),
		log:       zerolog.Nop(),
		ttl:       DefaultTTL,
		max:       DefaultMaxEntries,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "cache").Logger()
	return c
}

// Key normaliza a consulta para a chave de armazenamento.
func (c *Cache) Key(query string) string {
	return c.namespace + strings.ToLower(strings.TrimSpace(query))
}

// Get devolve a entrada válida da consulta, ou nil.
func (c *Cache) Get(ctx context.Context, query string) *Entry {
	key := c.Key(query)
	c.cleanup(ctx)

	raw, ok, err := c.storage.Get(ctx, key)
	if err != nil {
		c.warn(&domain.CacheError{Op: "get", Key: key, Err: err})
		return nil
	}
	if !ok {
		return nil
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.warn(&domain.CacheError{Op: "parse", Key: key, Err: err})
		c.remove(ctx, key)
		return nil
	}
	if c.expired(e, c.clock.Now()) {
		c.remove(ctx, key)
		return nil
	}
	e.FromCache = true
	return &e
}

// Set grava o resultado da consulta. Sem resultados primários não grava nada.
func (c *Cache) Set(ctx context.Context, query string, results []domain.ResultRecord, web domain.WebResults) {
	if len(results) == 0 {
		return
	}
	key := c.Key(query)
	c.cleanup(ctx)

	raw, err := json.Marshal(Entry{
		Key:       key,
		Timestamp: c.clock.Now().UnixMilli(),
		Results:   results,
		Web:       web,
	})
	if err != nil {
		c.warn(&domain.CacheError{Op: "encode", Key: key, Err: err})
		return
	}

	if err := c.storage.Set(ctx, key, string(raw)); err != nil {
		// provavelmente cota: limpa o namespace inteiro e desiste
		c.warn(&domain.CacheError{Op: "set", Key: key, Err: err})
		c.Clear(ctx)
	}
}

func (c *Cache) Invalidate(ctx context.Context, query string) {
	c.remove(ctx, c.Key(query))
}

// Clear remove todas as entradas do namespace, e só dele.
func (c *Cache) Clear(ctx context.Context) {
	keys, err := c.storage.Keys(ctx, c.namespace)
	if err != nil {
		c.warn(&domain.CacheError{Op: "list", Key: c.namespace, Err: err})
		return
	}
	c.remove(ctx, keys...)
}

func (c *Cache) Stats(ctx context.Context) Stats {
	keys, err := c.storage.Keys(ctx, c.namespace)
	if err != nil {
		c.warn(&domain.CacheError{Op: "list", Key: c.namespace, Err: err})
		return Stats{}
	}
	var st Stats
	for _, k := range keys {
		raw, ok, err := c.storage.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		st.Count++
		st.SizeBytes += len(k) + len(raw)
	}
	return st
}

// cleanup apaga expiradas e ilegíveis e, se ainda passar de max, as mais antigas.
func (c *Cache) cleanup(ctx context.Context) {
	keys, err := c.storage.Keys(ctx, c.namespace)
	if err != nil {
		c.warn(&domain.CacheError{Op: "list", Key: c.namespace, Err: err})
		return
	}

	type live struct {
		key string
		ts  int64
	}
	now := c.clock.Now()
	var alive []live
	var drop []string
	for _, k := range keys {
		raw, ok, err := c.storage.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		e, err := decodeEntry(raw)
		if err != nil {
			c.warn(&domain.CacheError{Op: "parse", Key: k, Err: err})
			drop = append(drop, k)
			continue
		}
		if c.expired(e, now) {
			drop = append(drop, k)
			continue
		}
		alive = append(alive, live{key: k, ts: e.Timestamp})
	}

	if excess := len(alive) - c.max; excess > 0 {
		sort.Slice(alive, func(i, j int) bool { return alive[i].ts < alive[j].ts })
		for _, l := range alive[:excess] {
			drop = append(drop, l.key)
		}
	}
	c.remove(ctx, drop...)
}

func (c *Cache) expired(e Entry, now time.Time) bool {
	return now.Sub(e.WrittenAt()) > c.ttl
}

func (c *Cache) remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.storage.Delete(ctx, keys...); err != nil {
		c.warn(&domain.CacheError{Op: "delete", Key: keys[0], Err: err})
	}
}

func (c *Cache) warn(err error) {
	c.log.Warn().Err(err).Msg("cache operation failed")
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
