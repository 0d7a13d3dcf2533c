package search

import (
	"context"
	"io"
	"sync"
	"time"

	"lookup-gateway/clock"
	"lookup-gateway/lookup/cache"
	"lookup-gateway/lookup/domain"
	"lookup-gateway/lookup/stream"

	"github.com/rs/zerolog"
)

const (
	DefaultFlushInterval = 16 * time.Millisecond
	DefaultReplayDelay   = 150 * time.Millisecond
)

// PlatformSource abre o stream NDJSON de checagem de plataformas.
type PlatformSource interface {
	StreamPlatforms(ctx context.Context, username string) (io.ReadCloser, error)
}

// WebSource faz a busca web auxiliar, de uma vez só.
type WebSource interface {
	WebSearch(ctx context.Context, query string) (domain.WebResults, error)
}

// Orchestrator coordena uma busca por vez: cache, stream de plataformas e
// busca web em paralelo, publicação em lotes.
//
// Só uma sessão é corrente. Toda escrita no estado confere o id da sessão
// antes; escrita de sessão antiga é descartada em silêncio.
type Orchestrator struct {
	platforms PlatformSource
	web       WebSource
	cache     *cache.Cache
	clock     clock.Clock
	log       zerolog.Logger

	flushInterval time.Duration
	replayDelay   time.Duration
	production    bool
	streamOpts    []stream.Option

	mu         sync.Mutex
	session    uint64
	cancel     context.CancelFunc
	state      State
	pending    []domain.ResultRecord
	flushArmed bool
	flushTimer clock.Timer
	subs       map[int]chan State
	nextSub    int
}

type Option func(*Orchestrator)

func WithCache(c *cache.Cache) Option { return func(o *Orchestrator) { o.cache = c } }

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithLogger(log zerolog.Logger) Option { return func(o *Orchestrator) { o.log = log } }

func WithFlushInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.flushInterval = d }
}

func WithReplayDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.replayDelay = d }
}

// WithProductionErrors troca o detalhe dos erros de upstream por mensagens genéricas.
func WithProductionErrors(on bool) Option {
	return func(o *Orchestrator) { o.production = on }
}

func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *Orchestrator) { o.streamOpts = append(o.streamOpts, opts...) }
}

// New cria o orquestrador. web pode ser nil: a busca web é então pulada.
func New(platforms PlatformSource, web WebSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		platforms:     platforms,
		web:           web,
		clock:         clock.Real(),
		log:           zerolog.Nop(),
		flushInterval: DefaultFlushInterval,
		replayDelay:   DefaultReplayDelay,
		subs:          make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With().Str("component", "search").Logger()
	if len(o.streamOpts) == 0 {
		o.streamOpts = []stream.Option{stream.WithLogger(o.log)}
	}
	return o
}

// Search executa a consulta e bloqueia até ela assentar ou ser substituída
// por outra chamada de Search.
func (o *Orchestrator) Search(ctx context.Context, raw string) {
	username, err := domain.NormalizeUsername(raw)
	if err != nil {
		id, _ := o.begin(ctx, raw)
		defer o.release(id)
		o.update(id, func(s *State) {
			s.IsSearching = false
			s.PlatformErr = err.Error()
		})
		return
	}
	if username == "" {
		return
	}

	id, sctx := o.begin(ctx, username)
	defer o.release(id)

	if o.replay(sctx, id, username) {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.runPlatforms(sctx, id, username)
	}()
	go func() {
		defer wg.Done()
		o.runWeb(sctx, id, username)
	}()
	wg.Wait()

	o.settle(ctx, id, username)
}

// Snapshot devolve uma cópia do estado atual.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe entrega sempre o estado mais recente; valores intermediários
// podem ser pulados se o consumidor atrasar.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan State, 1)
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

// Close cancela a sessão corrente, se houver.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.session++
}

func (o *Orchestrator) begin(parent context.Context, query string) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	if o.flushTimer != nil {
		o.flushTimer.Stop()
		o.flushTimer = nil
	}
	o.session++
	o.cancel = cancel
	o.pending = nil
	o.flushArmed = false
	o.state = State{SessionID: o.session, Query: query, IsSearching: true}
	o.publishLocked()

	o.log.Debug().Uint64("session", o.session).Str("query", query).Msg("search started")
	return o.session, ctx
}

// release cancela o contexto da sessão que terminou.
func (o *Orchestrator) release(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == id && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) replay(ctx context.Context, id uint64, username string) bool {
	if o.cache == nil {
		return false
	}
	e := o.cache.Get(ctx, username)
	if e == nil || len(e.Results) == 0 {
		return false
	}

	select {
	case <-o.clock.After(o.replayDelay):
	case <-ctx.Done():
		// cancelado sem sessão nova: encerra a busca sem publicar o cache
		o.update(id, func(s *State) { s.IsSearching = false })
		return true
	}

	o.update(id, func(s *State) {
		n := len(e.Results)
		s.Results = e.Results
		s.Web = e.Web
		s.FromCache = true
		s.IsSearching = false
		s.Progress = Progress{Total: n, Completed: n, Percentage: 100}
	})
	o.log.Debug().Uint64("session", id).Int("results", len(e.Results)).Msg("served from cache")
	return true
}

func (o *Orchestrator) runPlatforms(ctx context.Context, id uint64, username string) {
	body, err := o.platforms.StreamPlatforms(ctx, username)
	if err != nil {
		o.fail(ctx, id, err, func(s *State, msg string) { s.PlatformErr = msg })
		return
	}
	sc, err := stream.NewRecordScanner(body, o.streamOpts...)
	if err != nil {
		o.fail(ctx, id, err, func(s *State, msg string) { s.PlatformErr = msg })
		return
	}
	defer sc.Close()

	for sc.Next() {
		if !o.current(id) {
			return
		}
		rec := sc.Record()
		switch rec.Kind {
		case domain.KindResult:
			o.enqueue(id, *rec.Result)
		case domain.KindProgress:
			o.progress(id, *rec.Progress)
		}
	}
	o.flush(id)

	if err := sc.Err(); err != nil {
		o.fail(ctx, id, err, func(s *State, msg string) { s.PlatformErr = msg })
	}
}

func (o *Orchestrator) runWeb(ctx context.Context, id uint64, query string) {
	if o.web == nil {
		return
	}
	res, err := o.web.WebSearch(ctx, query)
	if err != nil {
		o.fail(ctx, id, err, func(s *State, msg string) { s.WebErr = msg })
		return
	}
	o.update(id, func(s *State) { s.Web = res })
}

func (o *Orchestrator) enqueue(id uint64, r domain.ResultRecord) {
	o.mu.Lock()
	if o.session != id {
		o.mu.Unlock()
		return
	}
	o.pending = append(o.pending, r)
	arm := !o.flushArmed
	o.flushArmed = true
	o.mu.Unlock()

	if !arm {
		return
	}
	// AfterFunc pode disparar na hora (relógio falso), por isso fora do lock
	t := o.clock.AfterFunc(o.flushInterval, func() { o.flush(id) })

	o.mu.Lock()
	if o.session == id && o.flushArmed {
		o.flushTimer = t
	}
	o.mu.Unlock()
}

func (o *Orchestrator) flush(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != id {
		return
	}
	o.flushArmed = false
	o.flushTimer = nil
	if len(o.pending) == 0 {
		return
	}
	o.state.Results = append(o.state.Results, o.pending...)
	// cada resultado é uma plataforma concluída
	o.state.Progress.Completed = max(o.state.Progress.Completed, len(o.state.Results))
	o.state.Progress.recompute()
	o.pending = nil
	o.publishLocked()
}

func (o *Orchestrator) progress(id uint64, p domain.ProgressRecord) {
	o.update(id, func(s *State) {
		if p.Total != nil {
			s.Progress.Total = *p.Total
		}
		if p.Completed != nil && *p.Completed > s.Progress.Completed {
			s.Progress.Completed = *p.Completed
		}
		if p.Done && s.Progress.Total > 0 {
			s.Progress.Completed = s.Progress.Total
		}
		s.Progress.recompute()
	})
}

func (o *Orchestrator) settle(ctx context.Context, id uint64, username string) {
	o.mu.Lock()
	if o.session != id {
		o.mu.Unlock()
		return
	}
	o.state.IsSearching = false
	o.publishLocked()
	results := o.state.Results
	web := o.state.Web
	o.mu.Unlock()

	if o.cache != nil && len(results) > 0 && o.current(id) {
		o.cache.Set(context.WithoutCancel(ctx), username, results, web)
	}
	o.log.Info().Uint64("session", id).Str("query", username).Int("results", len(results)).Msg("search settled")
}

func (o *Orchestrator) fail(ctx context.Context, id uint64, err error, set func(*State, string)) {
	if domain.IsCanceled(err) || ctx.Err() != nil {
		return
	}
	if !o.current(id) {
		return
	}
	o.log.Warn().Err(err).Uint64("session", id).Msg("search call failed")
	msg := domain.PublicMessage(err, o.production)
	o.update(id, func(s *State) { set(s, msg) })
}

func (o *Orchestrator) current(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session == id
}

// update aplica fn ao estado se a sessão ainda for a corrente.
func (o *Orchestrator) update(id uint64, fn func(*State)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != id {
		return false
	}
	fn(&o.state)
	o.publishLocked()
	return true
}

func (o *Orchestrator) publishLocked() {
	if len(o.subs) == 0 {
		return
	}
	s := o.state.clone()
	for _, ch := range o.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// descarta o valor antigo não lido
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
