package server

import (
	"context"
	"net/http"
	"time"

	"lookup-gateway/lookup/search"
	"lookup-gateway/lookup/stream"
	"lookup-gateway/lookup/upstream"
	"lookup-gateway/middleware/ratelimit"
	rldomain "lookup-gateway/middleware/ratelimit/domain"
	"lookup-gateway/middleware/ratelimit/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// ChatSource abre o stream de respostas do modelo.
type ChatSource interface {
	Deltas(ctx context.Context, messages []upstream.Message) (*stream.DeltaScanner, error)
}

// Limits são as políticas por rota. MaxRequests <= 0 desliga o limite da rota.
type Limits struct {
	Lookup    rldomain.Config
	WebSearch rldomain.Config
	Chat      rldomain.Config
}

func DefaultLimits() Limits {
	return Limits{
		Lookup:    rldomain.Config{Interval: 10 * time.Second, MaxRequests: 10},
		WebSearch: rldomain.Config{Interval: 60 * time.Second, MaxRequests: 20},
		Chat:      rldomain.Config{Interval: 60 * time.Second, MaxRequests: 5},
	}
}

type Options struct {
	Platforms search.PlatformSource
	Web       search.WebSource
	Chat      ChatSource

	// Limiter é compartilhado entre as rotas; a chave já leva o nome da rota.
	Limiter           rldomain.Limiter
	Limits            Limits
	Stats             rldomain.StatsStore
	TrustProxyHeaders bool

	// MaxStreams limita streams abertos (lookup + chat). 0 = sem limite.
	MaxStreams     int
	AcquireTimeout time.Duration

	Production bool
	Logger     zerolog.Logger
}

// Server é o gateway: valida, aplica limite e repassa para os upstreams.
type Server struct {
	opts    Options
	log     zerolog.Logger
	streams rldomain.SlotPool
	handler http.Handler
}

func New(opts Options) *Server {
	if opts.Limiter == nil {
		opts.Limiter = infra.NewBucketStore()
	}
	s := &Server{
		opts: opts,
		log:  opts.Logger.With().Str("component", "server").Logger(),
	}
	if opts.MaxStreams > 0 {
		s.streams = infra.NewChanPool(opts.MaxStreams)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/lookup", s.route("lookup", opts.Limits.Lookup, true, s.handleLookup))
	mux.Handle("GET /api/web-search", s.route("web-search", opts.Limits.WebSearch, false, s.handleWebSearch))
	mux.Handle("POST /api/chat", s.route("chat", opts.Limits.Chat, true, s.handleChat))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = requestID(h)
	h = hlog.NewHandler(s.log)(h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// route aplica o rate limit da rota e, para rotas de stream, o semáforo.
func (s *Server) route(name string, cfg rldomain.Config, streaming bool, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if streaming && s.streams != nil {
		handler = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           s.streams,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: s.opts.AcquireTimeout,
		})(handler)
	}
	if cfg.MaxRequests > 0 {
		handler = ratelimit.Middleware(ratelimit.Options{
			Limiter:           s.opts.Limiter,
			Config:            cfg,
			Route:             name,
			Stats:             s.opts.Stats,
			TrustProxyHeaders: s.opts.TrustProxyHeaders,
			Logger:            s.log,
		})(handler)
	}
	return handler
}

// requestID reaproveita o X-Request-Id do cliente ou gera um novo.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(upstream.HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(upstream.HeaderRequestID, id)
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}
