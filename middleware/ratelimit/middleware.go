package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"lookup-gateway/middleware/ratelimit/application"
	"lookup-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

type Options struct {
	Limiter           domain.Limiter
	Config            domain.Config
	Route             string
	Stats             domain.StatsStore
	KeyFn             KeyFunc
	TrustProxyHeaders bool
	RejectStatus      int
	Logger            zerolog.Logger
}

// deniedBody é o corpo JSON do 429.
type deniedBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = IdentityFunc(opts.TrustProxyHeaders)
	}
	log := opts.Logger.With().Str("component", "ratelimit").Str("route", opts.Route).Logger()

	svc := application.Service{
		Limiter: opts.Limiter,
		Config:  opts.Config,
		Route:   opts.Route,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			res := svc.Decide(key)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:       key,
					Route:     opts.Route,
					Allowed:   res.Allowed,
					Remaining: res.Remaining,
					At:        time.Now(),
				})
				if err != nil {
					log.Debug().Err(err).Msg("failed to record rate limit stats")
				}
			}

			if res.Limit > 0 {
				h := w.Header()
				h.Set(HeaderLimit, formatInt(res.Limit))
				h.Set(HeaderRemaining, formatInt(res.Remaining))
				h.Set(HeaderReset, formatInt64(res.ResetAt.Unix()))
			}

			if !res.Allowed {
				secs := int(res.RetryAfter / time.Second)
				w.Header().Set(HeaderRetryAfter, formatInt(secs))
				log.Info().Str("key", string(key)).Int("retry_after", secs).Msg("rate limited")
				writeDenied(w, opts.RejectStatus, secs)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(deniedBody{
		Error:      "Too many requests. Please try again later.",
		RetryAfter: retryAfter,
	})
}
