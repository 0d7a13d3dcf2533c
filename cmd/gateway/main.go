package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lookup-gateway/config"
	"lookup-gateway/lookup/server"
	"lookup-gateway/lookup/stream"
	"lookup-gateway/lookup/upstream"
	rldomain "lookup-gateway/middleware/ratelimit/domain"
	"lookup-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("LOOKUP_CONFIG"))
	if err != nil {
		bootLogger().Fatal().Err(err).Msg("config error")
	}
	log := cfg.NewLogger(os.Stderr)
	if err := cfg.ValidateGateway(); err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	g := cfg.Gateway

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storeOpts := []infra.StoreOption{infra.WithIdleTTL(g.IdleTTL), infra.WithSweepEvery(g.SweepEvery)}
	var limiter rldomain.Limiter
	switch g.Limiter {
	case config.LimiterWindow:
		store := infra.NewWindowStore(storeOpts...)
		store.StartJanitor(ctx)
		limiter = store
	default:
		store := infra.NewBucketStore(storeOpts...)
		store.StartJanitor(ctx)
		limiter = store
	}

	var statsStore rldomain.StatsStore
	if g.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     g.Stats.RedisAddr,
			Password: g.Stats.RedisPassword,
			DB:       g.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", g.Stats.RedisAddr).Msg("redis stats ping error")
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(g.Stats.Prefix),
			infra.WithStatsTTL(g.Stats.TTL),
			infra.WithStatsBucket(g.Stats.Bucket),
			infra.WithStatsTrackKeys(g.Stats.TrackKeys),
		)
	}

	clientOpts := []upstream.Option{upstream.WithLogger(log)}
	platforms := upstream.NewPlatformClient(endpoint(g.Platforms), g.Platforms.Path, clientOpts...)

	var web *upstream.WebSearchClient
	if g.WebSearch.BaseURL != "" {
		web = upstream.NewWebSearchClient(endpoint(g.WebSearch), g.WebSearch.Path, clientOpts...)
	}
	chat := upstream.NewChatClient(endpoint(g.Chat), upstream.ChatConfig{
		Model:  g.ChatModel,
		Path:   g.Chat.Path,
		Stream: []stream.Option{stream.WithLogger(log)},
	}, clientOpts...)

	opts := server.Options{
		Platforms: platforms,
		Chat:      chat,
		Limiter:   limiter,
		Limits: server.Limits{
			Lookup:    g.Limits.Lookup.Policy(),
			WebSearch: g.Limits.WebSearch.Policy(),
			Chat:      g.Limits.Chat.Policy(),
		},
		Stats:             statsStore,
		TrustProxyHeaders: g.TrustProxyHeaders,
		MaxStreams:        g.MaxStreams,
		AcquireTimeout:    g.AcquireTimeout,
		Production:        cfg.Production(),
		Logger:            log,
	}
	// interface nil de verdade quando a busca web não está configurada
	if web != nil {
		opts.Web = web
	}

	srv := &http.Server{
		Addr:              g.ListenAddr,
		Handler:           server.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// streams longos: sem WriteTimeout
		IdleTimeout: 90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", g.ListenAddr).
		Str("mode", cfg.Mode).
		Str("platforms", g.Platforms.BaseURL).
		Bool("web_search", web != nil).
		Msg("gateway listening")
	log.Info().
		Str("limiter", g.Limiter).
		Interface("limits", g.Limits).
		Bool("trust_proxy_headers", g.TrustProxyHeaders).
		Msg("rate")
	log.Info().Bool("enabled", g.Stats.Enabled).Str("redis_addr", g.Stats.RedisAddr).Str("bucket", g.Stats.Bucket).Msg("rate-stats")
	log.Info().Int("max", g.MaxStreams).Dur("acquire_timeout", g.AcquireTimeout).Msg("concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func endpoint(u config.UpstreamConfig) upstream.Endpoint {
	return upstream.Endpoint{
		BaseURL:       u.BaseURL,
		APIKey:        u.APIKey,
		Timeout:       u.Timeout,
		RatePerSecond: u.RatePerSecond,
		Burst:         u.Burst,
	}
}

func bootLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
