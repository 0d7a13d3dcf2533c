package config

import (
	"os"
	"strconv"
	"time"
)

func applyEnvOverrides(c *Config) {
	c.Mode = getenvDefault("APP_MODE", c.Mode)
	c.Log.Level = getenvDefault("LOG_LEVEL", c.Log.Level)

	g := &c.Gateway
	g.ListenAddr = getenvDefault("LISTEN_ADDR", g.ListenAddr)
	g.TrustProxyHeaders = getenvBoolDefault("TRUST_PROXY_HEADERS", g.TrustProxyHeaders)
	g.Limiter = getenvDefault("RATE_LIMITER", g.Limiter)
	applyLimitEnv(&g.Limits.Lookup, "RATE_LOOKUP")
	applyLimitEnv(&g.Limits.WebSearch, "RATE_WEB_SEARCH")
	applyLimitEnv(&g.Limits.Chat, "RATE_CHAT")
	g.IdleTTL = getenvDurationDefault("RATE_IDLE_TTL", g.IdleTTL)
	g.SweepEvery = getenvDurationDefault("RATE_SWEEP_EVERY", g.SweepEvery)
	g.MaxStreams = getenvIntDefault("CONCURRENCY_MAX", g.MaxStreams)
	g.AcquireTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", g.AcquireTimeout)

	s := &g.Stats
	s.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", s.Enabled)
	s.RedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", s.RedisAddr)
	s.RedisPassword = getenvDefault("RATE_STATS_REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", s.RedisDB)
	s.Prefix = getenvDefault("RATE_STATS_PREFIX", s.Prefix)
	s.TTL = getenvDurationDefault("RATE_STATS_TTL", s.TTL)
	s.Bucket = getenvDefault("RATE_STATS_BUCKET", s.Bucket)
	s.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", s.TrackKeys)

	applyUpstreamEnv(&g.Platforms, "UPSTREAM_PLATFORMS")
	applyUpstreamEnv(&g.WebSearch, "UPSTREAM_WEB_SEARCH")
	applyUpstreamEnv(&g.Chat, "UPSTREAM_CHAT")
	// chave padrão do ecossistema OpenAI, se a específica não vier
	if g.Chat.APIKey == "" {
		g.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	g.ChatModel = getenvDefault("UPSTREAM_CHAT_MODEL", g.ChatModel)

	cl := &c.Client
	cl.GatewayURL = getenvDefault("LOOKUP_GATEWAY_URL", cl.GatewayURL)
	cl.Timeout = getenvDurationDefault("LOOKUP_TIMEOUT", cl.Timeout)
	cl.Cache.Backend = getenvDefault("CACHE_BACKEND", cl.Cache.Backend)
	cl.Cache.Path = getenvDefault("CACHE_PATH", cl.Cache.Path)
	cl.Cache.RedisAddr = getenvDefault("CACHE_REDIS_ADDR", cl.Cache.RedisAddr)
	cl.Cache.TTL = getenvDurationDefault("CACHE_TTL", cl.Cache.TTL)
	cl.Cache.MaxEntries = getenvIntDefault("CACHE_MAX_ENTRIES", cl.Cache.MaxEntries)
}

func applyLimitEnv(l *LimitConfig, prefix string) {
	l.MaxRequests = getenvIntDefault(prefix+"_MAX", l.MaxRequests)
	l.Interval = getenvDurationDefault(prefix+"_INTERVAL", l.Interval)
}

func applyUpstreamEnv(u *UpstreamConfig, prefix string) {
	u.BaseURL = getenvDefault(prefix+"_URL", u.BaseURL)
	u.Path = getenvDefault(prefix+"_PATH", u.Path)
	u.APIKey = getenvDefault(prefix+"_KEY", u.APIKey)
	u.Timeout = getenvDurationDefault(prefix+"_TIMEOUT", u.Timeout)
	u.RatePerSecond = getenvFloatDefault(prefix+"_RPS", u.RatePerSecond)
	u.Burst = getenvIntDefault(prefix+"_BURST", u.Burst)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
