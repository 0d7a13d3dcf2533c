package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	rldomain "lookup-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	LimiterBucket = "bucket"
	LimiterWindow = "window"

	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

type LogConfig struct {
	Level string `yaml:"level"`
}

// LimitConfig é a política de uma rota. MaxRequests 0 desliga o limite.
type LimitConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxRequests int           `yaml:"max_requests"`
}

func (l LimitConfig) Policy() rldomain.Config {
	return rldomain.Config{Interval: l.Interval, MaxRequests: l.MaxRequests}
}

type RouteLimits struct {
	Lookup    LimitConfig `yaml:"lookup"`
	WebSearch LimitConfig `yaml:"web_search"`
	Chat      LimitConfig `yaml:"chat"`
}

type StatsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
	Bucket        string        `yaml:"bucket"`
	TrackKeys     bool          `yaml:"track_keys"`
}

type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Path          string        `yaml:"path"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type GatewayConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers"`
	Limiter           string        `yaml:"limiter"`
	Limits            RouteLimits   `yaml:"limits"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
	SweepEvery        time.Duration `yaml:"sweep_every"`
	MaxStreams        int           `yaml:"max_streams"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
	Stats             StatsConfig   `yaml:"stats"`

	Platforms UpstreamConfig `yaml:"platforms"`
	WebSearch UpstreamConfig `yaml:"web_search"`
	Chat      UpstreamConfig `yaml:"chat"`
	ChatModel string         `yaml:"chat_model"`
}

type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	Path       string        `yaml:"path"`
	RedisAddr  string        `yaml:"redis_addr"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Namespace  string        `yaml:"namespace"`
}

// ClientConfig é o lado do CLI: fala com o gateway e guarda o cache local.
type ClientConfig struct {
	GatewayURL    string        `yaml:"gateway_url"`
	Timeout       time.Duration `yaml:"timeout"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	ReplayDelay   time.Duration `yaml:"replay_delay"`
	Cache         CacheConfig   `yaml:"cache"`
}

type Config struct {
	Mode    string        `yaml:"mode"`
	Log     LogConfig     `yaml:"log"`
	Gateway GatewayConfig `yaml:"gateway"`
	Client  ClientConfig  `yaml:"client"`
}

// Load lê o YAML (se existir), depois aplica as variáveis de ambiente.
// path vazio usa só defaults + ambiente.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func (c *Config) SetDefaults() {
	c.Mode = ModeDevelopment
	c.Log.Level = "info"

	g := &c.Gateway
	g.ListenAddr = ":8080"
	g.Limiter = LimiterBucket
	g.Limits = RouteLimits{
		Lookup:    LimitConfig{Interval: 10 * time.Second, MaxRequests: 10},
		WebSearch: LimitConfig{Interval: 60 * time.Second, MaxRequests: 20},
		Chat:      LimitConfig{Interval: 60 * time.Second, MaxRequests: 5},
	}
	g.IdleTTL = 15 * time.Minute
	g.SweepEvery = 2 * time.Minute
	g.MaxStreams = 100
	g.Stats = StatsConfig{
		Prefix: "lookup:ratelimit",
		TTL:    24 * time.Hour,
		Bucket: "minute",
	}
	g.Platforms = UpstreamConfig{Path: "/api/lookup", Timeout: 15 * time.Second, RatePerSecond: 20, Burst: 20}
	g.WebSearch = UpstreamConfig{Path: "/search", Timeout: 10 * time.Second, RatePerSecond: 5, Burst: 5}
	g.Chat = UpstreamConfig{BaseURL: "https://api.openai.com/v1", Path: "/chat/completions", Timeout: 30 * time.Second, RatePerSecond: 2, Burst: 2}
	g.ChatModel = "gpt-4o-mini"

	cl := &c.Client
	cl.GatewayURL = "http://localhost:8080"
	cl.Timeout = 15 * time.Second
	cl.FlushInterval = 16 * time.Millisecond
	cl.ReplayDelay = 150 * time.Millisecond
	cl.Cache = CacheConfig{
		Backend:    CacheSQLite,
		Path:       defaultCachePath(),
		TTL:        5 * time.Minute,
		MaxEntries: 50,
		Namespace:  "username-lookup:v2:",
	}
}

func (c *Config) Production() bool { return c.Mode == ModeProduction }

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode)
	}

	g := c.Gateway
	switch g.Limiter {
	case LimiterBucket, LimiterWindow:
	default:
		return fmt.Errorf("gateway.limiter must be %q or %q", LimiterBucket, LimiterWindow)
	}
	for name, l := range map[string]LimitConfig{
		"lookup":     g.Limits.Lookup,
		"web_search": g.Limits.WebSearch,
		"chat":       g.Limits.Chat,
	} {
		if l.MaxRequests < 0 {
			return fmt.Errorf("gateway.limits.%s.max_requests must be >= 0", name)
		}
		if l.MaxRequests > 0 && l.Interval <= 0 {
			return fmt.Errorf("gateway.limits.%s.interval must be > 0", name)
		}
	}
	if g.MaxStreams < 0 {
		return errors.New("gateway.max_streams must be >= 0")
	}
	if g.Stats.Enabled && strings.TrimSpace(g.Stats.RedisAddr) == "" {
		return errors.New("gateway.stats.redis_addr is required when stats are enabled")
	}

	cc := c.Client.Cache
	switch cc.Backend {
	case CacheMemory:
	case CacheSQLite:
		if strings.TrimSpace(cc.Path) == "" {
			return errors.New("client.cache.path is required for the sqlite backend")
		}
	case CacheRedis:
		if strings.TrimSpace(cc.RedisAddr) == "" {
			return errors.New("client.cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("client.cache.backend must be %q, %q or %q", CacheMemory, CacheSQLite, CacheRedis)
	}
	if cc.MaxEntries <= 0 {
		return errors.New("client.cache.max_entries must be > 0")
	}
	return nil
}

// ValidateGateway exige também o upstream de plataformas.
func (c *Config) ValidateGateway() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Gateway.Platforms.BaseURL) == "" {
		return errors.New("gateway.platforms.base_url is required (UPSTREAM_PLATFORMS_URL)")
	}
	return nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "lookup-cache.db"
	}
	return filepath.Join(dir, "lookup-gateway", "cache.db")
}
