package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lookup-gateway/config"
	"lookup-gateway/lookup/cache"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carrega config e logger uma vez por execução.
type app struct {
	cfgPath string
	verbose bool

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "lookup",
		Short:         "Username lookup client for the lookup gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newChatCmd(a))
	root.AddCommand(newCacheCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.NewLogger(cmd.ErrOrStderr())
	return nil
}

// openCache abre o cache no backend configurado. close libera o meio.
func (a *app) openCache(ctx context.Context) (*cache.Cache, func(), error) {
	cc := a.cfg.Client.Cache
	var (
		storage cache.Storage
		closeFn = func() {}
	)

	switch cc.Backend {
	case config.CacheMemory:
		storage = cache.NewMemoryStorage(0)
	case config.CacheSQLite:
		if err := os.MkdirAll(filepath.Dir(cc.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
		s, err := cache.NewSQLiteStorage(cc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		storage = s
		closeFn = func() { _ = s.Close() }
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cc.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("cache redis ping: %w", err)
		}
		storage = cache.NewRedisStorage(rdb)
		closeFn = func() { _ = rdb.Close() }
	default:
		return nil, nil, errors.New("unknown cache backend " + cc.Backend)
	}

	c := cache.New(storage,
		cache.WithLogger(a.log),
		cache.WithTTL(cc.TTL),
		cache.WithMaxEntries(cc.MaxEntries),
		cache.WithNamespace(cc.Namespace),
	)
	return c, closeFn, nil
}
