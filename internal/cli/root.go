package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardcser/page-cache/internal/cache"
	"github.com/leonardcser/page-cache/internal/config"
	"github.com/leonardcser/page-cache/internal/logger"
	"github.com/leonardcser/page-cache/internal/logstats"
	"github.com/leonardcser/page-cache/internal/pagecache"
	"github.com/leonardcser/page-cache/internal/web"
)

// Deps are the collaborators the commands are built from. Tests swap them
// for in-process fakes.
type Deps struct {
	// OpenStore returns the key-value store for cfg and a function releasing it.
	OpenStore func(cfg config.Config, direct bool) (pagecache.Store, func() error, error)
	// NewFetcher returns the content fetcher for cfg.
	NewFetcher func(cfg config.Config) pagecache.Fetcher
	// OpenLogs returns the log statistics source for cfg and a function releasing it.
	OpenLogs func(ctx context.Context, cfg config.Config) (logstats.Source, func(context.Context) error, error)
}

// DefaultDeps talks to the cache daemon (or a bolt file with --db), fetches
// over HTTP and reads log statistics from MongoDB.
func DefaultDeps() Deps {
	return Deps{
		OpenStore: func(cfg config.Config, direct bool) (pagecache.Store, func() error, error) {
			if direct {
				s, err := cache.Open(cfg.Cache.DB, cache.Options{Bucket: cfg.Cache.Bucket, DefaultTTL: cfg.Cache.TTL})
				if err != nil {
					return nil, nil, fmt.Errorf("open %s: %w", cfg.Cache.DB, err)
				}
				return s, s.Close, nil
			}
			c, err := cache.Connect(cfg.Cache.Socket, cfg.DaemonEnv()...)
			if err != nil {
				return nil, nil, fmt.Errorf("connect to cache daemon: %w", err)
			}
			return c, func() error { return nil }, nil
		},
		NewFetcher: func(cfg config.Config) pagecache.Fetcher {
			return web.NewFetcher(web.FetcherOptions{Timeout: cfg.Fetch.Timeout, Delay: cfg.Fetch.Delay})
		},
		OpenLogs: func(ctx context.Context, cfg config.Config) (logstats.Source, func(context.Context) error, error) {
			return logstats.DialMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		},
	}
}

type options struct {
	cfgFile string
	socket  string
	db      string
	ttl     time.Duration
}

// app carries the resolved configuration from the root pre-run to subcommands.
type app struct {
	deps Deps
	opts options
	cfg  config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps}
	root := &cobra.Command{
		Use:   "pagecache",
		Short: "Fetch pages through a short-lived, access-counted cache.",
		Long: `pagecache fetches URLs through a key-value cache with a time-to-live and
counts every request per URL, whether it was served from the cache or not.

By default it talks to the page-cache daemon over a Unix socket, starting the
daemon when needed. With --db it opens the cache database directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.opts.cfgFile, "config", "", "config file path (default $PAGECACHE_CONFIG or <config dir>/page-cache/config.yaml)")
	root.PersistentFlags().StringVar(&a.opts.socket, "socket", "", "cache daemon socket path")
	root.PersistentFlags().StringVar(&a.opts.db, "db", "", "open this cache database directly instead of using the daemon")
	root.PersistentFlags().DurationVar(&a.opts.ttl, "ttl", 0, "lifetime of cached pages (default from config, 10s)")

	root.AddCommand(
		newGetCmd(a),
		newCountCmd(a),
		newStatusCmd(a),
		newLogStatsCmd(a),
	)
	return root
}

// Execute runs the command tree with the default collaborators.
// This is called by main.main().
func Execute() {
	err := NewRootCmd(DefaultDeps()).Execute()
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.cfgFile)
	if err != nil {
		return err
	}
	if a.opts.socket != "" {
		cfg.Cache.Socket = a.opts.socket
	}
	if a.opts.db != "" {
		cfg.Cache.DB = a.opts.db
	}
	if cmd.Flags().Changed("ttl") {
		if a.opts.ttl <= 0 {
			return fmt.Errorf("--ttl must be positive, got %s", a.opts.ttl)
		}
		cfg.Cache.TTL = a.opts.ttl
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// withCache opens the store, builds the Resource Cache and hands it to fn.
func (a *app) withCache(fn func(*pagecache.Cache) error) error {
	store, release, err := a.deps.OpenStore(a.cfg, a.opts.db != "")
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
	}()
	return fn(pagecache.New(store, a.deps.NewFetcher(a.cfg), pagecache.WithTTL(a.cfg.Cache.TTL)))
}
