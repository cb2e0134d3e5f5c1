package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/presence/internal/config"
	"github.com/MrSnakeDoc/presence/internal/httpserver"
	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/index"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
	"github.com/MrSnakeDoc/presence/internal/reconcile"
	"github.com/MrSnakeDoc/presence/internal/redis"
	"github.com/MrSnakeDoc/presence/internal/scheduler"
	"github.com/MrSnakeDoc/presence/internal/sources/status"
	filestore "github.com/MrSnakeDoc/presence/internal/store/file"
	"github.com/MrSnakeDoc/presence/internal/store/history"
	redisstore "github.com/MrSnakeDoc/presence/internal/store/redis"
	"github.com/MrSnakeDoc/presence/internal/version"
)

// Options are the command line switches.
type Options struct {
	ConfigFile string // YAML overlay, empty = PRESENCE_CONFIG_FILE or none
	Once       bool   // run a single cycle and exit
}

type App struct {
	cfg         *config.Config
	opts        Options
	logger      logger.Logger
	store       *filestore.Store
	scheduler   *scheduler.Scheduler
	server      *httpserver.Server
	redisClient *goredis.Client
	journal     *history.Journal
}

func New(opts Options) *App {
	cfg := config.Load(opts.ConfigFile)

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Single writer: a second tracker on the same roster is fatal.
	store := filestore.NewStore(cfg.RosterFile, loggerClient)
	if err := store.Lock(); err != nil {
		loggerClient.Fatal("cannot take the roster lock", logger.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	reader := status.NewReader(cfg.SnapshotFile, cfg.ReadAttempts, cfg.ReadDelay, loggerClient)
	source := status.NewSource(reader, status.NewParser(cfg.EmptySentinel), loggerClient)
	memIndex := index.NewMemoryIndex()

	tracker := scheduler.NewTracker(
		source,
		store,
		reconcile.New(cfg.Labels(), loggerClient),
		memIndex,
		loggerClient,
	)
	if cfg.StampSource == config.StampSnapshot {
		tracker.WithStamp(scheduler.SnapshotStamp())
	} else {
		tracker.WithStamp(scheduler.ClockStamp(cfg.StampLayout, time.Now))
	}

	a := &App{
		cfg:    cfg,
		opts:   opts,
		logger: loggerClient,
		store:  store,
	}

	var mirror *redisstore.Store
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(context.Background(), redis.Options{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("redis mirror disabled", logger.Error(err))
		} else {
			a.redisClient = client
			mirror = redisstore.NewStore(client)
			tracker.WithMirror(mirror)
		}
	}

	if cfg.JournalFile != "" {
		journal, err := history.Open(cfg.JournalFile)
		if err != nil {
			loggerClient.Warn("transition journal disabled",
				logger.String("file", cfg.JournalFile),
				logger.Error(err))
		} else {
			a.journal = journal
			tracker.WithJournal(journal)
		}
	}

	// Manual triggers share the scheduler goroutine, so cycles never overlap.
	reloadTrigger := make(chan struct{}, 1)
	a.scheduler = scheduler.NewScheduler(tracker, loggerClient, cfg.TickPeriod, cfg.TickOffset, reloadTrigger)

	if cfg.ListenAddr != "" && !opts.Once {
		d := deps.Deps{
			Logger:       loggerClient,
			StartTime:    time.Now(),
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			TimeNow:      time.Now,
			AllowedCIDRS: cfg.AllowedCIDRS,
			TrustProxy:   cfg.TrustProxy,
			SnapshotFile: cfg.SnapshotFile,
			RosterFile:   cfg.RosterFile,
			MemoryIndex:  memIndex,
			Scheduler:    a.scheduler,
			Mirror:       mirror,
			Journal:      a.journal,
			Gatherer:     registry,
		}
		a.server = httpserver.New(cfg.ListenAddr, loggerClient, d)
	}

	return a
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting presence tracker %s", version.Version)
	a.logger.Info(version.String())
	a.logger.Info("tracking",
		logger.String("snapshot", a.cfg.SnapshotFile),
		logger.String("roster", a.cfg.RosterFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	if a.opts.Once {
		result := a.scheduler.RunOnce(ctx)
		a.logger.Info("single cycle finished", logger.String("result", result))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			if err := a.server.Start(); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("⏳ Shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := a.server.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("failed to stop server: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("✅ presence tracker stopped cleanly")
	return nil
}

func (a *App) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warnf("failed to close journal: %v", err)
		}
	}

	if err := a.store.Unlock(); err != nil {
		a.logger.Warnf("failed to release roster lock: %v", err)
	}

	_ = a.logger.Sync()
}
