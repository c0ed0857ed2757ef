package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/marksync/marksync/internal/codec"
	"github.com/marksync/marksync/internal/config"
	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/httpserver"
	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/index"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/optimizer"
	"github.com/marksync/marksync/internal/queue"
	"github.com/marksync/marksync/internal/redis"
	"github.com/marksync/marksync/internal/resolve"
	"github.com/marksync/marksync/internal/scheduler"
	"github.com/marksync/marksync/internal/sources/treefile"
	redisstore "github.com/marksync/marksync/internal/store/redis"
	"github.com/marksync/marksync/internal/syncer"
	"github.com/marksync/marksync/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	redisClient  *goredis.Client
	treeIndex    *index.TreeIndex
	syncRunner   *scheduler.SyncRunner
	queueDrainer *scheduler.QueueDrainer
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	// Shared delta codec: the snapshot store and the offline queue use the
	// same dictionary settings so queued payloads stay replayable.
	deltaCodec := codec.New(codec.DefaultMaxEntries)

	// Initialize Redis store
	store := redisstore.NewStore(redisClient, deltaCodec)

	// Initialize the in-memory bookmark tree
	treeIndex := index.NewTreeIndex()

	// Seed the local tree from file (if configured)
	if cfg.TreeFile != "" {
		loggerClient.Info("tree file configured, importing bookmarks",
			logger.String("file", cfg.TreeFile))
		seedTreeFromFile(cfg.TreeFile, treeIndex, loggerClient)
	} else {
		loggerClient.Info("tree file not configured, starting with an empty tree")
	}

	// Conflict classifier with configured thresholds
	classifierCfg := domain.DefaultClassifierConfig()
	classifierCfg.DuplicateURLThreshold = cfg.DuplicateURLThreshold
	classifierCfg.DuplicateTitleThreshold = cfg.DuplicateTitleThreshold
	classifier := domain.NewClassifier(classifierCfg)

	// Resolution engine persisting decisions to Redis-backed history
	history := store.History(cfg.HistoryCap)
	resolver := resolve.NewEngine(classifier, history, loggerClient)

	// Offline operation queue
	retryOpts := optimizer.RetryOptions{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryDelay,
	}
	offline := queue.New(store.Queue(), cfg.QueueCap, retryOpts, loggerClient)

	// System state probe: static readings from the environment
	probe := optimizer.StaticProbe{State: optimizer.SystemState{
		Tier:                 optimizer.ResourceTier(cfg.ResourceTier),
		NetworkEffectiveType: cfg.NetworkType,
		BatteryLevel:         cfg.BatteryLevel,
	}}

	// Sync engine
	syncEngine, err := syncer.New(syncer.Config{
		Index:      treeIndex,
		Snapshots:  store,
		Metadata:   store,
		Classifier: classifier,
		Resolver:   resolver,
		Offline:    offline,
		Probe:      probe,
		Codec:      deltaCodec,
		BaseOpts: optimizer.Options{
			BatchSize:     cfg.BatchSize,
			ThrottleDelay: cfg.ThrottleDelay,
			MaxRetries:    cfg.MaxRetries,
			RetryDelay:    cfg.RetryDelay,
		},
		Logger: loggerClient,
	})
	if err != nil {
		loggerClient.Errorf("Failed to build sync engine: %v", err)
		os.Exit(1)
	}

	strategy := resolve.Strategy(cfg.DefaultStrategy)
	if !strategy.Valid() {
		loggerClient.Warnf("unknown default strategy %q, falling back to %s",
			cfg.DefaultStrategy, resolve.StrategyIntelligentMerge)
		strategy = resolve.StrategyIntelligentMerge
	}
	resolveOpts := resolve.DefaultOptions()

	// Manual trigger channels
	syncTrigger := make(chan struct{}, 1)
	drainTrigger := make(chan struct{}, 1)

	// Re-import the tree file before each pass so file edits flow into
	// sync. Merge mode: nodes pulled from the remote must survive.
	var reload func()
	if cfg.TreeFile != "" {
		reload = func() { mergeTreeFromFile(cfg.TreeFile, treeIndex, loggerClient) }
	}

	// Initialize schedulers
	syncRunner := scheduler.NewSyncRunner(
		syncEngine,
		strategy,
		resolveOpts,
		loggerClient,
		cfg.SyncInterval,
		syncTrigger,
		reload,
	)
	queueDrainer := scheduler.NewQueueDrainer(
		syncEngine,
		loggerClient,
		cfg.DrainInterval,
		drainTrigger,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RedisClient:     redisClient,
		TreeIndex:       treeIndex,
		Syncer:          syncEngine,
		Resolver:        resolver,
		Classifier:      classifier,
		History:         history,
		SyncTrigger:     syncTrigger,
		DrainTrigger:    drainTrigger,
		DefaultStrategy: strategy,
		ResolveOptions:  resolveOpts,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		redisClient:  redisClient,
		treeIndex:    treeIndex,
		syncRunner:   syncRunner,
		queueDrainer: queueDrainer,
	}
}

// seedTreeFromFile imports the configured bookmark tree into the index.
// Import failures are not fatal: the tree can still be populated over the API.
func seedTreeFromFile(path string, treeIndex *index.TreeIndex, log logger.Logger) {
	loader := treefile.NewLoader(path)
	treeCfg, err := loader.Load()
	if err != nil {
		log.Warn("failed to load tree file", logger.Error(err))
		return
	}

	nodes, err := treefile.NewMapper().MapTree(treeCfg)
	if err != nil {
		log.Warn("failed to map tree file", logger.Error(err))
		return
	}

	treeIndex.Replace(nodes)
	log.Info("bookmark tree imported",
		logger.String("file", path),
		logger.Int("nodes", treeIndex.Count()))
}

// mergeTreeFromFile upserts the tree file's nodes over the current index
// without dropping nodes that only exist remotely.
func mergeTreeFromFile(path string, treeIndex *index.TreeIndex, log logger.Logger) {
	loader := treefile.NewLoader(path)
	treeCfg, err := loader.Load()
	if err != nil {
		log.Warn("failed to reload tree file", logger.Error(err))
		return
	}

	nodes, err := treefile.NewMapper().MapTree(treeCfg)
	if err != nil {
		log.Warn("failed to map reloaded tree file", logger.Error(err))
		return
	}

	treeIndex.Merge(nodes)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting marksync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("marksync %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the periodic sync runner (runs an initial pass, then ticks)
	if err := a.syncRunner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync runner: %w", err)
	}
	a.logger.Info("sync runner started",
		logger.Duration("interval", a.cfg.SyncInterval))

	// Start the offline queue drainer
	if err := a.queueDrainer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue drainer: %w", err)
	}
	a.logger.Info("queue drainer started",
		logger.Duration("interval", a.cfg.DrainInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop schedulers
	a.syncRunner.Stop()
	a.queueDrainer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ marksync stopped cleanly")
	return nil
}
