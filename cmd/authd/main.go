package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/httpapi"
	"github.com/MrEthical07/authcore/internal/idgen"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/obs"
	"github.com/MrEthical07/authcore/internal/pgdb"
	"github.com/MrEthical07/authcore/kv"
	"github.com/MrEthical07/authcore/migrations"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting authd", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	if err := obs.InitSentry(cfg.Sentry.DSN, cfg.App.Env, cfg.App.Version); err != nil {
		logger.Error("sentry init", zap.Error(err))
	}
	defer obs.FlushSentry()

	otl, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otl.Shutdown(context.Background()) }()

	if err := migrations.UpURL(rootCtx, cfg.DB.URL); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	pool, err := pgdb.New(rootCtx, cfg.DB)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	accountStore, err := openAccounts(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("accounts store", zap.Error(err))
	}

	var notifier authcore.Notifier
	if cfg.Kafka.Enable {
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() { _ = kn.Close() }()
		notifier = kn
	}

	engineCfg, err := cfg.Engine()
	if err != nil {
		logger.Fatal("auth config", zap.Error(err))
	}
	encoder, err := password.NewArgon2(password.DefaultArgon2Config())
	if err != nil {
		logger.Fatal("password encoder", zap.Error(err))
	}
	ids, err := idgen.New(cfg.Auth.NodeID, nil)
	if err != nil {
		logger.Fatal("id generator", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithAccounts(accountStore).
		WithEncoder(encoder).
		WithKV(kv.NewRedis(rdb, cfg.Redis.Prefix)).
		WithRefreshStore(refresh.NewPostgresStore(pool, cfg.DB.QueryTimeout)).
		WithResetStore(reset.NewPostgresStore(pool, cfg.DB.QueryTimeout)).
		WithNotifier(notifier).
		WithLogger(logger).
		WithIDGenerator(ids).
		WithRegisterer(reg).
		Build()
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	// Closed after the HTTP server drains so queued notifications are sent.
	defer engine.Close()

	health := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
	metricsSrv := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, reg, health, logger)

	go pruneLoop(rootCtx, engine, cfg.Auth.PruneInterval, logger)

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(
		httpapi.NewHandler(engine, logger),
		httpapi.NewIPLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, nil),
		logger,
	)
	httpSrv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		httpErrCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
	logger.Info("authd stopped")
}

// openAccounts uses accounts.dsn when set and the main database otherwise.
func openAccounts(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*accounts.Store, error) {
	dsn := cfg.Accounts.DSN
	if dsn == "" {
		dsn = cfg.DB.URL
	}
	db, err := accounts.Open(dsn, logger)
	if err != nil {
		return nil, err
	}
	store := accounts.New(db, nil)
	if !strings.HasPrefix(dsn, "postgres") {
		if err := store.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func pruneLoop(ctx context.Context, e *authcore.Engine, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			refreshed, resets, err := e.PruneExpired(ctx, now)
			if err != nil {
				logger.Warn("prune expired tokens", zap.Error(err))
				continue
			}
			logger.Info("pruned expired tokens", zap.Int("refresh", refreshed), zap.Int("reset", resets))
		}
	}
}
