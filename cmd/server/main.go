package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkboard/linkboard/config"
	appmodel "github.com/linkboard/linkboard/internal/app/model"
	apprepository "github.com/linkboard/linkboard/internal/app/repository"
	appserver "github.com/linkboard/linkboard/internal/app/server"
	appservice "github.com/linkboard/linkboard/internal/app/service"
	"github.com/linkboard/linkboard/internal/infra/logger"
	infraNATS "github.com/linkboard/linkboard/internal/infra/nats"
	infraPostgres "github.com/linkboard/linkboard/internal/infra/postgres"
	infraPrometheus "github.com/linkboard/linkboard/internal/infra/prometheus"
	infraRedis "github.com/linkboard/linkboard/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("listen_addr", cfg.App.ListenAddr),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Bool("geo_enabled", cfg.Geo.Enabled),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	err = infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Link{},
		&appmodel.RetiredCode{},
		&appmodel.ClickEvent{},
		&appmodel.DailyAggregate{},
	)
	if err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	// Repositories and cache.
	linkRepo := apprepository.NewLinkRepository(gormDB)
	eventRepo := apprepository.NewClickEventRepository(gormDB)
	aggregateRepo := apprepository.NewAggregateRepository(gormDB)
	linkCache := apprepository.NewRedisLinkCache(redisClient, config.Duration(cfg.App.CacheTTL, 24*time.Hour))

	// Allocator with a warm bloom filter over known codes.
	allocator := appservice.NewCodeAllocator(linkRepo, appservice.AllocatorConfig{
		CodeLength:     cfg.App.CodeLength,
		AliasMinLength: cfg.App.AliasMinLength,
		AliasMaxLength: cfg.App.AliasMaxLength,
	})
	if err := allocator.Warm(ctx); err != nil {
		log.Fatal("Failed to warm code filter", zap.Error(err))
	}

	linkService := appservice.NewLinkService(linkRepo, linkCache, allocator, log)
	aggregator := appservice.NewAggregator(aggregateRepo, eventRepo)
	statsService := appservice.NewStatsService(aggregateRepo, eventRepo, linkRepo)

	var geo appservice.GeoResolver = appservice.NoopGeoResolver{}
	if cfg.Geo.Enabled {
		geo = appservice.NewHTTPGeoResolver(cfg.Geo.Endpoint, config.Duration(cfg.Geo.Timeout, 2*time.Second))
	}

	// Ingest pipeline: dispatcher -> JetStream -> consumer -> ingestor.
	publisher := appservice.NewClickPublisher(js)
	dispatcher := appservice.NewClickDispatcher(publisher, log, appservice.DispatcherConfig{
		BufferSize:     cfg.Ingest.BufferSize,
		Workers:        cfg.Ingest.Workers,
		PublishTimeout: config.Duration(cfg.Ingest.PublishTimeout, 3*time.Second),
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	ingestor := appservice.NewClickIngestor(eventRepo, aggregator, geo, log)
	consumer := appservice.NewClickConsumer(js, log, ingestor)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}
	defer consumer.Stop()

	reconciler := appservice.NewAggregateReconciler(log, aggregator, eventRepo,
		config.Duration(cfg.Ingest.ReconcileEvery, 15*time.Minute), cfg.Ingest.ReconcileDays)
	reconciler.Start()
	defer reconciler.Stop()

	srv := appserver.New(appserver.Dependencies{
		Logger:         log,
		Postgres:       pool,
		Redis:          redisClient,
		Links:          linkService,
		Stats:          statsService,
		Aggregator:     aggregator,
		Dispatcher:     dispatcher,
		ReservedPaths:  cfg.App.ReservedPaths,
		ResolveTimeout: config.Duration(cfg.App.ResolveTimeout, 2*time.Second),
	})

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := srv.Listen(cfg.App.ListenAddr); err != nil {
			log.Fatal("Fiber server exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
