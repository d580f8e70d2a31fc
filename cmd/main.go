package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"ingredient-catalog-service/internal/api"
	"ingredient-catalog-service/internal/assets"
	"ingredient-catalog-service/internal/auth"
	"ingredient-catalog-service/internal/catalog"
	"ingredient-catalog-service/internal/config"
	"ingredient-catalog-service/internal/logger"
	"ingredient-catalog-service/internal/metrics"
	"ingredient-catalog-service/internal/notify"
	"ingredient-catalog-service/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	zlog, err := logger.New(logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: cfg.AppName,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zlog.Info("Starting service", zap.String("log_level", cfg.LogLevel))

	// --- Database Connection ---
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if cfg.Postgres.RunMigrations {
		if err := store.MigrateUp(cfg.Postgres.DSN()); err != nil {
			zlog.Fatal("Failed to apply migrations", zap.Error(err))
		}
		zlog.Info("Database migrations applied")
	}

	db, err := store.Open(startupCtx, cfg.Postgres.DSN(), cfg.Postgres.MaxOpenConns)
	if err != nil {
		zlog.Fatal("Failed to initialize database connection", zap.Error(err))
	}
	dbStore := store.NewPostgresStore(db)
	zlog.Info("Database connection established", zap.Int("max_open_conns", cfg.Postgres.MaxOpenConns))

	// --- Optional backends ---
	events := setupPublisher(cfg, zlog)
	badges, closeBadges := setupBadges(startupCtx, cfg, zlog)
	sheets := setupSheets(startupCtx, cfg, zlog)

	// --- Catalog search ---
	policy, err := catalog.ParsePolicy(cfg.Catalog.FailurePolicy)
	if err != nil {
		zlog.Fatal("Invalid catalog configuration", zap.Error(err))
	}
	m := metrics.New()
	aggregator := catalog.NewAggregator(dbStore, catalog.Options{
		PageSize:         cfg.Catalog.PageSize,
		Locale:           cfg.Catalog.DefaultLocale,
		Policy:           policy,
		PartitionTimeout: cfg.Catalog.PartitionTimeout,
		Logger:           zlog.Named("catalog"),
		Recorder:         m,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AdminRole)
	limiter := api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(api.Deps{
		Searcher:      aggregator,
		Products:      dbStore,
		Submissions:   dbStore,
		Sheets:        sheets,
		Events:        events,
		Badges:        badges,
		AdminAuth:     verifier.Middleware,
		FormLimiter:   limiter.Middleware,
		Logger:        zlog.Named("http"),
		DefaultLocale: cfg.Catalog.DefaultLocale,
	})

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, zlog, m, cfg.HttpServer.RequestTimeout)
	registerHealthCheck(httpRouter, zlog, cfg.AppName, dbStore)
	httpRouter.Handle("/metrics", m.Handler())
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		zlog.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer, healthServer := api.NewGRPCServer(zlog.Named("grpc"))
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		zlog.Fatal("Failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		zlog.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			zlog.Fatal("gRPC server Serve error", zap.Error(err))
		}
		zlog.Info("gRPC server has stopped")
	}()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go api.WatchHealth(watchCtx, healthServer, dbStore, 10*time.Second, zlog.Named("health"))

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(zlog, httpServer, grpcServer, healthServer, func() {
		stopWatch()
		if err := events.Close(); err != nil {
			zlog.Warn("Error closing event publisher", zap.Error(err))
		}
		closeBadges()
		if err := dbStore.Close(); err != nil {
			zlog.Warn("Error closing database connection", zap.Error(err))
		}
	}, shutdownComplete)

	<-shutdownComplete // Block until graceful shutdown is complete
	zlog.Info("Service shutdown sequence finished")
}

func setupPublisher(cfg *config.Config, zlog *zap.Logger) notify.Publisher {
	if !cfg.Kafka.Enabled {
		zlog.Info("Kafka disabled, change events are dropped")
		return notify.NopPublisher{}
	}
	zlog.Info("Kafka publisher configured", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog.Named("kafka"))
}

func setupBadges(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (notify.Badges, func()) {
	if !cfg.Redis.Enabled {
		zlog.Info("Redis disabled, notification badges stay at zero")
		return notify.NopBadges{}, func() {}
	}
	rb := notify.NewRedisBadges(notify.RedisOptions{
		Addr:        cfg.Redis.Addr,
		User:        cfg.Redis.User,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		Timeout:     cfg.Redis.Timeout,
	})
	if err := rb.Ping(ctx); err != nil {
		// Badges are advisory; keep serving and let later calls retry.
		zlog.Warn("Redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return rb, func() {
		if err := rb.Close(); err != nil {
			zlog.Warn("Error closing redis client", zap.Error(err))
		}
	}
}

func setupSheets(ctx context.Context, cfg *config.Config, zlog *zap.Logger) assets.SheetStore {
	if !cfg.Minio.Enabled {
		zlog.Info("Object storage disabled, technical sheets are unavailable")
		return assets.Disabled{}
	}
	ms, err := assets.NewMinioSheets(assets.MinioOptions{
		Endpoint:   cfg.Minio.Endpoint,
		AccessKey:  cfg.Minio.AccessKey,
		SecretKey:  cfg.Minio.SecretKey,
		UseSSL:     cfg.Minio.UseSSL,
		Region:     cfg.Minio.Region,
		Bucket:     cfg.Minio.Bucket,
		PresignTTL: cfg.Minio.PresignTTL,
	})
	if err != nil {
		zlog.Fatal("Failed to create object storage client", zap.Error(err))
	}
	if err := ms.EnsureBucket(ctx); err != nil {
		zlog.Fatal("Failed to prepare sheet bucket", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
	}
	zlog.Info("Object storage configured", zap.String("endpoint", cfg.Minio.Endpoint), zap.String("bucket", cfg.Minio.Bucket))
	return ms
}

func setupBaseMiddleware(router *chi.Mux, zlog *zap.Logger, m *metrics.Metrics, timeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(zlog.Named("access")))
	router.Use(m.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
	zlog.Info("Base HTTP middleware registered")
}

func registerHealthCheck(router *chi.Mux, zlog *zap.Logger, appName string, db api.Pinger) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			zlog.Warn("Health check DB ping failed", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // Always 200, but payload indicates detailed status
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"serviceName": appName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
		})
	})
	zlog.Info("HTTP health check registered", zap.String("path", healthPath))
}

func waitForShutdown(
	zlog *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	release func(),
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	zlog.Info("Received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// NOT_SERVING from here on, the health watcher can no longer flip it back.
	healthServer.Shutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		zlog.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		zlog.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		zlog.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	release()
	zlog.Info("Graceful shutdown sequence completed")
}
