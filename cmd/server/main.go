// Package main initializes and starts the Observer development backend,
// setting up configuration, logging, storage, services, handlers and
// metrics.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/observer/internal/config"
	"github.com/atinyakov/observer/internal/db"
	"github.com/atinyakov/observer/internal/logger"
	"github.com/atinyakov/observer/internal/metrics"
	"github.com/atinyakov/observer/internal/middleware"
	"github.com/atinyakov/observer/internal/repository"
	"github.com/atinyakov/observer/internal/server/handler/http"
	"github.com/atinyakov/observer/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// stores groups the repositories selected at startup.
type stores struct {
	users    service.UserRepository
	sessions service.SessionRepository
	products interface {
		service.ProductRepository
		service.ProductWriter
	}
	likes service.LikeRepository
}

func main() {
	// Parse command-line and environment configuration.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStores(ctx, options, zapLogger)

	if options.Seed != "" {
		f, err := os.Open(options.Seed)
		if err != nil {
			zapLogger.Fatal("cannot open seed file", zap.Error(err))
		}
		n, err := service.ImportProducts(ctx, st.products, f)
		_ = f.Close()
		if err != nil {
			zapLogger.Fatal("cannot import products", zap.Int("imported", n), zap.Error(err))
		}
		zapLogger.Info("products imported", zap.Int("count", n))
	}

	// Metrics registry exposed at /metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var verifier service.IdentityVerifier
	if options.IdentitySecret != "" {
		verifier = service.NewHMACVerifier(options.IdentitySecret)
	} else {
		zapLogger.Warn("identity sign-in disabled: no identity secret configured")
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(st.users, st.sessions, verifier, options.SessionTTL.Duration,
		service.WithRecorder(m))
	catalogService := service.NewCatalogService(st.products)
	likeService := service.NewLikeService(st.likes)

	// Build the router with middleware and routes.
	router := http.NewRouter(http.Handlers{
		Auth:     &http.AuthHandler{AuthService: authService},
		Products: &http.ProductHandler{CatalogService: catalogService},
		Likes:    &http.LikeHandler{LikeService: likeService},
		Users:    &http.UserHandler{UserService: authService},
	}, http.RouterDeps{
		Authenticator:  authService,
		Logger:         zapLogger,
		LoginLimiter:   middleware.NewRateLimiter(options.LoginRPS, int(options.LoginRPS)+1, zapLogger, m.IncrementRateLimited),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// openStores picks PostgreSQL when a DSN is configured and memory
// otherwise. Sessions move to Redis when a Redis URL is set.
func openStores(ctx context.Context, options *config.ServerOptions, zapLogger *zap.Logger) stores {
	var st stores
	if options.DatabaseDSN != "" {
		// Initialize PostgreSQL connection.
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}

		// Drop sessions a day after they expire.
		db.StartExpiredSessionCleaner(ctx, postgresDB,
			time.Hour,    // interval
			24*time.Hour, // grace
			zapLogger,
		)

		st.users = repository.NewPostgresUserRepository(postgresDB)
		st.sessions = repository.NewPostgresSessionRepository(postgresDB)
		st.products = repository.NewPostgresProductRepository(postgresDB)
		st.likes = repository.NewPostgresLikeRepository(postgresDB)
	} else {
		zapLogger.Warn("no database configured, using in-memory storage")
		mem := repository.NewMemoryStore()
		st.users, st.sessions, st.products, st.likes = mem, mem, mem, mem
	}

	if options.RedisURL != "" {
		redisOpts, err := redis.ParseURL(options.RedisURL)
		if err != nil {
			zapLogger.Fatal("invalid redis URL", zap.Error(err))
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			zapLogger.Fatal("cannot reach redis", zap.Error(err))
		}
		st.sessions = repository.NewRedisSessionRepository(client)
		zapLogger.Info("sessions stored in redis")
	}
	return st
}
