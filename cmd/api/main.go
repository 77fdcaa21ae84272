package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artmarket/internal/config"
	"artmarket/internal/db"
	"artmarket/internal/email"
	apihttp "artmarket/internal/http"
	"artmarket/internal/metrics"
	"artmarket/internal/repository"
	"artmarket/internal/routing"
	"artmarket/internal/service"
	"artmarket/internal/session"
	"artmarket/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	identityRepo := repository.NewPgIdentityRepository(pool)
	profileRepo := repository.NewPgProfileRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	checks := map[string]func(context.Context) error{
		"db": func(ctx context.Context) error { return db.Ping(ctx, pool) },
	}

	limiter := service.NewMemorySignInLimiter(cfg.SignInWindow, cfg.SignInLimit)
	tokenStore := service.NewMemoryRefreshTokenStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter and token store", zap.Error(err))
		} else {
			limiter = service.NewRedisSignInLimiter(redisClient, cfg.SignInWindow, cfg.SignInLimit)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
		cancel()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	authSvc := service.NewAuthService(logger, identityRepo, jwtSvc, limiter, emailSender).WithObserver(collector)
	profileSvc := service.NewProfileService(logger, profileRepo)

	var backend storage.ObjectStorage
	if cfg.Storage.Endpoint != "" {
		minioClient, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Fatal("minio client", zap.Error(err))
		}
		backend = minioClient
	} else {
		logger.Warn("storage endpoint not configured, using in-memory object storage")
		backend = storage.NewMemoryStorage("http://localhost:" + cfg.HTTPPort + "/objects")
	}
	objects := storage.NewStorage(backend, cfg.Storage.Buckets)
	ctxBuckets, cancelBuckets := context.WithTimeout(ctx, 10*time.Second)
	if err := objects.EnsureBuckets(ctxBuckets); err != nil {
		logger.Fatal("ensure buckets", zap.Error(err))
	}
	cancelBuckets()

	fetcher := session.NewProfileFetcher(logger, profileRepo, session.NoRetryPolicy(), nil).WithObserver(collector)
	guard := routing.NewGuard(cfg.PublicPaths)

	router := apihttp.NewRouter(logger, apihttp.RouterDeps{
		JWT:      jwtSvc,
		Auth:     apihttp.NewAuthHandler(logger, authSvc),
		Profiles: apihttp.NewProfileHandler(logger, profileSvc),
		Uploads:  apihttp.NewUploadHandler(logger, objects, cfg.Storage.MaxUploadMB<<20, collector),
		Pages:    apihttp.NewPageHandler(),
		Guard:    apihttp.NewPageGuard(logger, guard, fetcher, collector),
		Health:   apihttp.NewHealthHandler(logger, checks),
		Metrics:  metrics.SetupMetricsRoute(registry),
		Recorder: collector,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
