package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claims_portal_backend/internal/adapters"
	"claims_portal_backend/internal/adapters/storage"
	"claims_portal_backend/internal/auth"
	"claims_portal_backend/internal/auth/demo"
	"claims_portal_backend/internal/auth/permissions"
	authrepo "claims_portal_backend/internal/auth/repository"
	authservice "claims_portal_backend/internal/auth/service"
	"claims_portal_backend/internal/auth/session"
	authtransport "claims_portal_backend/internal/auth/transport"
	"claims_portal_backend/internal/claims"
	"claims_portal_backend/internal/claims/expertise"
	"claims_portal_backend/internal/claims/handler"
	"claims_portal_backend/internal/claims/repository"
	claimstransport "claims_portal_backend/internal/claims/transport"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/internal/dashboard"
	"claims_portal_backend/internal/events"
	apphttp "claims_portal_backend/internal/http"
	"claims_portal_backend/internal/http/router"
	"claims_portal_backend/internal/notification"
	"claims_portal_backend/internal/notification/sse"
	"claims_portal_backend/internal/scheduler"
	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/db"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
	storageBucketEnsureErrMsg    = "failed to ensure storage bucket exists"
	shutdownTimeout              = 10 * time.Second
)

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, bucket string) {
	if err := withRetry(ctx, log, "ensure claim documents bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "identity_mode", cfg.GetIdentityMode())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	redisClient := initRedis(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	eventBus := events.NewInMemoryBus(log)

	val := validator.New()
	if err := authtransport.RegisterValidations(val); err != nil {
		panic("failed to register auth validations: " + err.Error())
	}
	if err := claimstransport.RegisterValidations(val); err != nil {
		panic("failed to register claim validations: " + err.Error())
	}

	// ========================================================================
	// Identity
	// ========================================================================

	userRepo := authrepo.New(pool)
	registry := permissions.MustLoad(cfg.GetIdentityMode())

	var authenticator session.Authenticator
	var userService *authservice.Service
	if cfg.IsDemoIdentity() {
		if err := demo.Seed(ctx, userRepo); err != nil {
			log.Error("failed to seed demo users", "error", err)
			panic("failed to seed demo users: " + err.Error())
		}
		authenticator = demo.NewAuthenticator()
		log.Warn("demo identity mode enabled; mock accounts share one secret")
	} else {
		authenticator = authservice.NewStoreAuthenticator(userRepo)
		userService = authservice.New(userRepo)
	}

	var sessionStore session.Store = session.NewMemoryStore()
	if redisClient != nil {
		sessionStore = session.NewRedisStore(redisClient)
	} else {
		log.Warn("REDIS_URL not configured; sessions are kept in memory")
	}

	sessions, err := session.NewManager(authenticator, sessionStore, registry, cfg, log)
	if err != nil {
		panic("failed to initialize session manager: " + err.Error())
	}

	// ========================================================================
	// Claims
	// ========================================================================

	claimRepo := repository.NewPostgres(pool, log)
	engine := workflow.New(claimRepo, adapters.NewClaimsUserDirectory(userRepo), eventBus, log)
	expertiseManager := expertise.NewManager(engine)

	var documents storage.StorageService
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			panic("failed to initialize storage: " + err.Error())
		}
		ensureBucket(ctx, log, minioSvc, cfg.GetMinioBucketClaimDocuments())
		documents = minioSvc
	} else {
		log.Warn("MINIO_ENDPOINT not configured; document uploads disabled")
	}

	if _, err := claimRepo.FetchAll(ctx); err != nil {
		log.Warn("initial claim load failed; retrying on first read", "error", err)
	}

	// ========================================================================
	// Read models and notifications
	// ========================================================================

	var summaryCache dashboard.Cache
	if redisClient != nil {
		summaryCache = dashboard.NewRedisCache(redisClient)
	}
	dashboardSvc := dashboard.NewService(claimRepo, summaryCache, cfg.GetDashboardCacheTTL(), log)
	dashboardSvc.Subscribe(eventBus)

	stream := sse.New(log).WithSessions(sessions, sse.DefaultSessionCheck)
	defer stream.Close()
	notificationModule := notification.New(stream, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		Sessions: sessions,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			auth.NewModule(sessions, userService, val),
			claims.NewModule(handler.Deps{
				Claims:    claimRepo,
				Engine:    engine,
				Expertise: expertiseManager,
				Storage:   documents,
				Bucket:    cfg.GetMinioBucketClaimDocuments(),
				Validator: val,
			}),
			dashboard.NewModule(dashboardSvc),
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if redisClient != nil {
		worker, err := scheduler.NewWorker(cfg, scheduler.NewDeadlineScanner(claimRepo, eventBus, log), log)
		if err != nil {
			log.Error("failed to initialize deadline worker", "error", err)
		} else {
			group.Go(func() error {
				worker.Run(groupCtx)
				return nil
			})
		}
	} else {
		log.Warn("REDIS_URL not configured; deadline scans disabled")
	}

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
}

// initRedis returns nil when REDIS_URL is empty. A configured but unreachable
// Redis is fatal.
func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	client := redis.NewClient(opt)
	if err := withRetry(ctx, log, "redis connection", 5, time.Second, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("redis connection established")
	return client
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
