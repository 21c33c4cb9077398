package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tneaboard/internal/cache"
	"tneaboard/internal/config"
	"tneaboard/internal/credstore"
	"tneaboard/internal/database"
	"tneaboard/internal/handler"
	"tneaboard/internal/jobs/cleanup"
	"tneaboard/internal/logger"
	"tneaboard/internal/queue"
	redisclient "tneaboard/internal/redis"
	"tneaboard/internal/repository"
	"tneaboard/internal/service"
	"tneaboard/internal/worker"
)

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	// 2. Load Credentials
	// Credentials are provisioned out of band; a missing or malformed file is
	// fatal at startup, never at request time.
	creds, err := credstore.Load(cfg.CredentialsPath)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	// 3. Select Session Store
	registry, closeRegistry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if closeRegistry != nil {
		defer closeRegistry()
	}

	// 4. Connect to Redis (optional: dataset cache, audit stream)
	var rc *redisclient.Client
	if cfg.RedisURL != "" {
		rc, err = redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rc.Ping(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	// 5. Build Services
	sessionService := service.NewSessionService(creds, registry, cfg.SessionTimeout, log)
	tokenService := service.NewTokenService(cfg.JWTSecret)

	cutoffSource := repository.NewHTTPSheetSource(cfg.CutoffSheetURL, cfg.FetchTimeout)
	vacancySource := repository.NewHTTPSheetSource(cfg.VacancySheetURL, cfg.FetchTimeout)
	datasetService := service.NewDatasetService(cutoffSource, vacancySource, log)

	var auditHandler *handler.AuditHandler
	var auditWorkers *worker.Manager
	if rc != nil {
		datasetService.SetCache(cache.NewDatasetCache(rc.Client, cfg.DatasetCacheTTL))
		sessionService.SetAuditPublisher(queue.NewPublisher(rc.Client, log))

		sink := repository.NewRedisAuditSink(rc.Client)
		auditHandler = handler.NewAuditHandler(sink)
		auditWorkers = worker.NewManager(queue.NewConsumer(rc.Client), worker.NewHandler(sink, log), worker.ManagerConfig{}, log)
	}

	// 6. Background Jobs
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	cleanup.New(registry, cfg.SessionRetention, 0, log).Start(jobCtx)
	if auditWorkers != nil {
		if err := auditWorkers.Start(jobCtx); err != nil {
			return fmt.Errorf("failed to start audit workers: %w", err)
		}
		defer auditWorkers.Stop()
	}

	// 7. Setup Router and Server
	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(sessionService, tokenService),
		CutoffHandler:  handler.NewCutoffHandler(datasetService),
		VacancyHandler: handler.NewVacancyHandler(datasetService),
		AuditHandler:   auditHandler,
		Sessions:       sessionService,
		JWTSecret:      cfg.JWTSecret,
	})

	server := &stdhttp.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("session_store", cfg.SessionStore))
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// buildRegistry selects the session store backend from configuration. The
// returned closer releases the backing connection, if any.
func buildRegistry(cfg *config.Config) (repository.SessionRegistry, func() error, error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		client, err := redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect session store redis: %w", err)
		}
		return repository.NewRedisSessionRegistry(client.Client), client.Close, nil

	case config.StorePostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect session store database: %w", err)
		}
		return repository.NewPostgresSessionRegistry(db), db.Close, nil

	default:
		registry, err := repository.NewFileSessionRegistry(cfg.SessionFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return registry, nil, nil
	}
}
