package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"freshdesk-simulator/internal/config"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	aiAdapters "freshdesk-simulator/internal/infra/adapters/ai"
	"freshdesk-simulator/internal/infra/adapters/freshdesk"
	"freshdesk-simulator/internal/infra/api"
	pg "freshdesk-simulator/internal/infra/db/postgres"
	"freshdesk-simulator/internal/infra/logging"
	"freshdesk-simulator/internal/infra/memqueue"
	"freshdesk-simulator/internal/infra/metrics"
	red "freshdesk-simulator/internal/infra/redis"
	"freshdesk-simulator/internal/infra/sched"
	"freshdesk-simulator/internal/infra/security"
	"freshdesk-simulator/internal/infra/worker"
	"freshdesk-simulator/internal/usecase"
)

// Set through -ldflags.
var (
	version = "dev"
	commit  = ""
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose output)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	logger.Info().
		Str("version", version).
		Str("database", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).
		Str("queue", cfg.Queue.Backend).
		Bool("api_auth", cfg.HTTP.APIKey != "").
		Msg("config loaded")
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Encryption ----
	cipher, err := security.NewAPIKeyCipher(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	if !cipher.Enabled() {
		logger.Warn().Msg("security.encryption_key not set; Freshdesk API keys are stored in plaintext")
	}

	// ---- Repositories ----
	configRepo := pg.NewCompanyConfigRepo(pool, cipher)
	var contactRepo repository.ContactRepository = pg.NewContactRepo(pool)
	var agentRepo repository.AgentRepository = pg.NewAgentRepo(pool)

	// ---- Redis (queue, locks, rate limit, roster cache) ----
	var (
		queue       adapter.JobQueue
		redisClient *red.Client
		limiter     api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil && cfg.Queue.Backend == "redis" {
			logger.Fatal().Err(err).Msg("redis")
		}
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; continuing without it")
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		contactRepo = pg.NewContactRepoCacheDecorator(contactRepo, redisClient, cfg.Queue.KeyPrefix, logger)
		agentRepo = pg.NewAgentRepoCacheDecorator(agentRepo, redisClient, cfg.Queue.KeyPrefix, logger)
	}
	switch cfg.Queue.Backend {
	case "redis":
		queue = red.NewJobQueue(redisClient, cfg.Queue.KeyPrefix, cfg.Queue.VisibilityTimeout, nil).WithLogger(logger)
	default:
		logger.Warn().Msg("using the in-memory job queue; queued jobs are lost on restart")
		queue = memqueue.New(cfg.Queue.VisibilityTimeout, nil)
	}

	// ---- Adapters ----
	generator, err := aiAdapters.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("text generator")
	}
	clients := freshdesk.NewFactory(cfg.Freshdesk.Timeout)

	// ---- Use cases ----
	ticketUC := usecase.NewTicketUseCase(configRepo, clients, generator, logger)
	provisioner := usecase.NewProvisioner(configRepo, contactRepo, agentRepo, clients, generator, logger)
	reconciler := usecase.NewReconciler(configRepo, contactRepo, agentRepo, queue, tm, logger)
	companyUC := usecase.NewCompanyUseCase(configRepo, clients, provisioner, reconciler, cfg.Freshdesk.DomainSuffix, logger)

	// ---- Schedulers ----
	scanner := sched.NewEligibilityScanner(cfg.Scheduler.ScanInterval, configRepo, queue, nil, logger)
	resetter, err := sched.NewQuotaResetter(cfg.Scheduler.QuotaResetCron, cfg.Scheduler.Timezone, configRepo, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("quota resetter")
	}
	if redisClient != nil {
		locker := red.NewLocker(redisClient)
		scanner.WithLocker(locker, cfg.Queue.KeyPrefix+":scan-lock")
		resetter.WithLocker(locker, cfg.Queue.KeyPrefix+":quota-reset-lock")
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("component", name).Msg("stopped")
			}
		}()
	}
	run("scanner", scanner.Run)
	run("quota_resetter", resetter.Run)

	// ---- Job processor ----
	workers := worker.NewPool(cfg.Queue.Workers, logger)
	workers.Start(ctx)
	processor := worker.NewJobProcessor(queue, ticketUC, cfg.Queue.PollInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx, workers)
	}()

	// ---- HTTP control surface ----
	srv := api.NewServer(companyUC, api.Options{
		APIKey:      cfg.HTTP.APIKey,
		Limiter:     limiter,
		KeyPrefix:   cfg.Queue.KeyPrefix,
		WriteLimit:  30,
		WriteWindow: time.Minute,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("provider", generator.Provider()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	workers.Stop()
	wg.Wait()
	logger.Info().Msg("bye")
}
