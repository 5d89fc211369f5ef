package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/znz-systems/coldpipe/internal/auth"
	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/config"
	"github.com/znz-systems/coldpipe/internal/database"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/ingest"
	"github.com/znz-systems/coldpipe/internal/metrics"
	"github.com/znz-systems/coldpipe/internal/neverbounce"
	"github.com/znz-systems/coldpipe/internal/pipeline"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"github.com/znz-systems/coldpipe/internal/queue"
	"github.com/znz-systems/coldpipe/internal/ratelimit"
	"github.com/znz-systems/coldpipe/internal/smartlead"
	"github.com/znz-systems/coldpipe/internal/store/postgres"
	"github.com/znz-systems/coldpipe/internal/web"
	"github.com/znz-systems/coldpipe/internal/web/handlers"
	"github.com/znz-systems/coldpipe/migrations"
)

func serve(ctx context.Context, cfg *config.Config) error {
	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL, postgres.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpen,
		MaxIdleConns: cfg.DBMaxIdle,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Stores
	contactStore := postgres.NewContactStore(db)
	campaignStore := postgres.NewCampaignStore(db)
	emailStore := postgres.NewGeneratedEmailStore(db)
	runStore := postgres.NewWorkflowRunStore(db)

	// Providers share one keyed limiter, one bucket each.
	providerLimits := ratelimit.NewLimiter(cfg.ProviderRPS, 1)
	verifier := neverbounce.NewClient(cfg.NeverBounceAPIKey, providerLimits.For("neverbounce"))
	enricher := proxycurl.NewClient(cfg.ProxycurlAPIKey, providerLimits.For("proxycurl"))
	leads := smartlead.NewClient(cfg.SmartleadAPIKey, providerLimits.For("smartlead"))
	generator, err := generate.New(ctx, generate.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
		Sender: cfg.Sender,
	}, providerLimits.For("gemini"))
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Pipeline
	deps := &pipeline.Deps{
		Runs:      runStore,
		Contacts:  contactStore,
		Emails:    emailStore,
		Campaigns: campaign.NewDirectory(campaignStore, leads),
		Verifier:  verifier,
		Enricher:  enricher,
		Generator: generator,
		Leads:     leads,
		Metrics:   m,
	}
	worker := pipeline.NewWorker(runStore, pipeline.NewOrchestrator(deps), pipeline.WorkerOptions{
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.Workers,
	})
	sweeper := pipeline.NewSweeper(runStore, m, cfg.StaleAfter)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	// Queue
	mq, err := queue.Dial(cfg.AMQPURL, cfg.QueueName)
	if err != nil {
		return err
	}
	defer mq.Close()
	consumer := queue.NewConsumer(mq, runStore, m)
	dispatcher := ingest.NewDispatcher(mq.Producer(), m, ingest.DispatcherOptions{
		BatchSize:  cfg.IngestBatch,
		BatchDelay: cfg.IngestBatchGap,
	})

	// Router
	router := web.NewRouter(web.RouterDeps{
		ContactsHandler: handlers.NewContactsHandler(dispatcher, campaignStore),
		RunsHandler:     handlers.NewRunsHandler(runStore),
		HealthHandler:   handlers.NewHealthHandler(runStore),
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AuthService:     auth.NewService(cfg.IngressTokenHash),
		Limiter:         ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		AllowedOrigins:  cfg.CORSOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("coldpipe starting", "addr", addr, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
