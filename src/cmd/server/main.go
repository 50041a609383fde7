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

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/events"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/fulfillment"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/controller"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/middleware"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/router"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/mirror"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/postgres"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/config"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AdapterURL == "" {
		log.Fatal("ADAPTER_URL is required")
	}
	defer logger.Sync()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := postgres.RunMigrations(startupCtx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	log.Println("initial migrations completed successfully")

	db, err := postgres.Open(startupCtx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ledgerRepo := postgres.NewLedgerRepository(db)
	obligationRepo := postgres.NewObligationRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	eventPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	defer eventPublisher.Close()
	mirrorPublisher := mirror.NewKafkaPublisher(cfg.KafkaBrokers, cfg.MirrorTopic)
	defer mirrorPublisher.Close()

	adapter := fulfillment.NewHTTPAdapter(cfg.AdapterURL, cfg.AdapterAPIKey, &http.Client{Timeout: cfg.AdapterTimeout})

	ledgerService := services.NewLedgerService(ledgerRepo)
	obligationService := services.NewObligationService(obligationRepo, ledgerService, cfg.AnchorPolicies, cfg.SigningKey)
	guard := services.NewIdempotencyGuard(idempotencyRepo)

	mirrorService := services.NewMirrorService(ledgerRepo, mirrorPublisher, cfg.MirrorInterval)
	reconciliationService := services.NewReconciliationService(
		obligationRepo,
		idempotencyRepo,
		obligationService,
		adapter,
		eventPublisher,
		cfg.ReconcileInterval,
	)

	clearingService := services.NewClearingService(
		guard,
		obligationService,
		adapter,
		eventPublisher,
		auditRepo,
		cfg.AdapterTimeout,
		mirrorService.Nudge,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go mirrorService.Run(workerCtx)
	go reconciliationService.Run(workerCtx)

	mux := router.New(
		controller.NewClearingController(clearingService),
		controller.NewObligationController(obligationService),
		middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKey),
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.AdapterTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("clearing engine listening on %s", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server stopped: %v", err)
		}
	}

	stopWorkers()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
