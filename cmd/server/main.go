package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brokerledger/reconciliation-backend/internal/api"
	"github.com/brokerledger/reconciliation-backend/internal/config"
	"github.com/brokerledger/reconciliation-backend/internal/database"
	"github.com/brokerledger/reconciliation-backend/internal/quote"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
	"github.com/brokerledger/reconciliation-backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Apply pending schema migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	transactionRepo := repository.NewTransactionRepository(db)
	cashRepo := repository.NewCashRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	strategyRepo := repository.NewStrategyRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	faultRepo := repository.NewFaultRepository(db)

	quoteClient := quote.NewClient(cfg.Quotes.BaseURL)

	// Create services
	systemService := service.NewSystemService(db)
	matcherService := service.NewMatcherService(
		transactionRepo,
		positionRepo,
		faultRepo,
	)
	strategyService := service.NewStrategyService(
		strategyRepo,
		positionRepo,
		transactionRepo,
	)
	transactionService := service.NewTransactionService(
		transactionRepo,
		cashRepo,
		matcherService,
		strategyService,
	)
	snapshotService := service.NewSnapshotService(
		positionRepo,
		cashRepo,
		snapshotRepo,
		quoteClient,
	)

	// Nightly snapshot job: one snapshot per user covering the prior day.
	scheduler := cron.New()
	if cfg.Snapshot.CronSchedule != "" {
		_, err := scheduler.AddFunc(cfg.Snapshot.CronSchedule, func() {
			runDailySnapshots(transactionRepo, snapshotService)
		})
		if err != nil {
			log.Fatalf("Invalid snapshot schedule %q: %v", cfg.Snapshot.CronSchedule, err)
		}
		scheduler.Start()
		log.Printf("Scheduled daily snapshots: %s", cfg.Snapshot.CronSchedule)
	}

	// Create router
	router := api.NewRouter(systemService, transactionService, matcherService, strategyService, snapshotService, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the scheduler and wait for a running job to finish
	<-scheduler.Stop().Done()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runDailySnapshots generates the prior day's snapshot for every user in the
// ledger. One user's failure never blocks the rest.
func runDailySnapshots(transactionRepo *repository.TransactionRepository, snapshotService *service.SnapshotService) {
	userIDs, err := transactionRepo.GetUserIDs()
	if err != nil {
		log.Printf("Snapshot job failed to enumerate users: %v", err)
		return
	}

	date := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	for _, userID := range userIDs {
		if _, err := snapshotService.GenerateSnapshot(ctx, userID, date); err != nil {
			log.Printf("Snapshot job failed for user %s: %v", userID, err)
		}
	}
}
