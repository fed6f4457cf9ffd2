package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brokerledger/reconciliation-backend/internal/api/handlers"
	custommiddleware "github.com/brokerledger/reconciliation-backend/internal/api/middleware"
	"github.com/brokerledger/reconciliation-backend/internal/config"
	"github.com/brokerledger/reconciliation-backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	transactionService *service.TransactionService,
	matcherService *service.MatcherService,
	strategyService *service.StrategyService,
	snapshotService *service.SnapshotService,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		transactionHandler := handlers.NewTransactionHandler(transactionService)
		r.Post("/transactions", transactionHandler.Ingest)
		r.Post("/cash-transactions", transactionHandler.IngestCash)

		r.Route("/positions", func(r chi.Router) {
			positionHandler := handlers.NewPositionHandler(matcherService)
			r.Get("/", positionHandler.Positions)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", positionHandler.GetPosition)
				r.Get("/matches", positionHandler.Matches)
				r.Get("/transactions", transactionHandler.TransactionsPerPosition)
			})
		})

		r.Route("/strategies", func(r chi.Router) {
			strategyHandler := handlers.NewStrategyHandler(strategyService)
			r.Get("/", strategyHandler.Strategies)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", strategyHandler.GetStrategy)
			})
		})

		r.Route("/snapshots", func(r chi.Router) {
			snapshotHandler := handlers.NewSnapshotHandler(snapshotService)
			r.Get("/", snapshotHandler.Snapshots)
			r.Post("/generate", snapshotHandler.Generate)
			r.Get("/{date}", snapshotHandler.GetSnapshot)
		})

		r.Route("/faults", func(r chi.Router) {
			faultHandler := handlers.NewFaultHandler(matcherService)
			r.Get("/", faultHandler.Faults)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Post("/resolve", faultHandler.Resolve)
			})
		})

		r.Route("/maintenance", func(r chi.Router) {
			strategyHandler := handlers.NewStrategyHandler(strategyService)
			r.Post("/recompute-strategies", strategyHandler.RecomputeAll)
		})
	})

	return r
}
