package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/brokerledger/reconciliation-backend/internal/repository"
	"github.com/brokerledger/reconciliation-backend/internal/service"
)

func NewTestMatcherService(t *testing.T, db *sql.DB) *service.MatcherService {
	t.Helper()

	transactionRepo := repository.NewTransactionRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	faultRepo := repository.NewFaultRepository(db)

	return service.NewMatcherService(
		transactionRepo,
		positionRepo,
		faultRepo,
	)
}

func NewTestStrategyService(t *testing.T, db *sql.DB) *service.StrategyService {
	t.Helper()

	strategyRepo := repository.NewStrategyRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	return service.NewStrategyService(
		strategyRepo,
		positionRepo,
		transactionRepo,
	)
}

func NewTestTransactionService(t *testing.T, db *sql.DB) *service.TransactionService {
	t.Helper()

	transactionRepo := repository.NewTransactionRepository(db)
	cashRepo := repository.NewCashRepository(db)

	return service.NewTransactionService(
		transactionRepo,
		cashRepo,
		NewTestMatcherService(t, db),
		NewTestStrategyService(t, db),
	)
}

// NewTestSnapshotService creates a SnapshotService backed by the given quote
// provider, usually a MockQuoteProvider so tests never hit the network.
func NewTestSnapshotService(t *testing.T, db *sql.DB, quotes *MockQuoteProvider) *service.SnapshotService {
	t.Helper()

	positionRepo := repository.NewPositionRepository(db)
	cashRepo := repository.NewCashRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	return service.NewSnapshotService(
		positionRepo,
		cashRepo,
		snapshotRepo,
		quotes,
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}
