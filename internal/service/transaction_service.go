package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
)

// TransactionService owns ledger ingestion and sequences the reconciliation
// pipeline: persist the batch, replay lot matching, then detect strategies.
// Strategy detection only starts after matching has committed every position
// update for the batch.
type TransactionService struct {
	transactionRepo *repository.TransactionRepository
	cashRepo        *repository.CashRepository
	matcher         *MatcherService
	strategies      *StrategyService
}

// NewTransactionService creates a new TransactionService with the provided dependencies.
func NewTransactionService(
	transactionRepo *repository.TransactionRepository,
	cashRepo *repository.CashRepository,
	matcher *MatcherService,
	strategies *StrategyService,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		cashRepo:        cashRepo,
		matcher:         matcher,
		strategies:      strategies,
	}
}

// IngestReport summarizes one ingest run for the API response.
type IngestReport struct {
	Accepted          int                         `json:"accepted"`
	PositionsUpserted int                         `json:"positionsUpserted"`
	MatchesEmitted    int                         `json:"matchesEmitted"`
	Faults            []model.ReconciliationFault `json:"faults,omitempty"`
}

// IngestTransactions persists a validated batch and runs the full
// reconciliation pipeline for the affected user. The batch insert is atomic;
// matching faults are reported, not fatal, so a bad closing row never blocks
// the rest of the batch from reconciling.
func (s *TransactionService) IngestTransactions(ctx context.Context, userID string, transactions []model.Transaction) (IngestReport, error) {
	now := time.Now().UTC()
	for i := range transactions {
		transactions[i].UserID = userID
		if transactions[i].ID == "" {
			transactions[i].ID = uuid.New().String()
		}
		transactions[i].CreatedAt = now
	}

	if err := s.transactionRepo.InsertTransactions(ctx, transactions); err != nil {
		return IngestReport{}, fmt.Errorf("failed to persist transaction batch: %w", err)
	}

	matchReport, err := s.matcher.ProcessUser(ctx, userID)
	if err != nil {
		return IngestReport{}, err
	}

	if err := s.strategies.DetectUser(ctx, userID); err != nil {
		return IngestReport{}, err
	}

	return IngestReport{
		Accepted:          len(transactions),
		PositionsUpserted: matchReport.PositionsUpserted,
		MatchesEmitted:    matchReport.MatchesEmitted,
		Faults:            matchReport.Faults,
	}, nil
}

// IngestCashTransactions persists a batch of cash ledger entries. Cash rows
// never participate in lot matching, so no pipeline run follows.
func (s *TransactionService) IngestCashTransactions(ctx context.Context, userID string, cashTransactions []model.CashTransaction) (int, error) {
	now := time.Now().UTC()
	for i := range cashTransactions {
		cashTransactions[i].UserID = userID
		if cashTransactions[i].ID == "" {
			cashTransactions[i].ID = uuid.New().String()
		}
		cashTransactions[i].CreatedAt = now
	}

	if err := s.cashRepo.InsertCashTransactions(ctx, cashTransactions); err != nil {
		return 0, fmt.Errorf("failed to persist cash transaction batch: %w", err)
	}

	return len(cashTransactions), nil
}

// GetTransactionsByPosition returns the ledger rows stamped with a position,
// the raw inputs behind that position's match trail.
func (s *TransactionService) GetTransactionsByPosition(positionID string) ([]model.Transaction, error) {
	return s.transactionRepo.GetTransactionsByPosition(positionID)
}
