package service_test

import (
	"context"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/testutil"
)

// TestTransactionService_IngestTransactions tests the full ingest pipeline.
//
// WHY: Ingest is the only write path into the engine; it must persist the
// batch, run matching, and only then run strategy detection, so a single call
// leaves positions and strategies consistent.
func TestTransactionService_IngestTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("persists, matches, and detects in one call", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		matcher := testutil.NewTestMatcherService(t, db)
		detector := testutil.NewTestStrategyService(t, db)
		userID := testutil.MakeID()

		batch := []model.Transaction{
			testutil.NewOptionTransaction("SPY", 440, "2024-06-21", model.OptionCall).
				ForUser(userID).Opening(1, 6.00).On("2024-01-02").Build(),
			testutil.NewOptionTransaction("SPY", 450, "2024-06-21", model.OptionCall).
				ForUser(userID).Short().Opening(1, 3.00).On("2024-01-02").Build(),
		}

		report, err := svc.IngestTransactions(ctx, userID, batch)
		if err != nil {
			t.Fatalf("IngestTransactions() returned unexpected error: %v", err)
		}

		if report.Accepted != 2 {
			t.Errorf("Expected 2 accepted, got %d", report.Accepted)
		}
		if report.PositionsUpserted != 2 {
			t.Errorf("Expected 2 positions, got %d", report.PositionsUpserted)
		}

		positions, err := matcher.GetPositions(model.PositionFilter{UserID: userID})
		if err != nil {
			t.Fatalf("GetPositions() returned unexpected error: %v", err)
		}
		if len(positions) != 2 {
			t.Fatalf("Expected 2 positions, got %d", len(positions))
		}

		// Detection ran after matching: both legs share one vertical.
		strategies, err := detector.GetStrategies(model.StrategyFilter{UserID: userID})
		if err != nil {
			t.Fatalf("GetStrategies() returned unexpected error: %v", err)
		}
		if len(strategies) != 1 {
			t.Fatalf("Expected 1 strategy, got %d", len(strategies))
		}
		if strategies[0].StrategyType != model.StrategyVerticalSpread {
			t.Errorf("Expected vertical_spread, got %s", strategies[0].StrategyType)
		}
	})

	t.Run("assigns ids to rows that arrive without one", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		userID := testutil.MakeID()

		tx := testutil.NewTransaction("AAPL").ForUser(userID).Opening(10, 150).On("2024-01-02").Build()
		tx.ID = ""

		if _, err := svc.IngestTransactions(ctx, userID, []model.Transaction{tx}); err != nil {
			t.Fatalf("IngestTransactions() returned unexpected error: %v", err)
		}

		testutil.AssertRowCount(t, db, `"transaction"`, 1)
	})

	t.Run("faulted batches still report instead of failing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		userID := testutil.MakeID()

		batch := []model.Transaction{
			testutil.NewTransaction("TSLA").ForUser(userID).Opening(5, 200).On("2024-01-02").Build(),
			testutil.NewTransaction("TSLA").ForUser(userID).Closing(8, 210).On("2024-01-10").Build(),
		}

		report, err := svc.IngestTransactions(ctx, userID, batch)
		if err != nil {
			t.Fatalf("IngestTransactions() returned unexpected error: %v", err)
		}
		if len(report.Faults) != 1 {
			t.Errorf("Expected 1 fault in report, got %d", len(report.Faults))
		}
	})
}

// TestTransactionService_IngestCashTransactions tests cash ledger ingestion.
func TestTransactionService_IngestCashTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the batch without running the pipeline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTransactionService(t, db)
		userID := testutil.MakeID()

		batch := []model.CashTransaction{
			testutil.NewCashTransaction(userID, "ACH", 10000, "2024-01-01"),
			testutil.NewCashTransaction(userID, model.CodeFuturesMargin, -500, "2024-01-05"),
		}

		accepted, err := svc.IngestCashTransactions(ctx, userID, batch)
		if err != nil {
			t.Fatalf("IngestCashTransactions() returned unexpected error: %v", err)
		}
		if accepted != 2 {
			t.Errorf("Expected 2 accepted, got %d", accepted)
		}

		testutil.AssertRowCount(t, db, "cash_transaction", 2)
		testutil.AssertRowCount(t, db, "position", 0)
	})
}
