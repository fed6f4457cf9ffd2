package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
	"github.com/brokerledger/reconciliation-backend/internal/testutil"
)

// TestMatcherService_ProcessUser tests FIFO lot matching over the ledger.
//
// WHY: The matcher is the single source of every position and realized P&L
// number downstream. These cases pin the FIFO consumption order, the
// conservation of realized P&L across matches, and the closed-position
// lifecycle.
func TestMatcherService_ProcessUser(t *testing.T) {
	ctx := context.Background()

	t.Run("matches partial closes FIFO and closes the position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		open := testutil.NewTransaction("AAPL").ForUser(userID).Opening(10, 150).On("2024-01-02").Build()
		close1 := testutil.NewTransaction("AAPL").ForUser(userID).Closing(4, 160).On("2024-01-10").Build()
		close2 := testutil.NewTransaction("AAPL").ForUser(userID).Closing(6, 155).On("2024-01-15").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{open, close1, close2}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		report, err := svc.ProcessUser(ctx, userID)
		if err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		if report.PositionsUpserted != 1 {
			t.Errorf("Expected 1 position, got %d", report.PositionsUpserted)
		}
		if report.MatchesEmitted != 2 {
			t.Errorf("Expected 2 matches, got %d", report.MatchesEmitted)
		}
		if len(report.Faults) != 0 {
			t.Errorf("Expected no faults, got %d", len(report.Faults))
		}

		positions, err := svc.GetPositions(model.PositionFilter{UserID: userID})
		if err != nil {
			t.Fatalf("GetPositions() returned unexpected error: %v", err)
		}
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}

		p := positions[0]
		if p.Status != model.PositionClosed {
			t.Errorf("Expected status closed, got %s", p.Status)
		}
		if p.CurrentQuantity != 0 {
			t.Errorf("Expected current quantity 0, got %v", p.CurrentQuantity)
		}
		// 4 x (160-150) + 6 x (155-150) = 70
		if math.Abs(p.RealizedPL-70) > 1e-9 {
			t.Errorf("Expected realized P&L 70, got %v", p.RealizedPL)
		}

		// Sum of match P&L must equal the position's realized P&L.
		matches, err := svc.GetMatches(p.ID)
		if err != nil {
			t.Fatalf("GetMatches() returned unexpected error: %v", err)
		}
		var total float64
		for _, m := range matches {
			total += m.RealizedPL
		}
		if math.Abs(total-p.RealizedPL) > 1e-9 {
			t.Errorf("Match P&L sum %v does not equal position realized P&L %v", total, p.RealizedPL)
		}
	})

	t.Run("consumes oldest lot first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		lot1 := testutil.NewTransaction("MSFT").ForUser(userID).Opening(10, 150).On("2024-01-02").Build()
		lot2 := testutil.NewTransaction("MSFT").ForUser(userID).Opening(10, 155).On("2024-01-03").Build()
		close1 := testutil.NewTransaction("MSFT").ForUser(userID).Closing(15, 160).On("2024-01-10").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{lot1, lot2, close1}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		matches, err := svc.GetMatches(positions[0].ID)
		if err != nil {
			t.Fatalf("GetMatches() returned unexpected error: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("Expected 2 matches, got %d", len(matches))
		}

		// The first lot is consumed fully before the second is touched.
		byOpening := map[string]model.PositionMatch{}
		for _, m := range matches {
			byOpening[m.OpeningTransactionID] = m
		}
		if m := byOpening[lot1.ID]; m.MatchedQuantity != 10 {
			t.Errorf("Expected 10 matched from oldest lot, got %v", m.MatchedQuantity)
		}
		if m := byOpening[lot2.ID]; m.MatchedQuantity != 5 {
			t.Errorf("Expected 5 matched from newer lot, got %v", m.MatchedQuantity)
		}

		// Position remains open with the newer lot's remainder.
		if positions[0].Status != model.PositionOpen {
			t.Errorf("Expected status open, got %s", positions[0].Status)
		}
		if positions[0].CurrentQuantity != 5 {
			t.Errorf("Expected current quantity 5, got %v", positions[0].CurrentQuantity)
		}
	})

	t.Run("replay is idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		open := testutil.NewTransaction("AAPL").ForUser(userID).Opening(10, 150).On("2024-01-02").Build()
		close1 := testutil.NewTransaction("AAPL").ForUser(userID).Closing(10, 160).On("2024-01-10").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{open, close1}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("First ProcessUser() returned unexpected error: %v", err)
		}
		first, _ := svc.GetPositions(model.PositionFilter{UserID: userID})

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("Second ProcessUser() returned unexpected error: %v", err)
		}
		second, _ := svc.GetPositions(model.PositionFilter{UserID: userID})

		if len(first) != 1 || len(second) != 1 {
			t.Fatalf("Expected 1 position after each run, got %d then %d", len(first), len(second))
		}
		if first[0].ID != second[0].ID {
			t.Errorf("Replay created a new position: %s vs %s", first[0].ID, second[0].ID)
		}
		if first[0].RealizedPL != second[0].RealizedPL {
			t.Errorf("Replay changed realized P&L: %v vs %v", first[0].RealizedPL, second[0].RealizedPL)
		}

		// The pair key dedupes match rows across replays.
		testutil.AssertRowCount(t, db, "position_match", 1)
	})

	t.Run("short option round trip has mirrored sign", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		sto := testutil.NewOptionTransaction("SPY", 450, "2024-06-21", model.OptionPut).
			ForUser(userID).Short().Opening(1, 5.00).On("2024-01-02").Build()
		btc := testutil.NewOptionTransaction("SPY", 450, "2024-06-21", model.OptionPut).
			ForUser(userID).Short().Closing(1, 3.00).On("2024-02-02").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{sto, btc}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		p := positions[0]
		if p.Side != model.SideShort {
			t.Errorf("Expected short side, got %s", p.Side)
		}
		// Sold at 5.00, bought back at 3.00: (3-5) x 1 x 100 x -1 = +200
		if math.Abs(p.RealizedPL-200) > 1e-9 {
			t.Errorf("Expected realized P&L 200, got %v", p.RealizedPL)
		}
	})

	t.Run("expiration code yields expired status", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		sto := testutil.NewOptionTransaction("SPY", 400, "2024-03-15", model.OptionCall).
			ForUser(userID).Short().Opening(1, 2.00).On("2024-01-02").Build()
		oexp := testutil.NewOptionTransaction("SPY", 400, "2024-03-15", model.OptionCall).
			ForUser(userID).Short().Closing(1, 0).WithTransCode(model.CodeExpiration).WithAmount(0).On("2024-03-15").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{sto, oexp}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		if positions[0].Status != model.PositionExpired {
			t.Errorf("Expected status expired, got %s", positions[0].Status)
		}
		// Short expired worthless: full credit kept.
		if math.Abs(positions[0].RealizedPL-200) > 1e-9 {
			t.Errorf("Expected realized P&L 200, got %v", positions[0].RealizedPL)
		}
	})

	t.Run("over-close raises a fault and leaves the position intact", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		open := testutil.NewTransaction("TSLA").ForUser(userID).Opening(5, 200).On("2024-01-02").Build()
		overClose := testutil.NewTransaction("TSLA").ForUser(userID).Closing(8, 210).On("2024-01-10").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{open, overClose}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		report, err := svc.ProcessUser(ctx, userID)
		if err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		if len(report.Faults) != 1 {
			t.Fatalf("Expected 1 fault, got %d", len(report.Faults))
		}
		if math.Abs(report.Faults[0].Shortfall-3) > 1e-9 {
			t.Errorf("Expected shortfall 3, got %v", report.Faults[0].Shortfall)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		p := positions[0]
		if p.CurrentQuantity != 5 {
			t.Errorf("Over-close must not consume quantity; expected 5, got %v", p.CurrentQuantity)
		}
		if p.RealizedPL != 0 {
			t.Errorf("Over-close must not realize P&L; got %v", p.RealizedPL)
		}
		if !p.NeedsReconciliation {
			t.Error("Expected needs_reconciliation flag set")
		}
		testutil.AssertRowCount(t, db, "position_match", 0)

		faults, err := svc.GetFaults(userID, false)
		if err != nil {
			t.Fatalf("GetFaults() returned unexpected error: %v", err)
		}
		if len(faults) != 1 {
			t.Errorf("Expected 1 persisted fault, got %d", len(faults))
		}
	})

	t.Run("different strikes never share a position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		leg1 := testutil.NewOptionTransaction("SPY", 440, "2024-06-21", model.OptionCall).
			ForUser(userID).Opening(1, 6.00).On("2024-01-02").Build()
		leg2 := testutil.NewOptionTransaction("SPY", 450, "2024-06-21", model.OptionCall).
			ForUser(userID).Short().Opening(1, 3.00).On("2024-01-02").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{leg1, leg2}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 2 {
			t.Errorf("Expected 2 positions for distinct strikes, got %d", len(positions))
		}
	})

	t.Run("fractional crypto quantities close cleanly", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMatcherService(t, db)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		open := testutil.NewCryptoTransaction("BTC").ForUser(userID).Opening(0.3, 40000).On("2024-01-02").Build()
		close1 := testutil.NewCryptoTransaction("BTC").ForUser(userID).Closing(0.1, 42000).On("2024-01-05").Build()
		close2 := testutil.NewCryptoTransaction("BTC").ForUser(userID).Closing(0.2, 41000).On("2024-01-06").Build()

		if err := transactionRepo.InsertTransactions(ctx, []model.Transaction{open, close1, close2}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}

		if _, err := svc.ProcessUser(ctx, userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		positions, _ := svc.GetPositions(model.PositionFilter{UserID: userID})
		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		p := positions[0]
		if p.Status != model.PositionClosed {
			t.Errorf("Expected status closed despite float residue, got %s", p.Status)
		}
		// 0.1 x 2000 + 0.2 x 1000 = 400
		if math.Abs(p.RealizedPL-400) > 1e-6 {
			t.Errorf("Expected realized P&L 400, got %v", p.RealizedPL)
		}
	})
}
