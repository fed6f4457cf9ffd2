package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/quote"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
)

// marginCodes are cash postings excluded from net cash flow: futures margin
// moves collateral around without changing owner's equity.
var marginCodes = []string{model.CodeFuturesMargin, model.CodeMarginRelease}

// quoteFetchLimit bounds concurrent quote requests per snapshot run.
const quoteFetchLimit = 8

// SnapshotService aggregates all positions plus the cash ledger into daily
// portfolio snapshots. Generation is idempotent: the write is an upsert keyed
// by (user, date), so a superseding run for the same date simply wins.
type SnapshotService struct {
	positionRepo *repository.PositionRepository
	cashRepo     *repository.CashRepository
	snapshotRepo *repository.SnapshotRepository
	quotes       quote.Provider
}

// NewSnapshotService creates a new SnapshotService with the provided dependencies.
func NewSnapshotService(
	positionRepo *repository.PositionRepository,
	cashRepo *repository.CashRepository,
	snapshotRepo *repository.SnapshotRepository,
	quotes quote.Provider,
) *SnapshotService {
	return &SnapshotService{
		positionRepo: positionRepo,
		cashRepo:     cashRepo,
		snapshotRepo: snapshotRepo,
		quotes:       quotes,
	}
}

// GenerateSnapshot computes and upserts the portfolio snapshot for a user on
// a date. Quote failures for individual symbols degrade that position to its
// last stored valuation (flagged in StaleSymbols) instead of aborting the
// whole snapshot. Positions are aggregated in id order so repeated runs over
// identical inputs produce bit-for-bit equal values.
func (s *SnapshotService) GenerateSnapshot(ctx context.Context, userID string, date time.Time) (model.PortfolioSnapshot, error) {
	positions, err := s.positionRepo.GetPositions(model.PositionFilter{UserID: userID})
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to load positions for snapshot: %w", err)
	}

	var open, terminal []model.Position
	for _, p := range positions {
		if p.Status.Terminal() {
			terminal = append(terminal, p)
		} else {
			open = append(open, p)
		}
	}

	quotes := s.resolveQuotes(ctx, openSymbols(open))

	breakdown := make(map[model.AssetType]model.AssetClassBreakdown)
	var totalMarketValue, totalUnrealized, totalRealized float64
	var staleSymbols []string

	for _, p := range terminal {
		realized := terminalRealizedPL(p)
		totalRealized += realized

		slice := breakdown[p.AssetType]
		slice.RealizedPL += realized
		breakdown[p.AssetType] = slice
	}

	for _, p := range open {
		multiplier := p.AssetType.Multiplier()
		isLong := p.Side == model.SideLong
		// Basis attributable to the still-open quantity; partially closed
		// lots have already realized the rest.
		remainingBasis := p.AverageOpeningPrice * p.CurrentQuantity * multiplier

		var marketValue, unrealized float64
		if q, ok := quotes[p.Symbol]; ok {
			price := q.Price()
			unrealized = UnrealizedLeg(price, p.CurrentQuantity, multiplier, remainingBasis, isLong)
			marketValue = MarketValue(p.AssetType, p.Side, p.CurrentQuantity, price, unrealized)

			if err := s.positionRepo.UpdateUnrealizedPL(ctx, p.ID, unrealized); err != nil {
				log.Printf("failed to store unrealized P&L for position %s: %v", p.ID, err)
			}
		} else {
			unrealized = p.UnrealizedPL
			marketValue = StaleMarketValue(p.AssetType, p.Side, remainingBasis, unrealized)
			staleSymbols = append(staleSymbols, p.Symbol)
		}

		totalMarketValue += marketValue
		totalUnrealized += unrealized
		totalRealized += p.RealizedPL // realized slice of partially closed lots

		slice := breakdown[p.AssetType]
		slice.MarketValue = roundCents(slice.MarketValue + marketValue)
		slice.UnrealizedPL = roundCents(slice.UnrealizedPL + unrealized)
		slice.RealizedPL = roundCents(slice.RealizedPL + p.RealizedPL)
		slice.PositionCount++
		breakdown[p.AssetType] = slice
	}

	netCashFlow, err := s.cashRepo.NetCashFlow(userID, date, marginCodes)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to compute net cash flow: %w", err)
	}

	snapshot := model.PortfolioSnapshot{
		ID:                uuid.New().String(),
		UserID:            userID,
		SnapshotDate:      date,
		NetCashFlow:       roundCents(netCashFlow),
		TotalMarketValue:  roundCents(totalMarketValue),
		TotalRealizedPL:   roundCents(totalRealized),
		TotalUnrealizedPL: roundCents(totalUnrealized),
		Breakdown:         breakdown,
		StaleSymbols:      staleSymbols,
		CalculatedAt:      time.Now().UTC(),
	}
	snapshot.PortfolioValue = roundCents(snapshot.NetCashFlow + snapshot.TotalMarketValue)

	if err := s.upsertWithRetry(ctx, &snapshot); err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return snapshot, nil
}

// GetSnapshot retrieves the stored snapshot for a user and date.
func (s *SnapshotService) GetSnapshot(userID string, date time.Time) (model.PortfolioSnapshot, error) {
	return s.snapshotRepo.GetSnapshot(userID, date)
}

// GetSnapshotRange retrieves stored snapshots within an inclusive date range.
func (s *SnapshotService) GetSnapshotRange(userID string, startDate, endDate time.Time) ([]model.PortfolioSnapshot, error) {
	return s.snapshotRepo.GetSnapshotRange(userID, startDate, endDate)
}

// resolveQuotes fetches live quotes concurrently, one worker per symbol with
// bounded parallelism. A failed symbol is logged and simply absent from the
// result; callers degrade that position to its last stored valuation. No
// instrument lock is ever held here.
func (s *SnapshotService) resolveQuotes(ctx context.Context, symbols []string) map[string]quote.Quote {
	quotes := make(map[string]quote.Quote, len(symbols))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteFetchLimit)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			q, err := s.quotes.GetQuote(ctx, symbol)
			if err != nil {
				log.Printf("quote unavailable for %s, using last stored valuation: %v", symbol, err)
				return nil
			}
			mu.Lock()
			quotes[symbol] = q
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	return quotes
}

// upsertWithRetry writes the snapshot, retrying transient SQLite contention
// with exponential backoff. A hard failure after retries is returned; the
// previous snapshot for the date remains authoritative until resolved.
func (s *SnapshotService) upsertWithRetry(ctx context.Context, snapshot *model.PortfolioSnapshot) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.snapshotRepo.UpsertSnapshot(ctx, snapshot); err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist snapshot for %s: %w",
			snapshot.SnapshotDate.Format("2006-01-02"), err)
	}

	return nil
}

// isTransient reports whether a write failure is worth retrying. Only SQLite
// lock contention qualifies; constraint and logic errors fail immediately.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// terminalRealizedPL returns a terminal position's realized P&L, applying the
// expired-short repair rule: historical rows written before short-side sign
// handling was fixed carry realized_pl = 0 with a non-zero credit basis, and
// are valued at that credit. This is a documented workaround for legacy data,
// deliberately confined to snapshot aggregation; the lot matcher writes
// correct values and must never learn this rule.
func terminalRealizedPL(p model.Position) float64 {
	if p.Status == model.PositionExpired && p.Side == model.SideShort &&
		p.RealizedPL == 0 && p.TotalCostBasis != 0 {
		if p.TotalCostBasis < 0 {
			return -p.TotalCostBasis
		}
		return p.TotalCostBasis
	}
	return p.RealizedPL
}

// openSymbols returns the unique symbols of open positions, preserving the
// deterministic position order.
func openSymbols(open []model.Position) []string {
	seen := make(map[string]bool, len(open))
	symbols := make([]string, 0, len(open))
	for _, p := range open {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}
