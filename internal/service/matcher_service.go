package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
)

// Quantities are floats because crypto trades fractional units; comparisons
// against zero go through this tolerance.
const quantityEpsilon = 1e-9

// MatcherService reconstructs positions from the transaction ledger using
// FIFO lot matching. It is the single writer for position and position_match
// rows; all matching for one instrument key is serialized through keyLocks.
//
// Matching is a pure replay: re-running over the same ledger produces
// identical position state and zero new match rows.
type MatcherService struct {
	transactionRepo *repository.TransactionRepository
	positionRepo    *repository.PositionRepository
	faultRepo       *repository.FaultRepository
	locks           *keyLocks
}

// NewMatcherService creates a new MatcherService with the provided repository dependencies.
func NewMatcherService(
	transactionRepo *repository.TransactionRepository,
	positionRepo *repository.PositionRepository,
	faultRepo *repository.FaultRepository,
) *MatcherService {
	return &MatcherService{
		transactionRepo: transactionRepo,
		positionRepo:    positionRepo,
		faultRepo:       faultRepo,
		locks:           newKeyLocks(),
	}
}

// MatchReport summarizes one matching run.
type MatchReport struct {
	PositionsUpserted int
	MatchesEmitted    int
	Faults            []model.ReconciliationFault
}

// ProcessUser replays the full transaction ledger for a user and upserts the
// resulting positions, matches, and faults. A fault at one instrument key
// never aborts processing of unrelated keys; per-key errors are joined and
// returned after every key has been attempted.
func (s *MatcherService) ProcessUser(ctx context.Context, userID string) (MatchReport, error) {
	transactions, err := s.transactionRepo.GetTransactionsByUser(userID)
	if err != nil {
		return MatchReport{}, fmt.Errorf("failed to load transactions for matching: %w", err)
	}

	groups := make(map[model.InstrumentKey][]model.Transaction)
	for _, t := range transactions {
		key := t.InstrumentKey()
		groups[key] = append(groups[key], t)
	}

	// Deterministic key order so logs and reports are stable across runs.
	keys := make([]model.InstrumentKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	var report MatchReport
	var keyErrs []error

	for _, key := range keys {
		keyReport, err := s.processKey(ctx, key, groups[key])
		if err != nil {
			keyErrs = append(keyErrs, fmt.Errorf("instrument %s: %w", key, err))
			continue
		}
		report.PositionsUpserted += keyReport.PositionsUpserted
		report.MatchesEmitted += keyReport.MatchesEmitted
		report.Faults = append(report.Faults, keyReport.Faults...)
	}

	return report, errors.Join(keyErrs...)
}

// positionBuild accumulates one lot-group during replay.
type positionBuild struct {
	position model.Position
	lots     []openLot
	matches  []model.PositionMatch
}

// openLot is one queued opening transaction with its unconsumed quantity.
type openLot struct {
	transaction model.Transaction
	remaining   float64
}

func (b *positionBuild) remainingQuantity() float64 {
	var total float64
	for _, lot := range b.lots {
		total += lot.remaining
	}
	return total
}

// processKey replays one instrument key's transactions in chronological order
// and persists the reconstructed state. Transactions arrive pre-sorted by
// activity date with ties broken by insertion order.
func (s *MatcherService) processKey(ctx context.Context, key model.InstrumentKey, transactions []model.Transaction) (MatchReport, error) {
	lock := s.locks.acquire(key)
	lock.Lock()
	defer lock.Unlock()

	var report MatchReport
	var current *positionBuild
	finished := []*positionBuild{}

	for _, t := range transactions {
		if t.IsOpening {
			if current == nil {
				current = newPositionBuild(t)
			}
			current.addOpening(t)
			continue
		}

		if current == nil {
			fault := overCloseFault(t, key, t.Quantity)
			report.Faults = append(report.Faults, fault)
			continue
		}

		available := current.remainingQuantity()
		if t.Quantity > available+quantityEpsilon {
			// Over-close: the position stays in its last-good state,
			// flagged for the operator queue. Nothing is consumed.
			fault := overCloseFault(t, key, t.Quantity-available)
			report.Faults = append(report.Faults, fault)
			current.position.NeedsReconciliation = true
			continue
		}

		current.applyClosing(t)

		if current.position.CurrentQuantity <= quantityEpsilon {
			current.finalize(t)
			finished = append(finished, current)
			current = nil
		}
	}

	if current != nil {
		finished = append(finished, current)
	}

	for _, build := range finished {
		if err := s.persistBuild(ctx, build); err != nil {
			return report, err
		}
		report.PositionsUpserted++
		report.MatchesEmitted += len(build.matches)
	}

	for _, fault := range report.Faults {
		fault := fault
		if err := s.faultRepo.UpsertFault(ctx, &fault); err != nil {
			return report, err
		}
		log.Printf("reconciliation fault: user=%s transaction=%s shortfall=%.4f (%s)",
			fault.UserID, fault.TransactionID, fault.Shortfall, fault.InstrumentKey)
	}

	return report, nil
}

func (s *MatcherService) persistBuild(ctx context.Context, build *positionBuild) error {
	if err := s.positionRepo.UpsertPosition(ctx, &build.position); err != nil {
		return err
	}

	for i := range build.matches {
		if err := s.positionRepo.UpsertMatch(ctx, &build.matches[i]); err != nil {
			return err
		}
	}

	stamped := append([]string{}, build.position.OpeningTransactionIDs...)
	stamped = append(stamped, build.position.ClosingTransactionIDs...)
	if err := s.transactionRepo.StampPositionID(ctx, stamped, build.position.ID); err != nil {
		return err
	}

	return nil
}

// newPositionBuild starts a lot-group at its first opening transaction.
// A previously stamped position id is reused so replays update the same row.
func newPositionBuild(t model.Transaction) *positionBuild {
	id := t.PositionID
	if id == "" {
		id = uuid.New().String()
	}

	side := model.SideShort
	if t.IsLong {
		side = model.SideLong
	}

	return &positionBuild{
		position: model.Position{
			ID:                    id,
			UserID:                t.UserID,
			Symbol:                t.Symbol,
			UnderlyingSymbol:      t.UnderlyingSymbol,
			AssetType:             t.AssetType,
			StrikePrice:           t.StrikePrice,
			ExpirationDate:        t.ExpirationDate,
			OptionType:            t.OptionType,
			ContractMonth:         t.ContractMonth,
			Side:                  side,
			Status:                model.PositionOpen,
			OpenedAt:              t.ActivityDate,
			OpeningTransactionIDs: []string{},
			ClosingTransactionIDs: []string{},
		},
	}
}

func (b *positionBuild) addOpening(t model.Transaction) {
	b.lots = append(b.lots, openLot{transaction: t, remaining: t.Quantity})

	p := &b.position
	previousQuantity := p.OpeningQuantity
	p.OpeningQuantity += t.Quantity
	p.CurrentQuantity += t.Quantity
	p.TotalCostBasis += t.Amount
	p.OpeningTransactionIDs = append(p.OpeningTransactionIDs, t.ID)

	// Quantity-weighted average entry price.
	p.AverageOpeningPrice = (p.AverageOpeningPrice*previousQuantity + t.Price*t.Quantity) / p.OpeningQuantity
}

// applyClosing consumes queued opening quantity oldest-first, emitting one
// match row per consumed lot slice. Callers have already verified the close
// does not exceed the available open quantity.
func (b *positionBuild) applyClosing(t model.Transaction) {
	p := &b.position
	multiplier := p.AssetType.Multiplier()
	isLong := p.Side == model.SideLong
	remaining := t.Quantity

	for i := range b.lots {
		if remaining <= quantityEpsilon {
			break
		}
		lot := &b.lots[i]
		if lot.remaining <= quantityEpsilon {
			continue
		}

		matched := min(lot.remaining, remaining)
		realized := RealizedLeg(lot.transaction.Price, t.Price, matched, multiplier, isLong)

		b.matches = append(b.matches, model.PositionMatch{
			ID:                   uuid.New().String(),
			PositionID:           p.ID,
			OpeningTransactionID: lot.transaction.ID,
			ClosingTransactionID: t.ID,
			MatchedQuantity:      matched,
			OpeningPrice:         lot.transaction.Price,
			ClosingPrice:         t.Price,
			RealizedPL:           realized,
		})

		p.RealizedPL += realized
		lot.remaining -= matched
		remaining -= matched
	}

	p.CurrentQuantity -= t.Quantity
	if p.CurrentQuantity < 0 {
		p.CurrentQuantity = 0
	}
	p.TotalClosingAmount += t.Amount
	p.ClosingTransactionIDs = append(p.ClosingTransactionIDs, t.ID)
}

// finalize derives the terminal status from the closing transaction's code.
func (b *positionBuild) finalize(closing model.Transaction) {
	p := &b.position
	p.CurrentQuantity = 0

	switch closing.TransCode {
	case model.CodeExpiration:
		p.Status = model.PositionExpired
	case model.CodeAssignment:
		p.Status = model.PositionAssigned
	case model.CodeExercise:
		p.Status = model.PositionExercised
	default:
		p.Status = model.PositionClosed
	}

	p.ClosedAt = closing.ActivityDate
}

// GetPositions retrieves positions matching the filter.
func (s *MatcherService) GetPositions(filter model.PositionFilter) ([]model.Position, error) {
	return s.positionRepo.GetPositions(filter)
}

// GetPosition retrieves a single position by its ID.
func (s *MatcherService) GetPosition(positionID string) (model.Position, error) {
	return s.positionRepo.GetPosition(positionID)
}

// GetMatches retrieves the lot-match audit trail for a position.
func (s *MatcherService) GetMatches(positionID string) ([]model.PositionMatch, error) {
	if _, err := s.positionRepo.GetPosition(positionID); err != nil {
		return nil, err
	}
	return s.positionRepo.GetMatchesByPosition(positionID)
}

// GetFaults retrieves a user's reconciliation faults, unresolved ones by
// default.
func (s *MatcherService) GetFaults(userID string, includeResolved bool) ([]model.ReconciliationFault, error) {
	return s.faultRepo.GetFaults(userID, includeResolved)
}

// ResolveFault marks a fault as handled by an operator.
func (s *MatcherService) ResolveFault(ctx context.Context, faultID string) error {
	return s.faultRepo.ResolveFault(ctx, faultID)
}

func overCloseFault(t model.Transaction, key model.InstrumentKey, shortfall float64) model.ReconciliationFault {
	return model.ReconciliationFault{
		ID:            uuid.New().String(),
		UserID:        t.UserID,
		TransactionID: t.ID,
		InstrumentKey: key.String(),
		Shortfall:     shortfall,
		Message: fmt.Sprintf(
			"closing transaction for %.4f units found only %.4f open at %s",
			t.Quantity, t.Quantity-shortfall, key,
		),
	}
}
