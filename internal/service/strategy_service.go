package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
)

// StrategyService detects multi-leg option strategies from co-dated legs and
// maintains their derived aggregates. Strategies never own their legs'
// lifecycle: every aggregate is recomputed from live position state, so both
// detection and recompute are idempotent and safe to re-run as repair
// operations.
type StrategyService struct {
	strategyRepo    *repository.StrategyRepository
	positionRepo    *repository.PositionRepository
	transactionRepo *repository.TransactionRepository
}

// NewStrategyService creates a new StrategyService with the provided repository dependencies.
func NewStrategyService(
	strategyRepo *repository.StrategyRepository,
	positionRepo *repository.PositionRepository,
	transactionRepo *repository.TransactionRepository,
) *StrategyService {
	return &StrategyService{
		strategyRepo:    strategyRepo,
		positionRepo:    positionRepo,
		transactionRepo: transactionRepo,
	}
}

// legGroup is one candidate strategy: option legs on the same underlying
// opened on the same activity date.
type legGroup struct {
	underlying string
	openedOn   string // YYYY-MM-DD
	legs       []model.Position
}

// DetectUser classifies all option legs for a user into strategies and
// refreshes each strategy's aggregates. It must run after the lot matcher has
// committed the batch's position updates; the caller sequences the two.
func (s *StrategyService) DetectUser(ctx context.Context, userID string) error {
	positions, err := s.positionRepo.GetPositions(model.PositionFilter{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to load positions for strategy detection: %w", err)
	}

	stocksBySymbol := make(map[string][]model.Position)
	groupIndex := make(map[string]*legGroup)

	for _, p := range positions {
		if p.AssetType == model.AssetStock {
			stocksBySymbol[p.Symbol] = append(stocksBySymbol[p.Symbol], p)
			continue
		}
		if p.AssetType != model.AssetOption {
			continue
		}

		openedOn := p.OpenedAt.Format("2006-01-02")
		groupKey := p.UnderlyingSymbol + "|" + openedOn
		group, ok := groupIndex[groupKey]
		if !ok {
			group = &legGroup{underlying: p.UnderlyingSymbol, openedOn: openedOn}
			groupIndex[groupKey] = group
		}
		group.legs = append(group.legs, p)
	}

	groupKeys := make([]string, 0, len(groupIndex))
	for key := range groupIndex {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)

	var groupErrs []error
	for _, key := range groupKeys {
		if err := s.detectGroup(ctx, userID, groupIndex[key], stocksBySymbol); err != nil {
			groupErrs = append(groupErrs, fmt.Errorf("leg group %s: %w", key, err))
		}
	}

	return errors.Join(groupErrs...)
}

// detectGroup classifies one leg group and upserts the resulting strategy.
func (s *StrategyService) detectGroup(ctx context.Context, userID string, group *legGroup, stocksBySymbol map[string][]model.Position) error {
	legs := group.legs
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })

	classification := classifyLegs(legs, stocksBySymbol[group.underlying])

	// Reuse a previously stamped strategy id so re-detection updates in place.
	strategyID := ""
	for _, leg := range legs {
		if leg.StrategyID != "" {
			strategyID = leg.StrategyID
			break
		}
	}
	if strategyID == "" {
		strategyID = uuid.New().String()
	}

	openedAt, err := time.Parse("2006-01-02", group.openedOn)
	if err != nil {
		return fmt.Errorf("failed to parse group open date: %w", err)
	}

	strategy := model.Strategy{
		ID:               strategyID,
		UserID:           userID,
		UnderlyingSymbol: group.underlying,
		StrategyType:     classification.strategyType,
		Variant:          classification.variant,
		Confidence:       classification.confidence,
		OpenedAt:         openedAt,
	}

	refreshAggregates(&strategy, legs)

	risk := riskMetrics(classification, legs, strategy.TotalOpeningCost)
	strategy.MaxRisk = risk.maxRisk
	strategy.MaxProfit = risk.maxProfit
	strategy.BreakevenPoints = risk.breakevens

	if err := s.strategyRepo.UpsertStrategy(ctx, &strategy); err != nil {
		return err
	}

	legIDs := make([]string, len(legs))
	var transactionIDs []string
	for i, leg := range legs {
		legIDs[i] = leg.ID
		transactionIDs = append(transactionIDs, leg.OpeningTransactionIDs...)
		transactionIDs = append(transactionIDs, leg.ClosingTransactionIDs...)
	}

	if err := s.positionRepo.StampStrategyID(ctx, legIDs, strategyID); err != nil {
		return err
	}
	if err := s.transactionRepo.StampStrategyID(ctx, transactionIDs, strategyID); err != nil {
		return err
	}

	return nil
}

// RecomputeStrategy refreshes one strategy's aggregates from its current leg
// state. Callable standalone as a repair/backfill operation; recomputing an
// already-consistent strategy is a no-op write.
func (s *StrategyService) RecomputeStrategy(ctx context.Context, strategyID string) error {
	strategy, err := s.strategyRepo.GetStrategy(strategyID)
	if err != nil {
		return err
	}

	legs, err := s.positionRepo.GetPositionsByStrategy(strategyID)
	if err != nil {
		return err
	}
	if len(legs) == 0 {
		// Stamps were wiped by a ledger rewrite; leave the row for the next
		// detection pass rather than guessing at aggregates.
		return nil
	}

	refreshAggregates(&strategy, legs)

	return s.strategyRepo.UpsertStrategy(ctx, &strategy)
}

// RecomputeAllStrategies refreshes every strategy for a user. This is the
// maintenance entry point exposed over HTTP; errors on one strategy do not
// stop the sweep.
func (s *StrategyService) RecomputeAllStrategies(ctx context.Context, userID string) (int, error) {
	ids, err := s.strategyRepo.GetStrategyIDsByUser(userID)
	if err != nil {
		return 0, err
	}

	recomputed := 0
	var sweepErrs []error
	for _, id := range ids {
		if err := s.RecomputeStrategy(ctx, id); err != nil {
			sweepErrs = append(sweepErrs, fmt.Errorf("strategy %s: %w", id, err))
			continue
		}
		recomputed++
	}

	return recomputed, errors.Join(sweepErrs...)
}

// GetStrategies retrieves strategies matching the filter.
func (s *StrategyService) GetStrategies(filter model.StrategyFilter) ([]model.Strategy, error) {
	return s.strategyRepo.GetStrategies(filter)
}

// GetStrategy retrieves a single strategy by its ID.
func (s *StrategyService) GetStrategy(strategyID string) (model.Strategy, error) {
	return s.strategyRepo.GetStrategy(strategyID)
}

// refreshAggregates recomputes every derived field on a strategy from live
// leg state, including the denormalized legs cache. The strategy becomes
// terminal only when every leg has a terminal status; its realized P&L then
// equals the sum of its legs'.
func refreshAggregates(strategy *model.Strategy, legs []model.Position) {
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })

	strategy.Legs = make([]model.StrategyLeg, len(legs))
	strategy.TotalOpeningCost = 0
	strategy.TotalClosingProceeds = 0
	strategy.RealizedPL = 0
	strategy.UnrealizedPL = 0

	allTerminal := true
	allExpired := true
	anyAssigned := false
	var latestClose time.Time

	for i, leg := range legs {
		strategy.Legs[i] = model.StrategyLeg{
			PositionID:     leg.ID,
			Symbol:         leg.Symbol,
			AssetType:      leg.AssetType,
			OptionType:     leg.OptionType,
			StrikePrice:    leg.StrikePrice,
			ExpirationDate: leg.ExpirationDate,
			Side:           leg.Side,
			Quantity:       leg.OpeningQuantity,
			OpeningPrice:   leg.AverageOpeningPrice,
		}

		strategy.TotalOpeningCost += leg.TotalCostBasis
		strategy.TotalClosingProceeds += leg.TotalClosingAmount
		strategy.RealizedPL += leg.RealizedPL
		strategy.UnrealizedPL += leg.UnrealizedPL

		if !leg.Status.Terminal() {
			allTerminal = false
			continue
		}
		if leg.Status != model.PositionExpired {
			allExpired = false
		}
		if leg.Status == model.PositionAssigned || leg.Status == model.PositionExercised {
			anyAssigned = true
		}
		if leg.ClosedAt.After(latestClose) {
			latestClose = leg.ClosedAt
		}
	}

	switch {
	case !allTerminal:
		strategy.Status = model.StrategyOpen
		strategy.ClosedAt = time.Time{}
	case allExpired:
		strategy.Status = model.StrategyExpired
		strategy.ClosedAt = latestClose
	case anyAssigned:
		strategy.Status = model.StrategyAssigned
		strategy.ClosedAt = latestClose
	default:
		strategy.Status = model.StrategyClosed
		strategy.ClosedAt = latestClose
	}
}
