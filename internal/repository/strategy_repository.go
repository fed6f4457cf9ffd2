package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// StrategyRepository provides data access methods for the strategy table.
// The legs column is a denormalized display cache; live position rows remain
// the source of truth for P&L.
type StrategyRepository struct {
	db *sql.DB
}

// NewStrategyRepository creates a new StrategyRepository with the provided database connection.
func NewStrategyRepository(db *sql.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

const strategyColumns = `
	id, user_id, underlying_symbol, strategy_type, variant, legs,
	total_opening_cost, total_closing_proceeds, realized_pl, unrealized_pl,
	status, max_risk, max_profit, breakeven_points, confidence, opened_at,
	closed_at, created_at, updated_at`

// UpsertStrategy inserts or fully replaces a strategy row. Strategies are
// derived aggregates recomputed from live positions, so replacing the whole
// row keeps the detector idempotent.
func (r *StrategyRepository) UpsertStrategy(ctx context.Context, s *model.Strategy) error {
	legs, err := json.Marshal(s.Legs)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy legs: %w", err)
	}

	var breakevens any
	if len(s.BreakevenPoints) > 0 {
		data, err := json.Marshal(s.BreakevenPoints)
		if err != nil {
			return fmt.Errorf("failed to marshal breakeven points: %w", err)
		}
		breakevens = string(data)
	}

	var maxRisk, maxProfit any
	if s.MaxRisk != nil {
		maxRisk = *s.MaxRisk
	}
	if s.MaxProfit != nil {
		maxProfit = *s.MaxProfit
	}

	var closedAt any
	if !s.ClosedAt.IsZero() {
		closedAt = s.ClosedAt.Format("2006-01-02")
	}

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO strategy (` + strategyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			strategy_type = excluded.strategy_type,
			variant = excluded.variant,
			legs = excluded.legs,
			total_opening_cost = excluded.total_opening_cost,
			total_closing_proceeds = excluded.total_closing_proceeds,
			realized_pl = excluded.realized_pl,
			unrealized_pl = excluded.unrealized_pl,
			status = excluded.status,
			max_risk = excluded.max_risk,
			max_profit = excluded.max_profit,
			breakeven_points = excluded.breakeven_points,
			confidence = excluded.confidence,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.UnderlyingSymbol,
		string(s.StrategyType),
		nullString(s.Variant),
		string(legs),
		s.TotalOpeningCost,
		s.TotalClosingProceeds,
		s.RealizedPL,
		s.UnrealizedPL,
		string(s.Status),
		maxRisk,
		maxProfit,
		breakevens,
		s.Confidence,
		s.OpenedAt.Format("2006-01-02"),
		closedAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert strategy %s: %w", s.ID, err)
	}

	return nil
}

// GetStrategies retrieves strategies matching the filter, sorted by id.
func (r *StrategyRepository) GetStrategies(filter model.StrategyFilter) ([]model.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM strategy
		WHERE user_id = ?
	`
	args := []any{filter.UserID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.UnderlyingSymbol != "" {
		query += ` AND underlying_symbol = ?`
		args = append(args, filter.UnderlyingSymbol)
	}

	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy table: %w", err)
	}
	defer rows.Close()

	strategies := []model.Strategy{}
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy table: %w", err)
	}

	return strategies, nil
}

// GetStrategy retrieves a single strategy by its ID.
func (r *StrategyRepository) GetStrategy(strategyID string) (model.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM strategy
		WHERE id = ?
	`

	rows, err := r.db.Query(query, strategyID)
	if err != nil {
		return model.Strategy{}, fmt.Errorf("failed to query strategy table: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Strategy{}, fmt.Errorf("error iterating strategy table: %w", err)
		}
		return model.Strategy{}, apperrors.ErrStrategyNotFound
	}

	return scanStrategy(rows)
}

// GetStrategyIDsByUser returns all strategy IDs for a user. Used by the
// standalone recompute/repair operation.
func (r *StrategyRepository) GetStrategyIDsByUser(userID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM strategy WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy table: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan strategy id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy table: %w", err)
	}

	return ids, nil
}

func scanStrategy(rows *sql.Rows) (model.Strategy, error) {
	var s model.Strategy
	var openedAtStr, createdAtStr, updatedAtStr, legsStr string
	var variantStr, closedAtStr, breakevensStr sql.NullString
	var maxRisk, maxProfit sql.NullFloat64

	err := rows.Scan(
		&s.ID,
		&s.UserID,
		&s.UnderlyingSymbol,
		&s.StrategyType,
		&variantStr,
		&legsStr,
		&s.TotalOpeningCost,
		&s.TotalClosingProceeds,
		&s.RealizedPL,
		&s.UnrealizedPL,
		&s.Status,
		&maxRisk,
		&maxProfit,
		&breakevensStr,
		&s.Confidence,
		&openedAtStr,
		&closedAtStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return model.Strategy{}, fmt.Errorf("failed to scan strategy table results: %w", err)
	}

	s.OpenedAt, err = ParseTime(openedAtStr)
	if err != nil || s.OpenedAt.IsZero() {
		return model.Strategy{}, fmt.Errorf("failed to parse opened_at: %w", err)
	}

	s.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return model.Strategy{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	s.UpdatedAt, err = ParseTime(updatedAtStr)
	if err != nil {
		return model.Strategy{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	if closedAtStr.Valid && closedAtStr.String != "" {
		s.ClosedAt, err = ParseTime(closedAtStr.String)
		if err != nil {
			return model.Strategy{}, fmt.Errorf("failed to parse closed_at: %w", err)
		}
	}

	if variantStr.Valid {
		s.Variant = variantStr.String
	}
	if maxRisk.Valid {
		s.MaxRisk = &maxRisk.Float64
	}
	if maxProfit.Valid {
		s.MaxProfit = &maxProfit.Float64
	}

	if err := json.Unmarshal([]byte(legsStr), &s.Legs); err != nil {
		return model.Strategy{}, fmt.Errorf("failed to unmarshal strategy legs: %w", err)
	}

	if breakevensStr.Valid && breakevensStr.String != "" {
		if err := json.Unmarshal([]byte(breakevensStr.String), &s.BreakevenPoints); err != nil {
			return model.Strategy{}, fmt.Errorf("failed to unmarshal breakeven points: %w", err)
		}
	}

	return s, nil
}
