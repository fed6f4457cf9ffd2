package model

import "time"

// StrategyType classifies a group of option legs opened together.
type StrategyType string

// Recognized strategy shapes, from single legs to four-leg structures.
const (
	StrategySingleOption   StrategyType = "single_option"
	StrategyCoveredCall    StrategyType = "covered_call"
	StrategyCashSecuredPut StrategyType = "cash_secured_put"
	StrategyVerticalSpread StrategyType = "vertical_spread"
	StrategyCalendarSpread StrategyType = "calendar_spread"
	StrategyDiagonalSpread StrategyType = "diagonal_spread"
	StrategyStraddle       StrategyType = "straddle"
	StrategyStrangle       StrategyType = "strangle"
	StrategyIronCondor     StrategyType = "iron_condor"
	StrategyIronButterfly  StrategyType = "iron_butterfly"
	StrategyCustom         StrategyType = "custom"
)

// Vertical spread variants, derived from leg type and which strike is long.
const (
	VariantBullCall = "bull_call"
	VariantBearCall = "bear_call"
	VariantBullPut  = "bull_put"
	VariantBearPut  = "bear_put"
)

// StrategyStatus is the aggregate lifecycle state of a strategy. It becomes
// terminal only when every referenced position leg has a terminal status.
type StrategyStatus string

const (
	StrategyOpen     StrategyStatus = "open"
	StrategyClosed   StrategyStatus = "closed"
	StrategyExpired  StrategyStatus = "expired"
	StrategyAssigned StrategyStatus = "assigned"
)

// Terminal returns true if the status represents a fully-closed strategy.
func (s StrategyStatus) Terminal() bool {
	return s != StrategyOpen && s != ""
}

// StrategyLeg is a denormalized snapshot of one position leg, stored on the
// strategy row for display. It is strictly a cache: recomputed from live
// positions on every mutation and never the source of truth for P&L.
type StrategyLeg struct {
	PositionID     string       `json:"positionId"`
	Symbol         string       `json:"symbol"`
	AssetType      AssetType    `json:"assetType"`
	OptionType     OptionType   `json:"optionType,omitempty"`
	StrikePrice    float64      `json:"strikePrice,omitempty"`
	ExpirationDate time.Time    `json:"expirationDate,omitzero"`
	Side           PositionSide `json:"side"`
	Quantity       float64      `json:"quantity"`
	OpeningPrice   float64      `json:"openingPrice"`
}

// Strategy is a named grouping of position legs opened together on one
// underlying. It does not own its legs' lifecycle; all aggregates are derived
// and may be recomputed idempotently from current position state.
//
// TotalOpeningCost is sign-preserved: negative = net debit paid, positive =
// net credit received. MaxRisk/MaxProfit are nil where unbounded or where the
// shape is unrecognized (custom).
type Strategy struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"userId"`
	UnderlyingSymbol     string         `json:"underlyingSymbol"`
	StrategyType         StrategyType   `json:"strategyType"`
	Variant              string         `json:"variant,omitempty"`
	Legs                 []StrategyLeg  `json:"legs"`
	TotalOpeningCost     float64        `json:"totalOpeningCost"`
	TotalClosingProceeds float64        `json:"totalClosingProceeds"`
	RealizedPL           float64        `json:"realizedPl"`
	UnrealizedPL         float64        `json:"unrealizedPl"`
	Status               StrategyStatus `json:"status"`
	MaxRisk              *float64       `json:"maxRisk,omitempty"`
	MaxProfit            *float64       `json:"maxProfit,omitempty"`
	BreakevenPoints      []float64      `json:"breakevenPoints,omitempty"`
	Confidence           float64        `json:"confidence"`
	OpenedAt             time.Time      `json:"openedAt"`
	ClosedAt             time.Time      `json:"closedAt,omitzero"`
	CreatedAt            time.Time      `json:"createdAt,omitempty"`
	UpdatedAt            time.Time      `json:"updatedAt,omitempty"`
}

// StrategyFilter narrows strategy queries for the read API.
type StrategyFilter struct {
	UserID           string
	Status           StrategyStatus
	UnderlyingSymbol string
}
