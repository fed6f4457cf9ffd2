package model

import "time"

// AssetClassBreakdown is the per-asset-class slice of a portfolio snapshot.
type AssetClassBreakdown struct {
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPL  float64 `json:"unrealizedPl"`
	RealizedPL    float64 `json:"realizedPl"`
	PositionCount int     `json:"positionCount"`
}

// PortfolioSnapshot is a point-in-time rollup of all positions plus the cash
// ledger, one row per (user, date). Rows are created/overwritten by upsert and
// never hand-edited.
//
// PortfolioValue = NetCashFlow + TotalMarketValue. StaleSymbols lists open
// positions that were valued from their last stored unrealized P&L because no
// live quote resolved.
type PortfolioSnapshot struct {
	ID                string                            `json:"id"`
	UserID            string                            `json:"userId"`
	SnapshotDate      time.Time                         `json:"snapshotDate"`
	PortfolioValue    float64                           `json:"portfolioValue"`
	NetCashFlow       float64                           `json:"netCashFlow"`
	TotalMarketValue  float64                           `json:"totalMarketValue"`
	TotalRealizedPL   float64                           `json:"totalRealizedPl"`
	TotalUnrealizedPL float64                           `json:"totalUnrealizedPl"`
	Breakdown         map[AssetType]AssetClassBreakdown `json:"breakdown"`
	StaleSymbols      []string                          `json:"staleSymbols,omitempty"`
	CalculatedAt      time.Time                         `json:"calculatedAt"`
}
