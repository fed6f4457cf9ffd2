package service

import (
	"math"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// Pure P&L arithmetic shared by the lot matcher, the strategy detector, and
// the snapshotter. All functions take explicit inputs and touch no state so
// every caller prices a leg the exact same way.

// RealizedLeg computes the realized P&L for one FIFO match.
//
// For a long position, profit is made when the closing price exceeds the
// opening price; for a short position the sign flips. Fees are already
// embedded in price/amount by the import layer.
func RealizedLeg(openPrice, closePrice, quantity, multiplier float64, isLong bool) float64 {
	direction := 1.0
	if !isLong {
		direction = -1.0
	}
	return (closePrice - openPrice) * quantity * multiplier * direction
}

// UnrealizedLeg computes the mark-to-market P&L for an open position from a
// live price. For a long position this is market value minus the cash paid
// (|costBasis|); for a short position it is the credit received minus what it
// would cost to buy back.
func UnrealizedLeg(currentPrice, quantity, multiplier, costBasis float64, isLong bool) float64 {
	marketValue := quantity * multiplier * currentPrice
	if isLong {
		return marketValue - math.Abs(costBasis)
	}
	return math.Abs(costBasis) - marketValue
}

// MarketValue computes the signed portfolio-value contribution of an open
// position given a live price and its current unrealized P&L.
//
// Asset-specific rules:
//   - stock/crypto: quantity x price, negated for a short position
//   - option: quantity x multiplier x price; long options are assets, short
//     options are liabilities, so short is negated
//   - futures: only the unrealized P&L contributes; margin-based instruments
//     sink no principal into market value
func MarketValue(assetType model.AssetType, side model.PositionSide, quantity, currentPrice, unrealizedPL float64) float64 {
	if assetType == model.AssetFutures {
		return unrealizedPL
	}

	value := quantity * assetType.Multiplier() * currentPrice
	if side == model.SideShort {
		return -value
	}
	return value
}

// StaleMarketValue approximates the portfolio-value contribution of an open
// position when no live quote resolves, from its cost basis and last stored
// unrealized P&L. Degrades gracefully per the quote-unavailable policy; the
// snapshot flags the symbol as stale.
func StaleMarketValue(assetType model.AssetType, side model.PositionSide, costBasis, unrealizedPL float64) float64 {
	if assetType == model.AssetFutures {
		return unrealizedPL
	}

	// Invert the UnrealizedLeg identities: for long, mv = |cb| + upl;
	// for short the position is a liability worth -(|cb| - upl).
	if side == model.SideShort {
		return -(math.Abs(costBasis) - unrealizedPL)
	}
	return math.Abs(costBasis) + unrealizedPL
}

// roundCents rounds a dollar amount to the cent. Snapshots must foot to the
// cent against the cash ledger, so rounding happens once at the aggregate
// edges, never inside the per-leg arithmetic.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
