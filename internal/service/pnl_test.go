package service

import (
	"math"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// TestRealizedLeg tests the shared realized P&L formula.
//
// WHY: Every realized number in the system flows through this one function.
// The long/short sign convention must hold exactly: the same price move
// produces mirrored results for opposite sides.
func TestRealizedLeg(t *testing.T) {
	t.Run("long stock profit", func(t *testing.T) {
		got := RealizedLeg(150, 160, 10, 1, true)
		if got != 100 {
			t.Errorf("Expected 100, got %v", got)
		}
	})

	t.Run("long stock loss", func(t *testing.T) {
		got := RealizedLeg(150, 140, 10, 1, true)
		if got != -100 {
			t.Errorf("Expected -100, got %v", got)
		}
	})

	t.Run("short leg mirrors long leg on the same move", func(t *testing.T) {
		long := RealizedLeg(5.00, 7.00, 1, 100, true)
		short := RealizedLeg(5.00, 7.00, 1, 100, false)

		if long != 200 {
			t.Errorf("Expected long +200, got %v", long)
		}
		if short != -200 {
			t.Errorf("Expected short -200, got %v", short)
		}
		if long != -short {
			t.Errorf("Long and short results should mirror: %v vs %v", long, short)
		}
	})

	t.Run("option multiplier scales per-share move", func(t *testing.T) {
		got := RealizedLeg(2.50, 3.25, 2, 100, true)
		if math.Abs(got-150) > 1e-9 {
			t.Errorf("Expected 150, got %v", got)
		}
	})

	t.Run("fractional crypto quantity", func(t *testing.T) {
		got := RealizedLeg(40000, 42000, 0.25, 1, true)
		if got != 500 {
			t.Errorf("Expected 500, got %v", got)
		}
	})
}

// TestUnrealizedLeg tests mark-to-market P&L against a live price.
//
// WHY: The short identity (credit received minus cost to buy back) is the
// piece most often implemented wrong; a short that decays toward zero must
// show a gain.
func TestUnrealizedLeg(t *testing.T) {
	t.Run("long gain when price rises", func(t *testing.T) {
		got := UnrealizedLeg(160, 10, 1, -1500, true)
		if got != 100 {
			t.Errorf("Expected 100, got %v", got)
		}
	})

	t.Run("short gain when option decays", func(t *testing.T) {
		// Sold 1 contract at 5.00 (credit 500), now priced 2.00.
		got := UnrealizedLeg(2.00, 1, 100, 500, false)
		if got != 300 {
			t.Errorf("Expected 300, got %v", got)
		}
	})

	t.Run("short loss when option moves against", func(t *testing.T) {
		got := UnrealizedLeg(8.00, 1, 100, 500, false)
		if got != -300 {
			t.Errorf("Expected -300, got %v", got)
		}
	})

	t.Run("cost basis sign is ignored", func(t *testing.T) {
		a := UnrealizedLeg(160, 10, 1, -1500, true)
		b := UnrealizedLeg(160, 10, 1, 1500, true)
		if a != b {
			t.Errorf("Expected identical results for +/- basis, got %v and %v", a, b)
		}
	})
}

// TestMarketValue tests the asset-specific portfolio-value contribution.
//
// WHY: Futures must never contribute notional value (margin-based, no
// principal sunk) and short positions must appear as liabilities. Getting
// either wrong corrupts every snapshot total.
func TestMarketValue(t *testing.T) {
	t.Run("long stock", func(t *testing.T) {
		got := MarketValue(model.AssetStock, model.SideLong, 10, 155, 0)
		if got != 1550 {
			t.Errorf("Expected 1550, got %v", got)
		}
	})

	t.Run("short stock is a liability", func(t *testing.T) {
		got := MarketValue(model.AssetStock, model.SideShort, 10, 155, 0)
		if got != -1550 {
			t.Errorf("Expected -1550, got %v", got)
		}
	})

	t.Run("option applies contract multiplier", func(t *testing.T) {
		got := MarketValue(model.AssetOption, model.SideLong, 2, 3.50, 0)
		if got != 700 {
			t.Errorf("Expected 700, got %v", got)
		}
	})

	t.Run("futures contribute only unrealized P&L", func(t *testing.T) {
		got := MarketValue(model.AssetFutures, model.SideLong, 3, 4500, 250)
		if got != 250 {
			t.Errorf("Expected 250, got %v", got)
		}
	})
}

// TestStaleMarketValue tests the quote-unavailable fallback valuation.
//
// WHY: The fallback must agree with MarketValue when the stored unrealized
// P&L came from the same price, so a symbol flipping between fresh and stale
// does not jump in value.
func TestStaleMarketValue(t *testing.T) {
	t.Run("long agrees with fresh valuation", func(t *testing.T) {
		// 10 shares opened at 150 (basis -1500), priced 160.
		upl := UnrealizedLeg(160, 10, 1, -1500, true)
		fresh := MarketValue(model.AssetStock, model.SideLong, 10, 160, upl)
		stale := StaleMarketValue(model.AssetStock, model.SideLong, -1500, upl)

		if fresh != stale {
			t.Errorf("Fresh %v and stale %v valuations disagree", fresh, stale)
		}
	})

	t.Run("short agrees with fresh valuation", func(t *testing.T) {
		// 1 contract sold at 5.00 (credit 500), priced 2.00.
		upl := UnrealizedLeg(2.00, 1, 100, 500, false)
		fresh := MarketValue(model.AssetOption, model.SideShort, 1, 2.00, upl)
		stale := StaleMarketValue(model.AssetOption, model.SideShort, 500, upl)

		if fresh != stale {
			t.Errorf("Fresh %v and stale %v valuations disagree", fresh, stale)
		}
	})

	t.Run("futures pass through unrealized P&L", func(t *testing.T) {
		got := StaleMarketValue(model.AssetFutures, model.SideLong, 0, -120)
		if got != -120 {
			t.Errorf("Expected -120, got %v", got)
		}
	})
}
