package service

import (
	"math"
	"sort"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// classification is the outcome of pattern-matching a leg group.
type classification struct {
	strategyType model.StrategyType
	variant      string
	confidence   float64
}

// Confidence recorded with each classification. Recognized shapes are exact
// pattern matches; custom means no rule fully matched and the grouping is a
// best guess, recorded but never treated as an error.
const (
	confidenceExact = 1.0
	confidenceLoose = 0.25
)

// classifyLegs applies the pattern rules in priority order; the first full
// match wins. stocks carries the user's positions on the same underlying so
// single short calls can be recognized as covered.
func classifyLegs(legs []model.Position, stocks []model.Position) classification {
	switch len(legs) {
	case 1:
		return classifySingle(legs[0], stocks)
	case 2:
		return classifyPair(legs[0], legs[1])
	case 4:
		if c, ok := classifyFourLeg(legs); ok {
			return c
		}
	}
	return classification{strategyType: model.StrategyCustom, confidence: confidenceLoose}
}

func classifySingle(leg model.Position, stocks []model.Position) classification {
	if leg.Side == model.SideShort {
		switch leg.OptionType {
		case model.OptionCall:
			for _, stock := range stocks {
				if stock.Side == model.SideLong && !stock.Status.Terminal() {
					return classification{strategyType: model.StrategyCoveredCall, confidence: confidenceExact}
				}
			}
		case model.OptionPut:
			return classification{strategyType: model.StrategyCashSecuredPut, confidence: confidenceExact}
		}
	}
	return classification{strategyType: model.StrategySingleOption, confidence: confidenceExact}
}

func classifyPair(a, b model.Position) classification {
	sameType := a.OptionType == b.OptionType
	sameStrike := a.StrikePrice == b.StrikePrice
	sameExpiration := a.ExpirationDate.Equal(b.ExpirationDate)
	oppositeSides := a.Side != b.Side

	if sameType {
		switch {
		case sameExpiration && oppositeSides:
			return classification{
				strategyType: model.StrategyVerticalSpread,
				variant:      verticalVariant(a, b),
				confidence:   confidenceExact,
			}
		case sameStrike && !sameExpiration:
			return classification{strategyType: model.StrategyCalendarSpread, confidence: confidenceExact}
		case !sameStrike && !sameExpiration:
			return classification{strategyType: model.StrategyDiagonalSpread, confidence: confidenceExact}
		}
		return classification{strategyType: model.StrategyCustom, confidence: confidenceLoose}
	}

	// One call, one put.
	if sameExpiration {
		if sameStrike {
			return classification{strategyType: model.StrategyStraddle, confidence: confidenceExact}
		}
		return classification{strategyType: model.StrategyStrangle, confidence: confidenceExact}
	}

	return classification{strategyType: model.StrategyCustom, confidence: confidenceLoose}
}

// verticalVariant sub-classifies a vertical spread: bull when the long leg's
// strike is below the short leg's, bear when above; call/put from leg type.
func verticalVariant(a, b model.Position) string {
	long, short := a, b
	if a.Side == model.SideShort {
		long, short = b, a
	}

	bull := long.StrikePrice < short.StrikePrice
	if long.OptionType == model.OptionCall {
		if bull {
			return model.VariantBullCall
		}
		return model.VariantBearCall
	}
	if bull {
		return model.VariantBullPut
	}
	return model.VariantBearPut
}

// classifyFourLeg recognizes iron condors and iron butterflies: two calls and
// two puts on one expiration, one long and one short of each type, with the
// short strikes sitting inside the long wings.
func classifyFourLeg(legs []model.Position) (classification, bool) {
	var calls, puts []model.Position
	for _, leg := range legs {
		switch leg.OptionType {
		case model.OptionCall:
			calls = append(calls, leg)
		case model.OptionPut:
			puts = append(puts, leg)
		}
	}
	if len(calls) != 2 || len(puts) != 2 {
		return classification{}, false
	}

	expiration := legs[0].ExpirationDate
	for _, leg := range legs[1:] {
		if !leg.ExpirationDate.Equal(expiration) {
			return classification{}, false
		}
	}

	shortCall, longCall, ok := splitSides(calls)
	if !ok {
		return classification{}, false
	}
	shortPut, longPut, ok := splitSides(puts)
	if !ok {
		return classification{}, false
	}

	// Short strikes inside the wings.
	if !(longPut.StrikePrice < shortPut.StrikePrice &&
		shortPut.StrikePrice <= shortCall.StrikePrice &&
		shortCall.StrikePrice < longCall.StrikePrice) {
		return classification{}, false
	}

	strategyType := model.StrategyIronCondor
	if shortPut.StrikePrice == shortCall.StrikePrice {
		strategyType = model.StrategyIronButterfly
	}

	return classification{strategyType: strategyType, confidence: confidenceExact}, true
}

// splitSides returns the short and long leg of a same-type pair.
func splitSides(pair []model.Position) (short, long model.Position, ok bool) {
	if pair[0].Side == pair[1].Side {
		return model.Position{}, model.Position{}, false
	}
	if pair[0].Side == model.SideShort {
		return pair[0], pair[1], true
	}
	return pair[1], pair[0], true
}

// strategyRisk holds the closed-form risk metrics for a recognized shape.
// Nil pointers mean unbounded or not computable; custom shapes leave all
// three empty rather than guessing.
type strategyRisk struct {
	maxRisk    *float64
	maxProfit  *float64
	breakevens []float64
}

// riskMetrics computes max risk, max profit, and breakeven points from strike
// widths and the sign-preserved net opening cost (negative = debit paid,
// positive = credit received).
func riskMetrics(c classification, legs []model.Position, netCost float64) strategyRisk {
	contracts := minQuantity(legs)
	if contracts <= 0 {
		return strategyRisk{}
	}
	notionalPerPoint := contracts * model.AssetOption.Multiplier()
	perShare := math.Abs(netCost) / notionalPerPoint

	switch c.strategyType {
	case model.StrategyVerticalSpread:
		return verticalRisk(legs, netCost, notionalPerPoint, perShare)
	case model.StrategyIronCondor, model.StrategyIronButterfly:
		return condorRisk(legs, netCost, notionalPerPoint, perShare)
	case model.StrategyStraddle, model.StrategyStrangle:
		return straddleRisk(legs, netCost, perShare)
	case model.StrategyCashSecuredPut:
		return cashSecuredPutRisk(legs[0], netCost, notionalPerPoint, perShare)
	case model.StrategySingleOption:
		return singleOptionRisk(legs[0], netCost, notionalPerPoint, perShare)
	default:
		// covered_call needs the stock leg's basis; calendar/diagonal depend
		// on volatility across expirations; custom shapes are unknown.
		return strategyRisk{}
	}
}

func verticalRisk(legs []model.Position, netCost, notionalPerPoint, perShare float64) strategyRisk {
	strikes := []float64{legs[0].StrikePrice, legs[1].StrikePrice}
	sort.Float64s(strikes)
	width := (strikes[1] - strikes[0]) * notionalPerPoint

	var risk strategyRisk
	if netCost > 0 {
		// Credit spread: keep the credit, risk the width beyond it.
		risk.maxProfit = ptr(netCost)
		risk.maxRisk = ptr(width - netCost)
	} else {
		risk.maxRisk = ptr(math.Abs(netCost))
		risk.maxProfit = ptr(width - math.Abs(netCost))
	}

	if legs[0].OptionType == model.OptionCall {
		risk.breakevens = []float64{roundCents(strikes[0] + perShare)}
	} else {
		risk.breakevens = []float64{roundCents(strikes[1] - perShare)}
	}
	return risk
}

func condorRisk(legs []model.Position, netCost, notionalPerPoint, perShare float64) strategyRisk {
	var shortCall, longCall, shortPut, longPut model.Position
	for _, leg := range legs {
		switch {
		case leg.OptionType == model.OptionCall && leg.Side == model.SideShort:
			shortCall = leg
		case leg.OptionType == model.OptionCall:
			longCall = leg
		case leg.Side == model.SideShort:
			shortPut = leg
		default:
			longPut = leg
		}
	}

	callWing := longCall.StrikePrice - shortCall.StrikePrice
	putWing := shortPut.StrikePrice - longPut.StrikePrice
	widerWing := math.Max(callWing, putWing) * notionalPerPoint

	return strategyRisk{
		maxProfit: ptr(netCost),
		maxRisk:   ptr(widerWing - netCost),
		breakevens: []float64{
			roundCents(shortPut.StrikePrice - perShare),
			roundCents(shortCall.StrikePrice + perShare),
		},
	}
}

func straddleRisk(legs []model.Position, netCost, perShare float64) strategyRisk {
	var callStrike, putStrike float64
	for _, leg := range legs {
		if leg.OptionType == model.OptionCall {
			callStrike = leg.StrikePrice
		} else {
			putStrike = leg.StrikePrice
		}
	}

	risk := strategyRisk{
		breakevens: []float64{
			roundCents(putStrike - perShare),
			roundCents(callStrike + perShare),
		},
	}

	if netCost < 0 {
		// Long straddle/strangle: risk capped at the debit, profit unbounded.
		risk.maxRisk = ptr(math.Abs(netCost))
	} else {
		risk.maxProfit = ptr(netCost)
	}
	return risk
}

func cashSecuredPutRisk(leg model.Position, netCost, notionalPerPoint, perShare float64) strategyRisk {
	return strategyRisk{
		maxProfit:  ptr(netCost),
		maxRisk:    ptr(leg.StrikePrice*notionalPerPoint - netCost),
		breakevens: []float64{roundCents(leg.StrikePrice - perShare)},
	}
}

func singleOptionRisk(leg model.Position, netCost, notionalPerPoint, perShare float64) strategyRisk {
	var risk strategyRisk

	if leg.Side == model.SideLong {
		risk.maxRisk = ptr(math.Abs(netCost))
		if leg.OptionType == model.OptionPut {
			risk.maxProfit = ptr(leg.StrikePrice*notionalPerPoint - math.Abs(netCost))
		}
	} else {
		risk.maxProfit = ptr(netCost)
		if leg.OptionType == model.OptionPut {
			risk.maxRisk = ptr(leg.StrikePrice*notionalPerPoint - netCost)
		}
	}

	if leg.OptionType == model.OptionCall {
		risk.breakevens = []float64{roundCents(leg.StrikePrice + perShare)}
	} else {
		risk.breakevens = []float64{roundCents(leg.StrikePrice - perShare)}
	}
	return risk
}

func minQuantity(legs []model.Position) float64 {
	if len(legs) == 0 {
		return 0
	}
	quantity := legs[0].OpeningQuantity
	for _, leg := range legs[1:] {
		if leg.OpeningQuantity < quantity {
			quantity = leg.OpeningQuantity
		}
	}
	return quantity
}

func ptr(v float64) *float64 {
	return &v
}
