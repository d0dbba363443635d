package core

import "github.com/nikolaydubina/fpdecimal"

// computeClearingPrice implements the auction uncrossing algorithm of
// §4.2: among the candidate prices where bid and ask queues cross, choose
// the one that maximizes executable volume; break ties first by minimum
// surplus (the unexecuted remainder on the heavier side), then by the
// side of that surplus's preferred direction relative to referencePrice
// (preferSurplusDirection), then by closeness to referencePrice, and
// finally, for two equally distant candidates, by the lower price.
//
// It is a pure function of the two sides' queued state and never mutates
// them — OrderBook.Uncross is responsible for applying the result.
func computeClearingPrice(bids, asks PriceSide, referencePrice fpdecimal.Decimal) (price fpdecimal.Decimal, volume fpdecimal.Decimal, ok bool) {
	candidates := candidatePrices(bids, asks)
	if len(candidates) == 0 {
		return fpdecimal.Zero, fpdecimal.Zero, false
	}

	cumulativeBid := cumulativeDemand(bids, candidates, Buy)
	cumulativeAsk := cumulativeDemand(asks, candidates, Sell)

	var bestPrice fpdecimal.Decimal
	var bestVolume fpdecimal.Decimal
	var bestSurplus fpdecimal.Decimal
	found := false

	for i, p := range candidates {
		bidQty := cumulativeBid[i]
		askQty := cumulativeAsk[i]

		execVolume := bidQty
		if askQty.LessThan(execVolume) {
			execVolume = askQty
		}
		if execVolume.LessThanOrEqual(fpdecimal.Zero) {
			continue
		}

		// signedSurplus > 0 means bid demand exceeds ask supply at p (a
		// buy-side surplus); < 0 means the reverse (a sell-side surplus).
		// Its sign, not just its magnitude, feeds the rule (ii) tie-break
		// below.
		signedSurplus := bidQty.Sub(askQty)
		surplus := signedSurplus
		if surplus.LessThan(fpdecimal.Zero) {
			surplus = fpdecimal.Zero.Sub(surplus)
		}

		switch {
		case !found:
			bestPrice, bestVolume, bestSurplus, found = p, execVolume, surplus, true
		case execVolume.GreaterThan(bestVolume):
			bestPrice, bestVolume, bestSurplus = p, execVolume, surplus
		case execVolume.Equal(bestVolume):
			if surplus.LessThan(bestSurplus) {
				bestPrice, bestSurplus = p, surplus
			} else if surplus.Equal(bestSurplus) {
				if winner, decided := preferSurplusDirection(bestPrice, p, signedSurplus, referencePrice); decided {
					bestPrice = winner
				} else {
					bestPrice = breakTieByDirectionAndDistance(bestPrice, p, referencePrice)
				}
			}
		}
	}

	return bestPrice, bestVolume, found
}

// preferSurplusDirection implements §4.2 tie-break rule (ii): between two
// candidates with identical executable volume and surplus magnitude,
// prefer whichever sits on the side of reference_price that the surplus
// direction favors — above it for a buy-side surplus (signedSurplus > 0),
// below it for a sell-side surplus (signedSurplus < 0). It reports
// decided == false when the surplus is exactly balanced or both
// candidates fall on the same side of reference_price, leaving rule (iii)
// (breakTieByDirectionAndDistance) to resolve the tie instead.
func preferSurplusDirection(a, b, signedSurplus, referencePrice fpdecimal.Decimal) (price fpdecimal.Decimal, decided bool) {
	if signedSurplus.Equal(fpdecimal.Zero) {
		return fpdecimal.Zero, false
	}
	wantAbove := signedSurplus.GreaterThan(fpdecimal.Zero)
	aAbove := a.GreaterThan(referencePrice)
	bAbove := b.GreaterThan(referencePrice)
	if aAbove == bAbove {
		return fpdecimal.Zero, false
	}
	if aAbove == wantAbove {
		return a, true
	}
	return b, true
}

// breakTieByDirectionAndDistance resolves an exact (volume, surplus) tie
// between two candidate prices: prefer whichever is closer to
// referencePrice, and if both are equally far from it, the lower of the
// two.
func breakTieByDirectionAndDistance(a, b, referencePrice fpdecimal.Decimal) fpdecimal.Decimal {
	da := absDiff(a, referencePrice)
	db := absDiff(b, referencePrice)
	if da.LessThan(db) {
		return a
	}
	if db.LessThan(da) {
		return b
	}
	if a.LessThanOrEqual(b) {
		return a
	}
	return b
}

func absDiff(a, b fpdecimal.Decimal) fpdecimal.Decimal {
	if a.LessThan(b) {
		return b.Sub(a)
	}
	return a.Sub(b)
}

// candidatePrices returns the union of both sides' distinct resting
// prices, since the clearing price always lies at one of them.
func candidatePrices(bids, asks PriceSide) []fpdecimal.Decimal {
	seen := map[string]fpdecimal.Decimal{}
	for _, p := range bids.Prices() {
		seen[p.String()] = p
	}
	for _, p := range asks.Prices() {
		seen[p.String()] = p
	}
	out := make([]fpdecimal.Decimal, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sortDecimalsAscending(out)
	return out
}

func sortDecimalsAscending(ds []fpdecimal.Decimal) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && ds[j].LessThan(ds[j-1]); j-- {
			ds[j], ds[j-1] = ds[j-1], ds[j]
		}
	}
}

// cumulativeDemand computes, for each candidate price, the total quantity
// willing to trade at that price or better: for bids, the sum of all
// resting quantity priced at or above the candidate; for asks, at or
// below it.
func cumulativeDemand(side PriceSide, candidates []fpdecimal.Decimal, s Side) []fpdecimal.Decimal {
	totals := make([]fpdecimal.Decimal, len(candidates))
	for i, candidate := range candidates {
		total := fpdecimal.Zero
		for _, price := range side.Prices() {
			eligible := price.GreaterThanOrEqual(candidate)
			if s == Sell {
				eligible = price.LessThanOrEqual(candidate)
			}
			if !eligible {
				continue
			}
			for _, order := range side.Orders(price) {
				total = total.Add(order.Remaining)
			}
		}
		totals[i] = total
	}
	return totals
}
