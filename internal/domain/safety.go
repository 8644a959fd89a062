package domain

// Pure trade sizing guard, no I/O.
//
// Bonding-curve tokens have algorithmic liquidity that scales with
// cumulative volume: a buy that would be noise on a graduated pool can
// move a young curve double digits. The guard caps the spend to a small
// absolute ceiling on thin venues and widens slippage tolerance to match
// the price-impact regime.

const (
	// ThinVenueCapSOL is the absolute per-trade ceiling while a token is
	// still on its bonding curve, independent of account balance.
	ThinVenueCapSOL = 0.5

	// minThinVenueCapSOL bounds how far the early-curve scaling can
	// shrink the ceiling.
	minThinVenueCapSOL = 0.1

	// earlyCurveScalePct: below this progress the flat ceiling scales
	// down linearly with progress; the curve is too shallow for even
	// the standard cap.
	earlyCurveScalePct = 25

	// Slippage tolerances in basis points per liquidity regime.
	SlippageEarlyCurveBps = 1000 // first half of the curve
	SlippageLateCurveBps  = 700  // second half, still pre-graduation
	SlippageGraduatedBps  = 300  // regular pool
	SlippageDefaultBps    = 500  // curve state unknown

	// lateCurveProgressPct splits the curve into the two slippage bands.
	lateCurveProgressPct = 50
)

// MaxSafeSpend caps a requested spend to what the venue can absorb and
// returns the slippage tolerance for the trade. The capped amount is
// never larger than requested, and thin-venue slippage is always at
// least the graduated-venue slippage.
func MaxSafeSpend(snap MarketSnapshot, requestedSOL float64) (cappedSOL float64, slippageBps int) {
	if requestedSOL <= 0 {
		return 0, SlippageDefaultBps
	}

	if !snap.ThinVenue() {
		return requestedSOL, SlippageGraduatedBps
	}

	ceiling := ThinVenueCapSOL
	if snap.CurveProgress < earlyCurveScalePct {
		ceiling = ThinVenueCapSOL * snap.CurveProgress / earlyCurveScalePct
		if ceiling < minThinVenueCapSOL {
			ceiling = minThinVenueCapSOL
		}
	}
	if requestedSOL < ceiling {
		ceiling = requestedSOL
	}

	if snap.CurveProgress < lateCurveProgressPct {
		return ceiling, SlippageEarlyCurveBps
	}
	return ceiling, SlippageLateCurveBps
}
