package domain

import "time"

// MarketSnapshot is the oracle's view of a token at a point in time.
// Immutable once fetched; consumers must check Stale before acting on it.
type MarketSnapshot struct {
	AssetMint      string
	PriceUSD       float64
	PriceChange1h  float64 // percent, negative = dip
	PriceChange6h  float64
	PriceChange24h float64
	Volume24h      float64
	LiquidityUSD   float64
	MarketCapUSD   float64

	// CurveProgress is how far along the bonding curve the token is,
	// 0–100. Graduated tokens trade on a regular pool and report 100.
	CurveProgress float64
	Graduated     bool

	FetchedAt time.Time
}

// Stale reports whether the snapshot is older than ttl. Memecoin prices
// move fast enough that a few-minutes-old snapshot is not a safe basis
// for a buy.
func (s MarketSnapshot) Stale(ttl time.Duration) bool {
	return time.Since(s.FetchedAt) > ttl
}

// ThinVenue reports whether the token still trades on its bonding
// curve, where liquidity scales with volume and price impact is high.
func (s MarketSnapshot) ThinVenue() bool {
	return !s.Graduated && s.CurveProgress < 100
}
