// Package dexscreener implements the market oracle against the
// DexScreener public API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

const (
	defaultBase = "https://api.dexscreener.com/latest/dex"

	// Public endpoints allow 300 req/min. Run at 60% of that.
	tokensRatePerSec = 3

	requestTimeout = 5 * time.Second

	// Market cap at which a launchpad token graduates to a real pool.
	graduationMarketCapUSD = 69_000
)

// Client fetches market snapshots from DexScreener. Requests are
// single-shot: a failed fetch is reported upward and the cycle decides
// what to do with it.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient creates a Client against the given base URL. An empty base
// uses the production API.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		base:    base,
		limiter: rate.NewLimiter(tokensRatePerSec, 3),
	}
}

type pairResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID     string  `json:"chainId"`
	DexID       string  `json:"dexId"`
	PriceUSD    string  `json:"priceUsd"`
	PriceChange changes `json:"priceChange"`
	Volume      volumes `json:"volume"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

type changes struct {
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type volumes struct {
	H24 float64 `json:"h24"`
}

// Fetch returns the current market snapshot for the given mint. When
// DexScreener lists several pairs for the token, the one with the most
// liquidity wins. Returns domain.ErrSnapshotNotFound when no pair is
// listed.
func (c *Client) Fetch(ctx context.Context, assetMint string) (domain.MarketSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/tokens/%s", c.base, assetMint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: %s: %w", assetMint, domain.ErrSnapshotNotFound)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: %w: status %d", domain.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: status %d: %s", resp.StatusCode, string(body))
	}

	var pr pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: decode response: %w", err)
	}
	if len(pr.Pairs) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: %s: %w", assetMint, domain.ErrSnapshotNotFound)
	}

	return toSnapshot(assetMint, bestPair(pr.Pairs))
}

// bestPair picks the pair with the deepest liquidity.
func bestPair(pairs []pair) pair {
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

func toSnapshot(assetMint string, p pair) (domain.MarketSnapshot, error) {
	// priceUsd is absent for some listings; present but malformed means
	// the payload cannot be trusted for a trade decision.
	var price float64
	if p.PriceUSD != "" {
		var err error
		price, err = strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("dexscreener.Fetch: parse priceUsd %q: %w", p.PriceUSD, err)
		}
	}

	mcap := p.MarketCap
	if mcap == 0 {
		mcap = p.FDV
	}

	progress := 0.0
	if mcap > 0 {
		progress = mcap / graduationMarketCapUSD * 100
		if progress > 100 {
			progress = 100
		}
	}

	// A token on a real AMM pool has left the launchpad curve.
	graduated := (p.DexID != "" && p.DexID != "pumpfun") || progress >= 100

	return domain.MarketSnapshot{
		AssetMint:      assetMint,
		PriceUSD:       price,
		PriceChange1h:  p.PriceChange.H1,
		PriceChange6h:  p.PriceChange.H6,
		PriceChange24h: p.PriceChange.H24,
		Volume24h:      p.Volume.H24,
		LiquidityUSD:   p.Liquidity.USD,
		MarketCapUSD:   mcap,
		CurveProgress:  progress,
		Graduated:      graduated,
		FetchedAt:      time.Now().UTC(),
	}, nil
}
