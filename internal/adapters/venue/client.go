// Package venue executes swaps, burns, fee claims, and transfers
// through a trade API that builds transactions server side. The wallet
// signs locally; the private key never leaves the process.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

const (
	defaultBase = "https://pumpportal.fun/api"

	tradeRatePerSec = 2
	requestTimeout  = 15 * time.Second
)

// apiClient talks to the trade API. It never retries: transient
// failures are classified and retried by the caller, which knows
// whether funds are already in flight.
type apiClient struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

func newAPIClient(base string) *apiClient {
	if base == "" {
		base = defaultBase
	}
	return &apiClient{
		http:    &http.Client{Timeout: requestTimeout},
		base:    base,
		limiter: rate.NewLimiter(tradeRatePerSec, 2),
	}
}

// tradeRequest is the payload for the trade-local endpoint. Amounts
// are denominated in SOL when DenominatedInSol is "true", in tokens
// otherwise.
type tradeRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"` // buy | sell | collectCreatorFee
	Mint             string  `json:"mint,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	DenominatedInSol string  `json:"denominatedInSol,omitempty"`
	SlippageBps      int     `json:"slippageBps,omitempty"`
	PriorityFee      float64 `json:"priorityFee,omitempty"`
	Pool             string  `json:"pool,omitempty"`
}

// buildTransaction asks the API to build an unsigned transaction and
// returns the serialized wire bytes.
func (c *apiClient) buildTransaction(ctx context.Context, req tradeRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("venue: rate limiter: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("venue: marshal trade request: %w", err)
	}

	url := c.base + "/trade-local"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("venue: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("venue: %w: read response: %v", domain.ErrTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("venue: %w: status %d", domain.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue: trade API status %d: %s", resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("venue: trade API returned empty transaction")
	}

	return raw, nil
}

type accruedFeesResponse struct {
	CreatorFeeSOL float64 `json:"creatorFeeSol"`
}

// accruedFees returns the unclaimed creator fees for the address.
func (c *apiClient) accruedFees(ctx context.Context, address string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("venue: rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/fees?address=%s", c.base, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("venue: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return 0, fmt.Errorf("venue: %w: status %d", domain.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("venue: fees API status %d: %s", resp.StatusCode, string(body))
	}

	var out accruedFeesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("venue: decode fees response: %w", err)
	}
	return out.CreatorFeeSOL, nil
}

// classifyTransportErr maps network-level failures onto the transient
// sentinel so the engine can decide whether a retry is safe.
func classifyTransportErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("venue: %w: timeout: %v", domain.ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("venue: %w: deadline: %v", domain.ErrTransient, err)
	}
	return fmt.Errorf("venue: %w: %v", domain.ErrTransient, err)
}
