package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

const (
	defaultAnthropicBase = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
	anthropicTimeout     = 30 * time.Second
)

// Anthropic delegates the buy/wait decision to a language model. Any
// failure (network, parse, refusal) degrades to a safe no-op decision:
// an unreachable model must never translate into an uncontrolled trade.
type Anthropic struct {
	http   *http.Client
	base   string
	apiKey string
	model  string
}

var _ ports.DecisionPolicy = (*Anthropic)(nil)

// NewAnthropic creates the model-backed policy.
func NewAnthropic(base, apiKey, model string) *Anthropic {
	if base == "" {
		base = defaultAnthropicBase
	}
	return &Anthropic{
		http:   &http.Client{Timeout: anthropicTimeout},
		base:   base,
		apiKey: apiKey,
		model:  model,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Decide asks the model for a structured verdict and parses it. The
// spend fraction is clamped to the profile's maximum regardless of what
// the model answers.
func (a *Anthropic) Decide(ctx context.Context, snap domain.MarketSnapshot, profile domain.ModeProfile) (domain.Decision, error) {
	text, err := a.complete(ctx, buildPrompt(snap, profile))
	if err != nil {
		slog.Warn("policy: model call failed, holding", "error", err)
		return domain.Decision{
			Act:        false,
			Confidence: 0,
			Rationale:  "model unavailable, holding",
		}, nil
	}

	decision, err := parseVerdict(text)
	if err != nil {
		slog.Warn("policy: unparseable model verdict, holding", "error", err)
		return domain.Decision{
			Act:        false,
			Confidence: 0,
			Rationale:  "unparseable model verdict, holding",
		}, nil
	}

	if maxFraction := profile.MaxSpendPct / 100; decision.SpendFraction > maxFraction {
		decision.SpendFraction = maxFraction
	}
	return decision, nil
}

func (a *Anthropic) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: 512,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return out.Content[0].Text, nil
}

func buildPrompt(snap domain.MarketSnapshot, profile domain.ModeProfile) string {
	venue := "graduated pool"
	if snap.ThinVenue() {
		venue = fmt.Sprintf("bonding curve at %.0f%% progress", snap.CurveProgress)
	}

	return fmt.Sprintf(`You advise an automated buyback-and-burn system for a token.
Decide whether NOW is a good moment to buy the token for burning.

Market data:
- Price: $%.8f
- Change 1h: %.2f%%  6h: %.2f%%  24h: %.2f%%
- Volume 24h: $%.0f
- Liquidity: $%.0f
- Market cap: $%.0f
- Venue: %s

Strategy profile: %s (%s). Dip threshold: %.1f%%. Max spend: %.0f%% of balance.

Answer in EXACTLY this format, nothing else:
DECISION: BUY or WAIT
CONFIDENCE: 0-100
AMOUNT: fraction of balance to spend, 0.0-1.0
REASONING: one sentence`,
		snap.PriceUSD,
		snap.PriceChange1h, snap.PriceChange6h, snap.PriceChange24h,
		snap.Volume24h, snap.LiquidityUSD, snap.MarketCapUSD, venue,
		profile.Name, profile.Description, profile.DipThresholdPct, profile.MaxSpendPct)
}

// parseVerdict extracts the structured lines from the model output.
func parseVerdict(text string) (domain.Decision, error) {
	var d domain.Decision
	var sawDecision bool

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "DECISION":
			d.Act = strings.EqualFold(value, "BUY")
			sawDecision = true
		case "CONFIDENCE":
			n, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
			if err != nil {
				return domain.Decision{}, fmt.Errorf("parse confidence %q: %w", value, err)
			}
			d.Confidence = n
		case "AMOUNT":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return domain.Decision{}, fmt.Errorf("parse amount %q: %w", value, err)
			}
			d.SpendFraction = f
		case "REASONING":
			d.Rationale = value
		}
	}

	if !sawDecision {
		return domain.Decision{}, fmt.Errorf("no DECISION line in %q", text)
	}
	return d, nil
}
