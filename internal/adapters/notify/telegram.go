package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

const telegramRetries = 2

// Telegram implements ports.Notifier over the Telegram Bot API.
type Telegram struct {
	token  string
	chatID string
	http   *http.Client
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify formats the cycle result as HTML and sends it with a small
// internal retry. Errors are returned but callers treat them as
// best-effort.
func (t *Telegram) Notify(ctx context.Context, account domain.ManagedAccount, result domain.CycleResult) error {
	return t.sendWithRetry(ctx, formatMessage(account, result))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *Telegram) sendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	for attempt := 0; attempt <= telegramRetries; attempt++ {
		if err := t.send(ctx, text); err != nil {
			lastErr = err
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			slog.Warn("notify: telegram send failed",
				"attempt", attempt+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("notify.Telegram: %d attempts exhausted: %w", telegramRetries+1, lastErr)
}

func formatMessage(account domain.ManagedAccount, result domain.CycleResult) string {
	switch result.Status {
	case domain.CycleSuccess:
		return fmt.Sprintf(
			"🔥 <b>Buyback &amp; Burn</b>\n"+
				"Account: <code>%s</code>\n"+
				"Spent: <b>%.4f SOL</b>\n"+
				"Burned: <b>%.2f tokens</b>\n"+
				"Confidence: %d%%\n"+
				"%s\n"+
				"<a href=\"https://solscan.io/tx/%s\">View burn</a>",
			account.ID, result.SpendSOL, result.BurnedAmount,
			result.Confidence, result.Rationale, result.BurnSignature)
	case domain.CyclePartial:
		return fmt.Sprintf(
			"⚠️ <b>Partial cycle</b>\n"+
				"Account: <code>%s</code>\n"+
				"Spent: %.4f SOL, <b>%.2f tokens held unburned</b>\n"+
				"Cause: %s\n"+
				"<a href=\"https://solscan.io/tx/%s\">View swap</a>",
			account.ID, result.SpendSOL, result.HeldBalance,
			result.Err, result.SwapSignature)
	case domain.CycleFailed:
		return fmt.Sprintf(
			"❌ <b>Cycle failed</b>\n"+
				"Account: <code>%s</code>\n"+
				"Cause: %s",
			account.ID, result.Err)
	default:
		return fmt.Sprintf(
			"⏸ Account <code>%s</code> skipped: %s",
			account.ID, result.Rationale)
	}
}
