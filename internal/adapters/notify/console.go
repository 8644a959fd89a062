package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// Console implements ports.Notifier writing compact cycle lines to
// stdout.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify prints a one-line summary of the cycle.
func (c *Console) Notify(_ context.Context, account domain.ManagedAccount, result domain.CycleResult) error {
	now := time.Now().Format("15:04:05")

	switch result.Status {
	case domain.CycleSuccess:
		fmt.Fprintf(c.out, "[%s] %s BURN spent %.4f SOL → burned %.2f %s (conf %d) %s\n",
			now, account.ID, result.SpendSOL, result.BurnedAmount,
			shortMint(account.AssetMint), result.Confidence, result.BurnSignature)
	case domain.CyclePartial:
		fmt.Fprintf(c.out, "[%s] %s PARTIAL spent %.4f SOL, %.2f tokens held unburned: %s\n",
			now, account.ID, result.SpendSOL, result.HeldBalance, result.Err)
	case domain.CycleFailed:
		fmt.Fprintf(c.out, "[%s] %s FAILED: %s\n", now, account.ID, result.Err)
	default:
		fmt.Fprintf(c.out, "[%s] %s skip: %s\n", now, account.ID, result.Rationale)
	}
	return nil
}

// PrintReport renders an account report with its cumulative ledger and
// recent cycle history.
func (c *Console) PrintReport(account domain.ManagedAccount, ledger domain.LedgerEntry, cycles []domain.CycleResult) {
	profile := account.Mode.Profile()

	fmt.Fprintf(c.out, "\n=== ACCOUNT %s (%s) ===\n", account.ID, profile.Name)
	fmt.Fprintf(c.out, "  Owner: %s  Mint: %s  Active: %v\n", account.Owner, account.AssetMint, account.Active)
	fmt.Fprintf(c.out, "  Total spent:  %.4f SOL\n", ledger.TotalSpentSOL)
	fmt.Fprintf(c.out, "  Total burned: %.2f tokens\n", ledger.TotalBurned)
	if !ledger.LastBurnAt.IsZero() {
		fmt.Fprintf(c.out, "  Last burn:    %s\n", ledger.LastBurnAt.Format(time.RFC3339))
	}

	if len(cycles) == 0 {
		fmt.Fprintln(c.out, "\n  No cycles recorded yet.")
		return
	}

	fmt.Fprintln(c.out)
	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Status", "Claimed", "Spent", "Burned", "Conf", "Note")

	for _, r := range cycles {
		note := r.Rationale
		if r.Err != "" {
			note = r.Err
		}
		table.Append(
			r.StartedAt.Format("01-02 15:04"),
			string(r.Status),
			fmt.Sprintf("%.4f", r.ClaimedSOL),
			fmt.Sprintf("%.4f", r.SpendSOL),
			fmt.Sprintf("%.2f", r.BurnedAmount),
			fmt.Sprintf("%d", r.Confidence),
			truncate(note, 40),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

func shortMint(mint string) string {
	if len(mint) > 8 {
		return mint[:4] + ".." + mint[len(mint)-4:]
	}
	return mint
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
