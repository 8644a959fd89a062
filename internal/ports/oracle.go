package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// OracleClient fetches current market data for a token.
type OracleClient interface {
	// Fetch returns the freshest snapshot for the mint. Returns
	// domain.ErrSnapshotNotFound when the oracle knows no pairs for it;
	// never retries; retry policy belongs to the orchestrator.
	Fetch(ctx context.Context, assetMint string) (domain.MarketSnapshot, error)
}
