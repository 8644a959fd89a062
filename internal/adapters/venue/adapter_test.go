package venue_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/internal/adapters/solana"
	"github.com/alejandrodnm/flywheel/internal/adapters/venue"
	"github.com/alejandrodnm/flywheel/internal/domain"
)

// fakeRPC answers the JSON-RPC methods the adapter exercises. Token
// balances are mutable so a test can script the post-swap delta.
type fakeRPC struct {
	mu            sync.Mutex
	lamports      uint64
	tokenBalances []float64 // one entry consumed per getTokenAccountsByOwner call
	sent          [][]byte
	confirmed     []string
}

func (f *fakeRPC) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()

		var result any
		switch req.Method {
		case "getBalance":
			result = map[string]any{"value": f.lamports}
		case "getTokenAccountsByOwner":
			balance := 0.0
			if len(f.tokenBalances) > 0 {
				balance = f.tokenBalances[0]
				if len(f.tokenBalances) > 1 {
					f.tokenBalances = f.tokenBalances[1:]
				}
			}
			result = map[string]any{"value": []any{
				map[string]any{"account": map[string]any{"data": map[string]any{"parsed": map[string]any{"info": map[string]any{"tokenAmount": map[string]any{"uiAmount": balance}}}}}},
			}}
		case "sendTransaction":
			raw, _ := req.Params[0].(string)
			f.sent = append(f.sent, []byte(raw))
			result = fmt.Sprintf("sig-%d", len(f.sent))
		case "getSignatureStatuses":
			sigs, _ := req.Params[0].([]any)
			if len(sigs) > 0 {
				f.confirmed = append(f.confirmed, sigs[0].(string))
			}
			result = map[string]any{"value": []any{
				map[string]any{"confirmationStatus": "confirmed", "err": nil},
			}}
		default:
			http.Error(w, "unknown method "+req.Method, http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": req.ID, "result": result,
		})
	}
}

type tradeCall struct {
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	Amount           float64 `json:"amount"`
	DenominatedInSol string  `json:"denominatedInSol"`
	SlippageBps      int     `json:"slippageBps"`
	Pool             string  `json:"pool"`
}

type fixture struct {
	adapter *venue.Adapter
	rpc     *fakeRPC
	trades  *[]tradeCall
	account domain.ManagedAccount
}

func newFixture(t *testing.T, tradeStatus int) *fixture {
	t.Helper()

	rpc := &fakeRPC{}
	rpcSrv := httptest.NewServer(rpc.handler())
	t.Cleanup(rpcSrv.Close)

	trades := &[]tradeCall{}
	tradeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trade-local":
			var call tradeCall
			require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
			*trades = append(*trades, call)
			if tradeStatus != http.StatusOK {
				w.WriteHeader(tradeStatus)
				return
			}
			// Unsigned wire bytes: one signature slot, then a message.
			tx := append([]byte{1}, make([]byte, ed25519.SignatureSize)...)
			_, _ = w.Write(append(tx, []byte("message bytes")...))
		case "/fees":
			_, _ = w.Write([]byte(`{"creatorFeeSol":0.25}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(tradeSrv.Close)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	return &fixture{
		adapter: venue.New(tradeSrv.URL, solana.NewClient(rpcSrv.URL)),
		rpc:     rpc,
		trades:  trades,
		account: domain.ManagedAccount{
			ID:        "acct-1",
			SecretKey: base58.Encode(priv),
			AssetMint: "Mint1111111111111111111111111111111111111111",
			Mode:      domain.ModeStandard,
			Active:    true,
		},
	}
}

func TestSwap_BuildsSignsSubmitsAndSettles(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.rpc.tokenBalances = []float64{1000, 51_000} // before, after

	receipt, err := f.adapter.Swap(context.Background(), f.account, f.account.AssetMint, 0.5, 700)
	require.NoError(t, err)

	assert.Equal(t, "sig-1", receipt.Signature)
	assert.InDelta(t, 50_000, receipt.AmountOut, 1e-9)

	require.Len(t, *f.trades, 1)
	call := (*f.trades)[0]
	assert.Equal(t, "buy", call.Action)
	assert.Equal(t, f.account.AssetMint, call.Mint)
	assert.InDelta(t, 0.5, call.Amount, 1e-9)
	assert.Equal(t, "true", call.DenominatedInSol)
	assert.Equal(t, 700, call.SlippageBps)

	assert.Len(t, f.rpc.sent, 1, "signed transaction submitted")
	assert.Contains(t, f.rpc.confirmed, "sig-1", "confirmation polled")
}

func TestSwap_TradeAPIOutageIsTransient(t *testing.T) {
	f := newFixture(t, http.StatusServiceUnavailable)
	f.rpc.tokenBalances = []float64{0}

	_, err := f.adapter.Swap(context.Background(), f.account, f.account.AssetMint, 0.5, 700)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Empty(t, f.rpc.sent, "nothing submitted")
}

func TestBurn_TransfersToIncinerator(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	sig, err := f.adapter.Burn(context.Background(), f.account, f.account.AssetMint, 50_000)
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sig)

	require.Len(t, *f.trades, 1)
	call := (*f.trades)[0]
	assert.Equal(t, "transfer", call.Action)
	assert.Equal(t, solana.Incinerator, call.Pool)
	assert.Equal(t, "false", call.DenominatedInSol, "burn amounts are token denominated")
	assert.InDelta(t, 50_000, call.Amount, 1e-9)
}

func TestTransferSOL(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	const treasury = "Treasury111111111111111111111111111111111111"

	sig, err := f.adapter.TransferSOL(context.Background(), f.account, treasury, 0.025)
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sig)

	require.Len(t, *f.trades, 1)
	call := (*f.trades)[0]
	assert.Equal(t, "transfer", call.Action)
	assert.Equal(t, treasury, call.Pool)
	assert.Equal(t, "true", call.DenominatedInSol)
	assert.InDelta(t, 0.025, call.Amount, 1e-9)
}

func TestClaim_CollectsAccruedFees(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	result, err := f.adapter.Claim(context.Background(), f.account)
	require.NoError(t, err)

	assert.Equal(t, "sig-1", result.Signature)
	assert.InDelta(t, 0.25, result.AmountSOL, 1e-9)

	require.Len(t, *f.trades, 1)
	assert.Equal(t, "collectCreatorFee", (*f.trades)[0].Action)
}

func TestAccrued(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	accrued, err := f.adapter.Accrued(context.Background(), f.account)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, accrued, 1e-9)
}

func TestBalance(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.rpc.lamports = 1_500_000_000

	balance, err := f.adapter.Balance(context.Background(), f.account)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, balance, 1e-9)
}

func TestSwap_BadKeyIsConfigError(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.account.SecretKey = "short"

	_, err := f.adapter.Swap(context.Background(), f.account, f.account.AssetMint, 0.5, 700)
	assert.ErrorIs(t, err, domain.ErrConfig)
}
