package policy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/policy"
)

func anthropicServer(t *testing.T, verdict string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		resp := map[string]any{
			"content": []map[string]string{{"text": verdict}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnthropic_ParsesBuyVerdict(t *testing.T) {
	srv := anthropicServer(t, "DECISION: BUY\nCONFIDENCE: 82\nAMOUNT: 0.4\nREASONING: deep dip with steady volume")
	defer srv.Close()

	p := policy.NewAnthropic(srv.URL, "test-key", "test-model")
	d, err := p.Decide(context.Background(), snapshotWith24hChange(-9), domain.ModeStandard.Profile())
	require.NoError(t, err)

	assert.True(t, d.Act)
	assert.Equal(t, 82, d.Confidence)
	assert.InDelta(t, 0.4, d.SpendFraction, 1e-9)
	assert.Equal(t, "deep dip with steady volume", d.Rationale)
}

func TestAnthropic_ClampsAmountToProfile(t *testing.T) {
	srv := anthropicServer(t, "DECISION: BUY\nCONFIDENCE: 90\nAMOUNT: 0.95\nREASONING: all in")
	defer srv.Close()

	p := policy.NewAnthropic(srv.URL, "test-key", "test-model")
	d, err := p.Decide(context.Background(), snapshotWith24hChange(-9), domain.ModeConservative.Profile())
	require.NoError(t, err)

	// Conservative caps at 30% regardless of what the model says.
	assert.InDelta(t, 0.3, d.SpendFraction, 1e-9)
}

func TestAnthropic_WaitVerdict(t *testing.T) {
	srv := anthropicServer(t, "DECISION: WAIT\nCONFIDENCE: 70\nAMOUNT: 0.0\nREASONING: no dip")
	defer srv.Close()

	p := policy.NewAnthropic(srv.URL, "test-key", "test-model")
	d, err := p.Decide(context.Background(), snapshotWith24hChange(-1), domain.ModeStandard.Profile())
	require.NoError(t, err)
	assert.False(t, d.Act)
}

func TestAnthropic_GarbageDegradesToHold(t *testing.T) {
	srv := anthropicServer(t, "I'm sorry, I can't advise on that.")
	defer srv.Close()

	p := policy.NewAnthropic(srv.URL, "test-key", "test-model")
	d, err := p.Decide(context.Background(), snapshotWith24hChange(-9), domain.ModeStandard.Profile())
	require.NoError(t, err)

	assert.False(t, d.Act)
	assert.Zero(t, d.Confidence)
}

func TestAnthropic_ServerErrorDegradesToHold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := policy.NewAnthropic(srv.URL, "test-key", "test-model")
	d, err := p.Decide(context.Background(), snapshotWith24hChange(-9), domain.ModeStandard.Profile())
	require.NoError(t, err)

	assert.False(t, d.Act)
	assert.False(t, d.Clamped().Act)
}

func TestStatic_AlwaysActs(t *testing.T) {
	p := policy.NewStatic(0.9, "treasury fee sweep")
	d, err := p.Decide(context.Background(), domain.MarketSnapshot{}, domain.ModeStandard.Profile())
	require.NoError(t, err)

	assert.True(t, d.Act)
	assert.InDelta(t, 0.9, d.SpendFraction, 1e-9)
	assert.Equal(t, 100, d.Confidence)
	assert.True(t, d.Clamped().Act)
}
