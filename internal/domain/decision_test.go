package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

func TestDecision_Clamped_LowConfidenceNeverActs(t *testing.T) {
	d := domain.Decision{Act: true, SpendFraction: 0.5, Confidence: 59}
	assert.False(t, d.Clamped().Act)

	d.Confidence = domain.ConfidenceFloor
	assert.True(t, d.Clamped().Act)
}

func TestDecision_Clamped_FractionBounds(t *testing.T) {
	d := domain.Decision{Act: true, SpendFraction: 1.8, Confidence: 90}
	assert.InDelta(t, 1.0, d.Clamped().SpendFraction, 1e-9)

	d.SpendFraction = -0.2
	clamped := d.Clamped()
	assert.Zero(t, clamped.SpendFraction)
	assert.False(t, clamped.Act, "zero fraction cannot act")
}

func TestMode_ProfileFallback(t *testing.T) {
	assert.Equal(t, "Standard", domain.Mode("bogus").Profile().Name)
	assert.Equal(t, "Aggressive", domain.ModeAggressive.Profile().Name)
	assert.False(t, domain.Mode("bogus").Valid())
	assert.True(t, domain.ModeConservative.Valid())
}

func TestModeProfiles_Tunables(t *testing.T) {
	assert.InDelta(t, 5, domain.Profiles[domain.ModeStandard].DipThresholdPct, 1e-9)
	assert.InDelta(t, 50, domain.Profiles[domain.ModeStandard].MaxSpendPct, 1e-9)
	assert.InDelta(t, 3, domain.Profiles[domain.ModeAggressive].DipThresholdPct, 1e-9)
	assert.InDelta(t, 75, domain.Profiles[domain.ModeAggressive].MaxSpendPct, 1e-9)
	assert.InDelta(t, 10, domain.Profiles[domain.ModeConservative].DipThresholdPct, 1e-9)
	assert.InDelta(t, 30, domain.Profiles[domain.ModeConservative].MaxSpendPct, 1e-9)
}
