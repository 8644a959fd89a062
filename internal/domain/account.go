package domain

import "time"

// Mode is the risk profile selected by an account owner.
type Mode string

const (
	ModeStandard     Mode = "standard"
	ModeAggressive   Mode = "aggressive"
	ModeConservative Mode = "conservative"
)

// ModeProfile carries the tunables behind a Mode.
type ModeProfile struct {
	Name            string
	Description     string
	DipThresholdPct float64 // 24h drop (in %) required before buying
	MaxSpendPct     float64 // max % of available balance to spend per cycle
}

// Profiles indexes the built-in mode profiles.
var Profiles = map[Mode]ModeProfile{
	ModeStandard: {
		Name:            "Standard",
		Description:     "buys on significant dips",
		DipThresholdPct: 5,
		MaxSpendPct:     50,
	},
	ModeAggressive: {
		Name:            "Aggressive",
		Description:     "lower threshold, larger buys",
		DipThresholdPct: 3,
		MaxSpendPct:     75,
	},
	ModeConservative: {
		Name:            "Conservative",
		Description:     "only buys on major dips",
		DipThresholdPct: 10,
		MaxSpendPct:     30,
	},
}

// Profile resolves the profile for m, falling back to standard for
// unknown values so a bad row never disables an account silently.
func (m Mode) Profile() ModeProfile {
	if p, ok := Profiles[m]; ok {
		return p
	}
	return Profiles[ModeStandard]
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := Profiles[m]
	return ok
}

// ManagedAccount is one tenant of the flywheel: a wallet plus the token
// it manages and the owner's chosen risk profile. The secret key is an
// opaque signing capability consumed by the venue adapter; the engine
// never interprets it.
type ManagedAccount struct {
	ID        string
	Owner     string
	SecretKey string // base58-encoded, decoded only by the wallet layer
	AssetMint string
	Mode      Mode
	Active    bool
	CreatedAt time.Time
}
