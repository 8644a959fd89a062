package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

func testWallet(t *testing.T) (*Wallet, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	w, err := NewWallet(base58.Encode(priv))
	require.NoError(t, err)
	return w, pub
}

func TestNewWallet_DerivesAddressFromKeypair(t *testing.T) {
	w, pub := testWallet(t)
	assert.Equal(t, base58.Encode(pub), w.Address())
}

func TestNewWallet_RejectsGarbage(t *testing.T) {
	_, err := NewWallet("not base58 0OIl")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewWallet_RejectsWrongLength(t *testing.T) {
	_, err := NewWallet(base58.Encode(make([]byte, 32)))
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestSignTransaction_FillsFirstSignatureSlot(t *testing.T) {
	w, pub := testWallet(t)

	message := []byte("serialized transaction message bytes")
	tx := make([]byte, 0, 1+2*ed25519.SignatureSize+len(message))
	tx = append(tx, 2) // two signature slots, fee payer first
	tx = append(tx, make([]byte, 2*ed25519.SignatureSize)...)
	tx = append(tx, message...)

	signed, err := w.SignTransaction(tx)
	require.NoError(t, err)
	require.Len(t, signed, len(tx))

	sig := signed[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))

	// Second slot and message untouched.
	assert.Equal(t, make([]byte, ed25519.SignatureSize), signed[1+ed25519.SignatureSize:1+2*ed25519.SignatureSize])
	assert.Equal(t, message, signed[1+2*ed25519.SignatureSize:])

	// Input is not mutated.
	assert.Equal(t, make([]byte, ed25519.SignatureSize), tx[1:1+ed25519.SignatureSize])
}

func TestSignTransaction_Truncated(t *testing.T) {
	w, _ := testWallet(t)

	_, err := w.SignTransaction([]byte{1, 0, 0})
	assert.Error(t, err)

	_, err = w.SignTransaction([]byte{0})
	assert.Error(t, err)
}

func TestDecodeCompactU16(t *testing.T) {
	tests := []struct {
		name  string
		in    []byte
		value int
		size  int
	}{
		{"single byte", []byte{0x05}, 5, 1},
		{"boundary 127", []byte{0x7f}, 127, 1},
		{"two bytes", []byte{0x80, 0x01}, 128, 2},
		{"two bytes mid", []byte{0xff, 0x01}, 255, 2},
		{"three bytes", []byte{0x80, 0x80, 0x01}, 16384, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, size, err := decodeCompactU16(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.size, size)
		})
	}

	_, _, err := decodeCompactU16(nil)
	assert.Error(t, err)

	_, _, err = decodeCompactU16([]byte{0x80, 0x80})
	assert.Error(t, err)
}

func TestIsOnCurve(t *testing.T) {
	onCurve, err := IsOnCurve(Incinerator)
	require.NoError(t, err)
	assert.False(t, onCurve, "incinerator must be unspendable")

	_, pub := testWallet(t)
	onCurve, err = IsOnCurve(base58.Encode(pub))
	require.NoError(t, err)
	assert.True(t, onCurve)

	_, err = IsOnCurve("tooshort")
	assert.Error(t, err)
}
