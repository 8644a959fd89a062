package solana

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// Incinerator is the burn address. No private key can exist for it
// because the point is not on the ed25519 curve.
const Incinerator = "1nc1nerator11111111111111111111111111111111"

// Wallet wraps an ed25519 keypair decoded from a base58 secret key.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string
}

// NewWallet decodes a base58-encoded 64-byte secret key.
func NewWallet(secretKey string) (*Wallet, error) {
	raw, err := base58.Decode(secretKey)
	if err != nil {
		return nil, fmt.Errorf("solana.NewWallet: %w: decode secret key: %v", domain.ErrConfig, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("solana.NewWallet: %w: secret key is %d bytes, want %d", domain.ErrConfig, len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)

	return &Wallet{
		priv:    priv,
		address: base58.Encode(pub),
	}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.address
}

// SignTransaction signs serialized transaction wire bytes in place.
// The layout is a compact-u16 signature count, the signature slots,
// then the message. The wallet's signature goes in the first slot,
// which must be reserved for the fee payer.
func (w *Wallet) SignTransaction(tx []byte) ([]byte, error) {
	numSigs, offset, err := decodeCompactU16(tx)
	if err != nil {
		return nil, fmt.Errorf("solana.SignTransaction: %w", err)
	}
	if numSigs < 1 {
		return nil, fmt.Errorf("solana.SignTransaction: no signature slots")
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if msgStart >= len(tx) {
		return nil, fmt.Errorf("solana.SignTransaction: truncated transaction")
	}

	sig := ed25519.Sign(w.priv, tx[msgStart:])

	signed := make([]byte, len(tx))
	copy(signed, tx)
	copy(signed[offset:], sig)

	return signed, nil
}

// decodeCompactU16 reads a compact-u16 length prefix.
func decodeCompactU16(b []byte) (value, size int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("compact-u16: truncated")
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16: too long")
}

// IsOnCurve reports whether the base58 address decodes to a valid
// ed25519 curve point. Burn destinations must be off curve so no key
// can ever spend from them.
func IsOnCurve(address string) (bool, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return false, fmt.Errorf("solana.IsOnCurve: decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return false, fmt.Errorf("solana.IsOnCurve: address is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}

	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil, nil
}
