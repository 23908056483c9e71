// Package wallet holds the engine's single signing keypair. The key is loaded
// once at startup and is immutable for the life of the process.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidKeyFormat is returned when a secret decodes as neither a base58
// string nor a JSON byte array, or decodes to an inconsistent keypair.
var ErrInvalidKeyFormat = errors.New("invalid private key format: expected base58 or JSON byte array")

// Keypair is an ed25519 signing key with its base58 public address.
type Keypair struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// Load decodes a secret into a keypair. Base58 is tried first, then a JSON
// array of byte values (the two formats wallets export).
func Load(secret string) (*Keypair, error) {
	if raw, err := base58.Decode(secret); err == nil {
		if kp, err := fromBytes(raw); err == nil {
			return kp, nil
		}
	}

	var arr []int
	if err := json.Unmarshal([]byte(secret), &arr); err == nil {
		raw := make([]byte, len(arr))
		for i, v := range arr {
			if v < 0 || v > 255 {
				return nil, ErrInvalidKeyFormat
			}
			raw[i] = byte(v)
		}
		if kp, err := fromBytes(raw); err == nil {
			return kp, nil
		}
	}

	return nil, ErrInvalidKeyFormat
}

// fromBytes validates a 64-byte secret (seed || public key) and builds the
// keypair. The embedded public key must match the seed-derived one and must
// be a valid curve point.
func fromBytes(raw []byte) (*Keypair, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeyFormat
	}

	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	if !pub.Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, ErrInvalidKeyFormat
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, ErrInvalidKeyFormat
	}

	return &Keypair{
		priv:   priv,
		pubkey: base58.Encode(pub),
	}, nil
}

// PublicKey returns the wallet address as a base58 string. Stable for the
// life of the keypair.
func (k *Keypair) PublicKey() string {
	return k.pubkey
}

// Sign signs an arbitrary message (typically serialized transaction message
// bytes) and returns the 64-byte signature.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}
