package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PrivateKey wraps a secp256k1 scalar. Bytes serialises it: node/keyvault
// uses that to persist keys and owns the Locked/Unlocked lifecycle (§9),
// and the node's GetPrivateKey control call returns it hex-encoded.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GeneratePrivateKey returns a fresh, uniformly random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// ParsePrivateKey loads a private key from its 32-byte big-endian scalar.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("crypto: private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Bytes returns the 32-byte big-endian scalar encoding of the key.
func (k *PrivateKey) Bytes() []byte {
	b := k.key.Serialize()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// PublicKeyCompressed returns the 33-byte SEC1-compressed public key.
func (k *PrivateKey) PublicKeyCompressed() []byte {
	return k.key.PubKey().SerializeCompressed()
}
