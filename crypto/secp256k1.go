package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD160 is part of the consensus address format, not a choice.
)

// Secp256k1Provider is the production Provider: stdlib SHA-256,
// RIPEMD160 from golang.org/x/crypto, and decred's pure-Go secp256k1 for
// ECDSA. It holds no state and is safe for concurrent use.
type Secp256k1Provider struct{}

var _ Provider = Secp256k1Provider{}

func (Secp256k1Provider) SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func (p Secp256k1Provider) SHA256d(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

func (Secp256k1Provider) RIPEMD160(data []byte) [20]byte {
	h := ripemd160.New() //nolint:staticcheck
	_, _ = h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (Secp256k1Provider) Sign(priv *PrivateKey, hash [32]byte) ([]byte, error) {
	sig := ecdsa.Sign(priv.key, hash[:])
	return sig.Serialize(), nil
}

func (Secp256k1Provider) Verify(pub []byte, hash [32]byte, sig []byte) bool {
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], pk)
}
