// Package crypto is the narrow set of cryptographic primitives the consensus
// and peer-protocol packages are allowed to call. Swapping the provider
// (e.g. for an HSM-backed signer) never touches calling code.
package crypto

// Provider is the crypto surface §6 treats as an external collaborator:
// SHA-256, SHA256d, RIPEMD160, and secp256k1 ECDSA sign/verify.
type Provider interface {
	SHA256(data []byte) [32]byte
	SHA256d(data []byte) [32]byte
	RIPEMD160(data []byte) [20]byte

	// Sign produces a DER-encoded ECDSA signature over hash using priv.
	Sign(priv *PrivateKey, hash [32]byte) ([]byte, error)
	// Verify reports whether sig is a valid DER ECDSA signature over hash
	// under the 33-byte compressed public key pub.
	Verify(pub []byte, hash [32]byte, sig []byte) bool
}
