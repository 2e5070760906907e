package crypto

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// base58CheckChecksumLen is the number of SHA256d checksum bytes appended
// before base58 encoding (§6: "Base58Check encode/decode with a 4-byte
// checksum over SHA256d").
const base58CheckChecksumLen = 4

// Base58CheckEncode encodes payload (typically version byte + 20-byte hash)
// with a 4-byte SHA256d checksum, then base58-alphabet-encodes the result.
func Base58CheckEncode(p Provider, payload []byte) string {
	checksum := p.SHA256d(payload)
	buf := make([]byte, 0, len(payload)+base58CheckChecksumLen)
	buf = append(buf, payload...)
	buf = append(buf, checksum[:base58CheckChecksumLen]...)
	return base58.Encode(buf)
}

// Base58CheckDecode reverses Base58CheckEncode, verifying the checksum.
func Base58CheckDecode(p Provider, s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: base58check: %w", err)
	}
	if len(raw) < base58CheckChecksumLen {
		return nil, fmt.Errorf("crypto: base58check: too short")
	}
	split := len(raw) - base58CheckChecksumLen
	payload, want := raw[:split], raw[split:]
	got := p.SHA256d(payload)
	for i := 0; i < base58CheckChecksumLen; i++ {
		if got[i] != want[i] {
			return nil, fmt.Errorf("crypto: base58check: checksum mismatch")
		}
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}
