package consensus

import "corechain.dev/node/crypto"

// AddressVersionByte prefixes a pubkey hash before Base58Check encoding, the
// way Bitcoin-style addresses distinguish networks and payload kinds.
const AddressVersionByte = 0x00

// EncodeAddress renders a 20-byte RIPEMD160(SHA256(pubkey)) hash as a
// Base58Check address.
func EncodeAddress(p crypto.Provider, pubkeyHash [20]byte) string {
	payload := make([]byte, 0, 21)
	payload = append(payload, AddressVersionByte)
	payload = append(payload, pubkeyHash[:]...)
	return crypto.Base58CheckEncode(p, payload)
}

// DecodeAddress recovers the 20-byte pubkey hash from a Base58Check address,
// rejecting bad checksums and unexpected version bytes.
func DecodeAddress(p crypto.Provider, addr string) ([20]byte, error) {
	var out [20]byte
	payload, err := crypto.Base58CheckDecode(p, addr)
	if err != nil {
		return out, err
	}
	if len(payload) != 21 || payload[0] != AddressVersionByte {
		return out, errInvalidAddress
	}
	copy(out[:], payload[1:])
	return out, nil
}

var errInvalidAddress = addressError("consensus: malformed address payload")

type addressError string

func (e addressError) Error() string { return string(e) }
