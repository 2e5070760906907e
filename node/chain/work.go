package chain

import "math/big"

func workToBytes(w *big.Int) [32]byte {
	var out [32]byte
	b := w.Bytes()
	copy(out[32-len(b):], b)
	return out
}

func bytesToWork(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}
