package chain

import (
	"math/big"
	"testing"
)

func TestWorkBytesRoundTrip(t *testing.T) {
	w := big.NewInt(123456789)
	got := bytesToWork(workToBytes(w))
	if got.Cmp(w) != 0 {
		t.Fatalf("workToBytes/bytesToWork roundtrip mismatch: got %s, want %s", got, w)
	}
}

func TestWorkBytesHandlesZero(t *testing.T) {
	got := bytesToWork(workToBytes(big.NewInt(0)))
	if got.Sign() != 0 {
		t.Fatalf("expected zero to roundtrip as zero, got %s", got)
	}
}
