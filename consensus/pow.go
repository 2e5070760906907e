package consensus

import (
	"math/big"

	"corechain.dev/node/crypto"
)

// two256 is 2^256, the numerator of the cumulative-work formula.
var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// UnpackTarget expands a compact-difficulty ("bits") value into a 256-bit
// target: (bits & 0x007FFFFF) << (8 * ((bits >> 24) - 3)) (Glossary).
func UnpackTarget(bits uint32) *big.Int {
	exponent := int(bits>>24) - 3
	mantissa := big.NewInt(int64(bits & 0x007FFFFF))
	if exponent <= 0 {
		return mantissa.Rsh(mantissa, uint(-exponent*8))
	}
	return mantissa.Lsh(mantissa, uint(exponent*8))
}

// PackTarget is the inverse of UnpackTarget, used by the retarget rule to
// re-encode a clamped target back into compact form.
func PackTarget(target *big.Int) uint32 {
	bytes := target.Bytes()
	size := len(bytes)
	var mantissa uint32
	switch {
	case size <= 3:
		var buf [3]byte
		copy(buf[3-size:], bytes)
		mantissa = uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	default:
		mantissa = uint32(bytes[0])<<16 | uint32(bytes[1])<<8 | uint32(bytes[2])
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}
	return uint32(size)<<24 | mantissa
}

// hashAsUint reinterprets a Hash as an unsigned big-endian integer (§3).
func hashAsUint(h Hash) *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// PowCheck reports whether header hashes to a value at or below the target
// implied by its own bits field ("hash ≤ target", §4.2/§8).
func PowCheck(p crypto.Provider, h BlockHeader) bool {
	hash := HeaderHash(p, h)
	target := UnpackTarget(h.Bits)
	return hashAsUint(hash).Cmp(target) <= 0
}

// CumulativeWork is 2^256 / (target+1), the per-block contribution to a
// chain's total work (Glossary).
func CumulativeWork(bits uint32) *big.Int {
	target := UnpackTarget(bits)
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(two256, denom)
}

// AddWork returns a+b as a fresh big.Int, for accumulating cumulative work
// along a chain.
func AddWork(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// CompareWork compares two cumulative-work values.
func CompareWork(a, b *big.Int) int {
	return a.Cmp(b)
}

// RetargetBits applies the §4.2 rescale rule: new target = old target *
// actual_time / expected_time, clamped to [old/4, old*4], then re-packed.
// actualTime and expectedTime are in seconds.
func RetargetBits(oldBits uint32, actualTime, expectedTime int64) uint32 {
	if actualTime <= 0 {
		actualTime = 1
	}
	oldTarget := UnpackTarget(oldBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTime))
	newTarget.Div(newTarget, big.NewInt(expectedTime))

	minTarget := new(big.Int).Rsh(oldTarget, 2)
	maxTarget := new(big.Int).Lsh(oldTarget, 2)
	if newTarget.Cmp(minTarget) < 0 {
		newTarget = minTarget
	}
	if newTarget.Cmp(maxTarget) > 0 {
		newTarget = maxTarget
	}
	return PackTarget(newTarget)
}
