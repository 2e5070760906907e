package consensus

import "math/big"

// NetworkParams carries the consensus constants the spec leaves as "network
// parameters" (§4.2, §9 open question: retarget window and target spacing
// are not spelled out in the reviewed sources). MainnetParams below is this
// implementation's concrete choice, documented in DESIGN.md.
type NetworkParams struct {
	// Magic distinguishes networks at the wire-framing level (§4.5).
	Magic uint32

	// RetargetWindow is N: every N blocks the difficulty is rescaled.
	RetargetWindow uint64
	// TargetSpacingSeconds is the expected seconds per block.
	TargetSpacingSeconds int64

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64
	// InitialSubsidy is the block subsidy in base units before any halving.
	InitialSubsidy uint64

	// PowLimitBits is the loosest allowed difficulty (genesis difficulty).
	PowLimitBits uint32

	// MaxFutureDriftSeconds is the allowed timestamp drift ahead of wall
	// clock (§3: "timestamp ≤ now + 2 hours").
	MaxFutureDriftSeconds int64
}

// ExpectedRetargetSeconds is the total wall-clock time a full retarget
// window should take if blocks land exactly on TargetSpacingSeconds.
func (p NetworkParams) ExpectedRetargetSeconds() int64 {
	return int64(p.RetargetWindow) * p.TargetSpacingSeconds
}

// MainnetParams is the concrete parameter set this node ships with.
// RetargetWindow=2016 and TargetSpacingSeconds=600 reproduce Bitcoin's own
// "2016 blocks / 10 minutes" two-week retarget period, chosen because the
// spec names no alternative and this is the best-known instance of exactly
// this design (§9 open question, resolved in DESIGN.md).
var MainnetParams = NetworkParams{
	Magic:                 0xD9B4BEF9,
	RetargetWindow:        2016,
	TargetSpacingSeconds:  600,
	HalvingInterval:       210000,
	InitialSubsidy:        50_0000_0000,
	PowLimitBits:          0x1d00ffff,
	MaxFutureDriftSeconds: 7200,
}

// PowLimit returns the params' loosest allowed target as a big.Int.
func (p NetworkParams) PowLimit() *big.Int {
	return UnpackTarget(p.PowLimitBits)
}
