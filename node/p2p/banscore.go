package p2p

import "sync"

// BanThreshold is the cumulative ban score at which a peer is disconnected
// and banned (§4.5, §7).
const BanThreshold = 100

// BanScore accumulates violation weight for one peer across its connection
// lifetime.
type BanScore struct {
	mu    sync.Mutex
	score int
}

// Add applies delta and reports whether the peer has now crossed the ban
// threshold.
func (b *BanScore) Add(delta int) (banned bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.score += delta
	return b.score >= BanThreshold
}

// Score returns the current accumulated score.
func (b *BanScore) Score() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.score
}
