package chain

import "corechain.dev/node/consensus"

// maxOrphanBlocks bounds the orphan buffer so an attacker cannot grow it
// without limit (§4.2: "buffer the block keyed by parent hash (bounded,
// evictable)").
const maxOrphanBlocks = 1000

// bufferOrphan stores b keyed by the parent hash it is waiting on, evicting
// the oldest entry if the buffer is full.
func (e *Engine) bufferOrphan(b consensus.Block) {
	parent := b.Header.ParentHash
	e.orphans[parent] = append(e.orphans[parent], b)
	e.orphanOrder = append(e.orphanOrder, orphanKey{parent: parent, index: len(e.orphans[parent]) - 1})
	if len(e.orphanOrder) > maxOrphanBlocks {
		oldest := e.orphanOrder[0]
		e.orphanOrder = e.orphanOrder[1:]
		bucket := e.orphans[oldest.parent]
		if oldest.index < len(bucket) {
			e.orphans[oldest.parent] = append(bucket[:oldest.index], bucket[oldest.index+1:]...)
			if len(e.orphans[oldest.parent]) == 0 {
				delete(e.orphans, oldest.parent)
			}
		}
	}
}

type orphanKey struct {
	parent consensus.Hash
	index  int
}

// drainOrphans applies every buffered block whose parent is newHead,
// recursing as each application may unlock further orphans (§4.2 step 6).
// Callers already hold e.mu, so this recurses through addBlockLocked
// directly rather than through the public, lock-taking AddBlock.
func (e *Engine) drainOrphans(newHead consensus.Hash) {
	ready, ok := e.orphans[newHead]
	if !ok {
		return
	}
	delete(e.orphans, newHead)
	for _, b := range ready {
		_ = e.addBlockLocked(b)
	}
}
