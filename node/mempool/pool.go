// Package mempool is the in-memory unconfirmed-transaction pool: admission,
// orphan handling, fee-per-byte selection, and eviction (§4.4). It reacts to
// UTXO updates and reorg notifications from node/chain as a pure listener;
// it never calls back into the chain engine.
package mempool

import (
	"sort"
	"sync"
	"time"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
)

const (
	maxMainEntries   = 20000
	maxOrphanEntries = 10000
	evictBatchSize   = 1000
	maxEntryAge      = 24 * time.Hour
)

// entry is one admitted (non-orphan) transaction.
type entry struct {
	tx          consensus.Transaction
	hash        consensus.Hash
	fee         uint64
	size        int
	admittedAt  time.Time
}

func (e entry) feePerByte() float64 {
	if e.size == 0 {
		return 0
	}
	return float64(e.fee) / float64(e.size)
}

// Pool is the mempool. All mutating methods are safe for concurrent use,
// but callers are expected to invoke them from the node's single
// serialising worker (§5) so ordering against chain mutations is total.
type Pool struct {
	utxos  consensus.UTXOSource
	crypto crypto.Provider

	mu      sync.Mutex
	entries map[consensus.Hash]*entry
	orphans map[consensus.Hash]*entry

	addedListeners []func(tx consensus.Transaction)
}

// New constructs an empty pool backed by utxos for output lookups.
func New(utxos consensus.UTXOSource, cp crypto.Provider) *Pool {
	return &Pool{
		utxos:   utxos,
		crypto:  cp,
		entries: make(map[consensus.Hash]*entry),
		orphans: make(map[consensus.Hash]*entry),
	}
}

// OnTransactionAdded registers a listener notified on successful admission.
func (p *Pool) OnTransactionAdded(l func(tx consensus.Transaction)) {
	p.addedListeners = append(p.addedListeners, l)
}

// Count returns the number of confirmed-pending (non-orphan) entries.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func transactionSize(tx consensus.Transaction) int {
	return len(consensus.EncodeTransaction(tx))
}

// AddTransaction runs the §4.4 admission policy. It returns false (no
// error) for every rejection — duplicate, double-spend, orphan, or outputs
// exceeding inputs. It does no structural or signature validation and
// always returns a nil error.
func (p *Pool) AddTransaction(tx consensus.Transaction) (admitted bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := consensus.TransactionHash(p.crypto, tx)
	if _, ok := p.entries[hash]; ok {
		return false, nil
	}
	if _, ok := p.orphans[hash]; ok {
		return false, nil
	}

	var inSum, outSum uint64
	missingInput := false
	for _, in := range tx.Inputs {
		ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
		if p.spentInPool(ref) {
			return false, nil // double spend against another mempool entry
		}
		utxo, ok := p.utxos.GetUnspentOutput(ref)
		if !ok {
			missingInput = true
			continue
		}
		inSum += utxo.Output.Amount
	}
	if missingInput {
		p.admitOrphan(hash, tx)
		return false, nil
	}
	for _, out := range tx.Outputs {
		outSum += out.Amount
	}
	if inSum < outSum {
		return false, nil // fee would be negative
	}
	fee := inSum - outSum

	e := &entry{tx: tx, hash: hash, fee: fee, size: transactionSize(tx), admittedAt: time.Now()}
	p.entries[hash] = e
	p.evictMainIfNeeded()
	for _, l := range p.addedListeners {
		l(tx)
	}
	return true, nil
}

func (p *Pool) admitOrphan(hash consensus.Hash, tx consensus.Transaction) {
	p.orphans[hash] = &entry{tx: tx, hash: hash, size: transactionSize(tx), admittedAt: time.Now()}
	p.evictOrphansIfNeeded()
}

func (p *Pool) spentInPool(ref consensus.OutPoint) bool {
	for _, e := range p.entries {
		for _, in := range e.tx.Inputs {
			if in.RefTxHash == ref.RefTxHash && in.RefIndex == ref.RefIndex {
				return true
			}
		}
	}
	return false
}

// PickTransaction returns the single highest fee-per-byte entry.
func (p *Pool) PickTransaction() (consensus.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sorted := p.sortedByFeePerByte()
	if len(sorted) == 0 {
		return consensus.Transaction{}, false
	}
	return sorted[0].tx, true
}

// PickTransactions greedily selects by descending fee-per-byte, skipping
// (not removing) any entry that would overflow budget, using an explicit
// cursor so a skipped entry is never reconsidered on the same pass (§9 open
// question).
func (p *Pool) PickTransactions(budget int) []consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	sorted := p.sortedByFeePerByte()
	var picked []consensus.Transaction
	used := 0
	for cursor := 0; cursor < len(sorted); cursor++ {
		e := sorted[cursor]
		if used+e.size > budget {
			continue
		}
		picked = append(picked, e.tx)
		used += e.size
	}
	return picked
}

func (p *Pool) sortedByFeePerByte() []*entry {
	out := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].feePerByte() > out[j].feePerByte()
	})
	return out
}

// KnownHashes returns the hashes of every admitted (non-orphan) entry, for
// announcing this node's pool contents to a peer (§4.5 GetUnconfirmedTransactions).
func (p *Pool) KnownHashes() []consensus.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]consensus.Hash, 0, len(p.entries))
	for h := range p.entries {
		out = append(out, h)
	}
	return out
}

// AllTransactions returns every currently admitted (non-orphan) transaction.
func (p *Pool) AllTransactions() []consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]consensus.Transaction, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.tx)
	}
	return out
}

// Has reports whether hash is already admitted (orphan or not).
func (p *Pool) Has(hash consensus.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[hash]; ok {
		return true
	}
	_, ok := p.orphans[hash]
	return ok
}

// GetMany returns whichever of hashes are currently admitted, in no
// particular order, for responding to GetTransactions.
func (p *Pool) GetMany(hashes []consensus.Hash) []consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]consensus.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if e, ok := p.entries[h]; ok {
			out = append(out, e.tx)
		}
	}
	return out
}

// RemoveTransaction drops a confirmed or invalidated entry.
func (p *Pool) RemoveTransaction(hash consensus.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, hash)
	delete(p.orphans, hash)
}

func (p *Pool) evictMainIfNeeded() {
	p.evictAged(p.entries)
	if len(p.entries) <= maxMainEntries {
		return
	}
	sorted := p.sortedByFeePerByte()
	toDrop := len(p.entries) - maxMainEntries + evictBatchSize
	if toDrop > len(sorted) {
		toDrop = len(sorted)
	}
	for i := len(sorted) - toDrop; i < len(sorted); i++ {
		delete(p.entries, sorted[i].hash)
	}
}

func (p *Pool) evictOrphansIfNeeded() {
	p.evictAged(p.orphans)
	if len(p.orphans) <= maxOrphanEntries {
		return
	}
	// Orphans have no fee signal; evict oldest first.
	type aged struct {
		hash consensus.Hash
		at   time.Time
	}
	list := make([]aged, 0, len(p.orphans))
	for h, e := range p.orphans {
		list = append(list, aged{hash: h, at: e.admittedAt})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	toDrop := len(p.orphans) - maxOrphanEntries + evictBatchSize
	if toDrop > len(list) {
		toDrop = len(list)
	}
	for i := 0; i < toDrop; i++ {
		delete(p.orphans, list[i].hash)
	}
}

func (p *Pool) evictAged(m map[consensus.Hash]*entry) {
	cutoff := time.Now().Add(-maxEntryAge)
	for h, e := range m {
		if e.admittedAt.Before(cutoff) {
			delete(m, h)
		}
	}
}

// OnUTXOUpdate reacts to a chain-engine UTXO delta (§4.4 "Reaction to UTXO
// updates"): promote resolved orphans first, then drop/demote mempool
// entries invalidated by the new state.
func (p *Pool) OnUTXOUpdate(added []consensus.UTXO, removed []consensus.OutPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for hash, e := range p.orphans {
		if p.allInputsResolved(e.tx) {
			delete(p.orphans, hash)
			inSum, outSum := p.sums(e.tx)
			if inSum < outSum {
				continue
			}
			e.fee = inSum - outSum
			p.entries[hash] = e
		}
	}

	for hash, e := range p.entries {
		if p.anyInputDoubleSpent(e.tx, removed) {
			delete(p.entries, hash)
			continue
		}
		if !p.allInputsResolved(e.tx) {
			delete(p.entries, hash)
			p.orphans[hash] = e
		}
	}
}

func (p *Pool) allInputsResolved(tx consensus.Transaction) bool {
	for _, in := range tx.Inputs {
		ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
		if _, ok := p.utxos.GetUnspentOutput(ref); !ok {
			return false
		}
	}
	return true
}

func (p *Pool) anyInputDoubleSpent(tx consensus.Transaction, removed []consensus.OutPoint) bool {
	for _, in := range tx.Inputs {
		ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
		for _, r := range removed {
			if r == ref {
				if _, ok := p.utxos.GetUnspentOutput(ref); !ok {
					return true
				}
			}
		}
	}
	return false
}

func (p *Pool) sums(tx consensus.Transaction) (inSum, outSum uint64) {
	for _, in := range tx.Inputs {
		ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
		if u, ok := p.utxos.GetUnspentOutput(ref); ok {
			inSum += u.Output.Amount
		}
	}
	for _, out := range tx.Outputs {
		outSum += out.Amount
	}
	return inSum, outSum
}

// OnReorg re-admits transactions that fell out of the best chain (if still
// spendable) and removes transactions newly confirmed (§4.3).
func (p *Pool) OnReorg(revertedTxs []consensus.Transaction, confirmedTxHashes []consensus.Hash) {
	p.mu.Lock()
	for _, h := range confirmedTxHashes {
		delete(p.entries, h)
		delete(p.orphans, h)
	}
	p.mu.Unlock()

	for _, tx := range revertedTxs {
		if _, err := p.AddTransaction(tx); err != nil {
			log.Warnf("reorg re-admission failed for %s: %v", consensus.TransactionHash(p.crypto, tx), err)
		}
	}
}
