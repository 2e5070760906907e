// Package chain is the chain engine: block validation, application, and
// reorganisation against the persistence façade (§4.2, §4.3). It is the
// single authoritative broadcaster of block and UTXO-delta events; listeners
// (mempool, wallets) never hold a strong reference back into it (§9).
package chain

import (
	"sync"
	"time"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
	"corechain.dev/node/crypto"
	"corechain.dev/node/node/store"
)


// BlockListener is notified synchronously, under the engine's lock, whenever
// a block is applied or reverted.
type BlockListener func(b consensus.Block, hash consensus.Hash, height uint64, added bool)

// UTXOListener is notified with the net per-block (or, during a reorg, net
// per-reorg) set of UTXO additions and removals.
type UTXOListener func(added []consensus.UTXO, removed []consensus.OutPoint)

// ReorgListener is notified once per reorganisation with the non-coinbase
// transactions that fell out of the best chain (candidates for mempool
// re-admission) and the hashes of transactions newly confirmed (candidates
// for mempool removal).
type ReorgListener func(revertedTxs []consensus.Transaction, confirmedTxHashes []consensus.Hash)

// Engine owns the chain-head pointer and orchestrates validation, apply,
// and reorg against a PersistenceService. All mutating calls run under a
// single exclusive lock (§5). The lock is not re-entrant: code already
// holding it calls addBlockLocked, never AddBlock. Read accessors do not
// take it.
type Engine struct {
	persist *store.PersistenceService
	params  consensus.NetworkParams
	crypto  crypto.Provider

	mu sync.Mutex

	orphans     map[consensus.Hash][]consensus.Block
	orphanOrder []orphanKey

	blockListeners []BlockListener
	utxoListeners  []UTXOListener
	reorgListeners []ReorgListener
}

// NewEngine constructs an Engine. If persistence has no chain head yet, it
// applies genesis directly as height 0.
func NewEngine(persist *store.PersistenceService, params consensus.NetworkParams, cp crypto.Provider, genesis consensus.Block) (*Engine, error) {
	e := &Engine{
		persist: persist,
		params:  params,
		crypto:  cp,
		orphans: make(map[consensus.Hash][]consensus.Block),
	}
	if _, ok, err := persist.GetChainHead(); err != nil {
		return nil, err
	} else if !ok {
		if err := e.applyGenesis(genesis); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) applyGenesis(genesis consensus.Block) error {
	hash := consensus.HeaderHash(e.crypto, genesis.Header)
	work := workToBytes(consensus.CumulativeWork(genesis.Header.Bits))
	if _, err := e.persist.PersistBlock(genesis, 0, work, consensus.BlockStatusValid); err != nil {
		return err
	}
	added, removed, err := e.persist.ApplyBlock(genesis, hash, 0)
	if err != nil {
		return err
	}
	if err := e.persist.SetChainHead(store.ChainHead{Hash: hash, Height: 0, CumulativeWork: work}); err != nil {
		return err
	}
	e.notifyUTXO(added, removed)
	e.notifyBlock(genesis, hash, 0, true)
	return nil
}

func (e *Engine) RegisterBlockListener(l BlockListener)   { e.blockListeners = append(e.blockListeners, l) }
func (e *Engine) RegisterUTXOListener(l UTXOListener)     { e.utxoListeners = append(e.utxoListeners, l) }
func (e *Engine) RegisterReorgListener(l ReorgListener)   { e.reorgListeners = append(e.reorgListeners, l) }

func (e *Engine) notifyBlock(b consensus.Block, hash consensus.Hash, height uint64, added bool) {
	for _, l := range e.blockListeners {
		l(b, hash, height, added)
	}
}

func (e *Engine) notifyUTXO(added []consensus.UTXO, removed []consensus.OutPoint) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	for _, l := range e.utxoListeners {
		l(added, removed)
	}
}

func (e *Engine) notifyReorg(reverted []consensus.Transaction, confirmed []consensus.Hash) {
	for _, l := range e.reorgListeners {
		l(reverted, confirmed)
	}
}

// ChainHead returns the current head pointer.
func (e *Engine) ChainHead() (store.ChainHead, bool, error) {
	return e.persist.GetChainHead()
}

// Persist exposes the persistence façade for read-only lookups by the
// peer protocol layer (block/header serving during IBD).
func (e *Engine) Persist() *store.PersistenceService { return e.persist }

// Crypto exposes the engine's hashing provider for callers that need to
// derive the same transaction/header hashes the engine uses.
func (e *Engine) Crypto() crypto.Provider { return e.crypto }

// AddBlock runs the full application algorithm from §4.2.
func (e *Engine) AddBlock(b consensus.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addBlockLocked(b)
}

func (e *Engine) addBlockLocked(b consensus.Block) error {
	now := time.Now()
	if cerr := consensus.ContextFreeValidate(e.crypto, e.params, b, now); cerr != nil {
		return cerr
	}

	hash := consensus.HeaderHash(e.crypto, b.Header)
	if _, ok, err := e.persist.GetBlockMetadata(hash); err != nil {
		return err
	} else if ok {
		return corecore.New(corecore.KindDuplicateItem, "block already known")
	}

	parentMeta, ok, err := e.persist.GetBlockMetadata(b.Header.ParentHash)
	if err != nil {
		return err
	}
	if !ok {
		e.bufferOrphan(b)
		return corecore.New(corecore.KindOrphanBlock, "parent not yet known")
	}

	height := parentMeta.Height + 1
	firstTs, err := e.firstTimestampOfWindow(b.Header.ParentHash, height)
	if err != nil {
		return err
	}
	expectedBits := consensus.ExpectedBits(e.params, parentMeta.Header.Bits, height, firstTs, parentMeta.Header.Timestamp)
	if b.Header.Bits != expectedBits {
		return corecore.Banned(corecore.KindInvalidBlock, "bits does not match expected difficulty", 20)
	}

	cumWork := consensus.AddWork(bytesToWork(parentMeta.CumulativeWork), consensus.CumulativeWork(b.Header.Bits))
	cumWorkBytes := workToBytes(cumWork)

	status := consensus.BlockStatusValid
	head, headOK, err := e.persist.GetChainHead()
	if err != nil {
		return err
	}

	extendsHead := headOK && b.Header.ParentHash == head.Hash
	if extendsHead {
		if _, cerr := consensus.ContextualValidate(e.crypto, e.params, b, parentMeta, height, e.persist, expectedBits); cerr != nil {
			status = consensus.BlockStatusInvalid
			if _, err := e.persist.PersistBlock(b, height, cumWorkBytes, status); err != nil {
				return err
			}
			return cerr
		}
	}

	if _, err := e.persist.PersistBlock(b, height, cumWorkBytes, status); err != nil {
		return err
	}

	switch {
	case extendsHead:
		if err := e.applyBlockDirect(b, hash, height, cumWorkBytes); err != nil {
			return err
		}
		e.drainOrphans(hash)
	case !headOK || consensus.CompareWork(cumWork, bytesToWork(head.CumulativeWork)) > 0:
		if err := e.reorganize(hash, height, cumWorkBytes); err != nil {
			return err
		}
		e.drainOrphans(hash)
	default:
		// Alternate branch with insufficient work: persisted, head unchanged.
	}
	return nil
}

func (e *Engine) applyBlockDirect(b consensus.Block, hash consensus.Hash, height uint64, cumWork [32]byte) error {
	added, removed, err := e.persist.ApplyBlock(b, hash, height)
	if err != nil {
		return err
	}
	if err := e.persist.SetChainHead(store.ChainHead{Hash: hash, Height: height, CumulativeWork: cumWork}); err != nil {
		return err
	}
	e.notifyUTXO(added, removed)
	e.notifyBlock(b, hash, height, true)
	return nil
}

// firstTimestampOfWindow returns the timestamp of the first block of the
// retarget window that closes at height, by walking back RetargetWindow-1
// ancestors from parentHash. It is only consulted when height starts a new
// window.
func (e *Engine) firstTimestampOfWindow(parentHash consensus.Hash, height uint64) (int64, error) {
	if height == 0 || height%e.params.RetargetWindow != 0 {
		return 0, nil
	}
	cur := parentHash
	for i := uint64(0); i < e.params.RetargetWindow-1; i++ {
		md, ok, err := e.persist.GetBlockMetadata(cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, corecore.New(corecore.KindCorruption, "missing ancestor while walking retarget window")
		}
		cur = md.Header.ParentHash
	}
	md, ok, err := e.persist.GetBlockMetadata(cur)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, corecore.New(corecore.KindCorruption, "missing ancestor while walking retarget window")
	}
	return md.Header.Timestamp, nil
}
