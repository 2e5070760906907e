package chain

import (
	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
	"corechain.dev/node/node/store"
)

// reorganize implements §4.3: find the lowest common ancestor of the
// current head and newTip, revert down to it, then apply forward to
// newTip. Listener deltas are coalesced into one net set for the whole
// reorganisation. If the forward sweep fails contextual validation, the
// original branch is restored and the failing tip is marked invalid.
func (e *Engine) reorganize(newTip consensus.Hash, newTipHeight uint64, newTipWork [32]byte) error {
	head, ok, err := e.persist.GetChainHead()
	if err != nil {
		return err
	}
	if !ok {
		// No head yet: nothing to revert, just walk forward from genesis-less
		// start. This path only arises if NewEngine's genesis bootstrap was
		// skipped, which callers do not do in practice.
		return e.applyForwardPath(consensus.Hash{}, newTip)
	}

	ancestor, err := e.findLowestCommonAncestor(head.Hash, newTip)
	if err != nil {
		return err
	}

	revertedPath, err := e.pathToAncestor(head.Hash, ancestor)
	if err != nil {
		return err
	}
	forwardPath, err := e.pathToAncestor(newTip, ancestor)
	if err != nil {
		return err
	}
	reverseInPlace(forwardPath)

	var netAdded []consensus.UTXO
	var netRemoved []consensus.OutPoint
	var revertedTxs []consensus.Transaction

	for _, hash := range revertedPath {
		b, err := e.persist.GetBlock(hash)
		if err != nil {
			return err
		}
		md, _, err := e.persist.GetBlockMetadata(hash)
		if err != nil {
			return err
		}
		restored, deleted, err := e.persist.RevertBlock(hash)
		if err != nil {
			return err
		}
		netAdded = append(netAdded, restored...)
		netRemoved = append(netRemoved, deleted...)
		for _, tx := range b.Transactions {
			if !tx.IsCoinbase() {
				revertedTxs = append(revertedTxs, tx)
			}
		}
		e.notifyBlock(b, hash, md.Height, false)
	}

	ancestorMeta, _, err := e.persist.GetBlockMetadata(ancestor)
	if err != nil {
		return err
	}
	if err := e.persist.SetChainHead(store.ChainHead{Hash: ancestor, Height: ancestorMeta.Height, CumulativeWork: ancestorMeta.CumulativeWork}); err != nil {
		return err
	}

	var confirmedTxs []consensus.Hash
	appliedSoFar := 0
	for _, hash := range forwardPath {
		b, err := e.persist.GetBlock(hash)
		if err != nil {
			return err
		}
		md, _, err := e.persist.GetBlockMetadata(hash)
		if err != nil {
			return err
		}
		if _, cerr := consensus.ContextualValidate(e.crypto, e.params, b, md, md.Height, e.persist, md.Header.Bits); cerr != nil {
			return e.abortReorg(forwardPath[:appliedSoFar], revertedPath, head, hash, cerr)
		}
		added, removed, err := e.persist.ApplyBlock(b, hash, md.Height)
		if err != nil {
			return err
		}
		netAdded = append(netAdded, added...)
		netRemoved = append(netRemoved, removed...)
		for _, tx := range b.Transactions {
			if !tx.IsCoinbase() {
				confirmedTxs = append(confirmedTxs, consensus.TransactionHash(e.crypto, tx))
			}
		}
		if err := e.persist.SetChainHead(store.ChainHead{Hash: hash, Height: md.Height, CumulativeWork: md.CumulativeWork}); err != nil {
			return err
		}
		e.notifyBlock(b, hash, md.Height, true)
		appliedSoFar++
	}

	netAdded, netRemoved = coalesce(netAdded, netRemoved)
	e.notifyUTXO(netAdded, netRemoved)
	e.notifyReorg(revertedTxs, confirmedTxs)
	return nil
}

// abortReorg undoes the partial forward application, re-applies the
// original branch, and marks the failing block invalid, leaving head
// unchanged (§4.3 step 4).
func (e *Engine) abortReorg(appliedForward, revertedOriginal []consensus.Hash, originalHead store.ChainHead, failedHash consensus.Hash, cause *corecore.Error) error {
	for i := len(appliedForward) - 1; i >= 0; i-- {
		if _, _, err := e.persist.RevertBlock(appliedForward[i]); err != nil {
			return err
		}
	}
	for i := len(revertedOriginal) - 1; i >= 0; i-- {
		hash := revertedOriginal[i]
		b, err := e.persist.GetBlock(hash)
		if err != nil {
			return err
		}
		md, _, err := e.persist.GetBlockMetadata(hash)
		if err != nil {
			return err
		}
		if _, _, err := e.persist.ApplyBlock(b, hash, md.Height); err != nil {
			return err
		}
	}
	if err := e.persist.SetChainHead(originalHead); err != nil {
		return err
	}
	if err := e.persist.SetBlockStatus(failedHash, consensus.BlockStatusInvalid); err != nil {
		return err
	}
	return cause
}

// findLowestCommonAncestor walks both tips back along parent pointers,
// first equalizing height, then walking in lockstep until the hashes match.
func (e *Engine) findLowestCommonAncestor(a, b consensus.Hash) (consensus.Hash, error) {
	aMeta, ok, err := e.persist.GetBlockMetadata(a)
	if err != nil {
		return consensus.Hash{}, err
	}
	if !ok {
		return consensus.Hash{}, corecore.New(corecore.KindCorruption, "lca: unknown tip a")
	}
	bMeta, ok, err := e.persist.GetBlockMetadata(b)
	if err != nil {
		return consensus.Hash{}, err
	}
	if !ok {
		return consensus.Hash{}, corecore.New(corecore.KindCorruption, "lca: unknown tip b")
	}

	for aMeta.Height > bMeta.Height {
		a = aMeta.Header.ParentHash
		aMeta, _, err = e.persist.GetBlockMetadata(a)
		if err != nil {
			return consensus.Hash{}, err
		}
	}
	for bMeta.Height > aMeta.Height {
		b = bMeta.Header.ParentHash
		bMeta, _, err = e.persist.GetBlockMetadata(b)
		if err != nil {
			return consensus.Hash{}, err
		}
	}
	for a != b {
		a = aMeta.Header.ParentHash
		aMeta, _, err = e.persist.GetBlockMetadata(a)
		if err != nil {
			return consensus.Hash{}, err
		}
		b = bMeta.Header.ParentHash
		bMeta, _, err = e.persist.GetBlockMetadata(b)
		if err != nil {
			return consensus.Hash{}, err
		}
	}
	return a, nil
}

// pathToAncestor returns the hashes strictly between ancestor (exclusive)
// and tip (inclusive), in descending-height (tip-first) order.
func (e *Engine) pathToAncestor(tip, ancestor consensus.Hash) ([]consensus.Hash, error) {
	var path []consensus.Hash
	cur := tip
	for cur != ancestor {
		path = append(path, cur)
		md, ok, err := e.persist.GetBlockMetadata(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, corecore.New(corecore.KindCorruption, "path: missing ancestor")
		}
		cur = md.Header.ParentHash
	}
	return path, nil
}

func reverseInPlace(hashes []consensus.Hash) {
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
}

// coalesce nets out additions that were later removed (and vice versa)
// within the same reorg, so listeners see a single net delta (§4.3).
func coalesce(added []consensus.UTXO, removed []consensus.OutPoint) ([]consensus.UTXO, []consensus.OutPoint) {
	addedByRef := make(map[consensus.OutPoint]consensus.UTXO, len(added))
	for _, u := range added {
		addedByRef[u.OutPoint()] = u
	}
	removedSet := make(map[consensus.OutPoint]bool, len(removed))
	for _, r := range removed {
		removedSet[r] = true
	}

	var netAdded []consensus.UTXO
	for ref, u := range addedByRef {
		if !removedSet[ref] {
			netAdded = append(netAdded, u)
		}
	}
	var netRemoved []consensus.OutPoint
	for ref := range removedSet {
		if _, stillAdded := addedByRef[ref]; !stillAdded {
			netRemoved = append(netRemoved, ref)
		}
	}
	return netAdded, netRemoved
}

// applyForwardPath is used only in the edge case where no chain head exists
// yet; it walks newTip back to genesis and applies every block in order.
func (e *Engine) applyForwardPath(_ consensus.Hash, newTip consensus.Hash) error {
	var path []consensus.Hash
	cur := newTip
	for {
		md, ok, err := e.persist.GetBlockMetadata(cur)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		path = append(path, cur)
		if md.Height == 0 {
			break
		}
		cur = md.Header.ParentHash
	}
	reverseInPlace(path)
	for _, hash := range path {
		b, err := e.persist.GetBlock(hash)
		if err != nil {
			return err
		}
		md, _, err := e.persist.GetBlockMetadata(hash)
		if err != nil {
			return err
		}
		added, removed, err := e.persist.ApplyBlock(b, hash, md.Height)
		if err != nil {
			return err
		}
		if err := e.persist.SetChainHead(store.ChainHead{Hash: hash, Height: md.Height, CumulativeWork: md.CumulativeWork}); err != nil {
			return err
		}
		e.notifyUTXO(added, removed)
		e.notifyBlock(b, hash, md.Height, true)
	}
	return nil
}
