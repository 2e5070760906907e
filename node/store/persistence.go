package store

import (
	"path/filepath"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
	"corechain.dev/node/crypto"
)

// PersistenceService combines the segmented block/revert stores, the
// metadata KV, the UTXO set, and the address pool behind the single façade
// the chain engine and mempool depend on (§4.1).
type PersistenceService struct {
	blocks  *SegmentStore
	reverts *SegmentStore
	meta    *MetadataDB
	utxo    *UTXOSet
	addrs   *AddressPool
	hasher  crypto.Provider
}

// Open opens every store rooted at dataDir, creating the directory layout
// from §6 ("blocks/", "reverts/", "metadata/blockchain/", "metadata/state/",
// "peers/") if it does not already exist. hasher computes the block and
// transaction hashes persistence keys metadata by.
func Open(dataDir string, hasher crypto.Provider) (*PersistenceService, error) {
	blocks, err := OpenSegmentStore(filepath.Join(dataDir, "blocks"), "block%05d.bin")
	if err != nil {
		return nil, err
	}
	reverts, err := OpenSegmentStore(filepath.Join(dataDir, "reverts"), "revert%05d.bin")
	if err != nil {
		blocks.Close()
		return nil, err
	}
	meta, err := OpenMetadataDB(dataDir)
	if err != nil {
		blocks.Close()
		reverts.Close()
		return nil, err
	}
	utxo, err := OpenUTXOSet(dataDir)
	if err != nil {
		blocks.Close()
		reverts.Close()
		meta.Close()
		return nil, err
	}
	addrs, err := OpenAddressPool(dataDir)
	if err != nil {
		blocks.Close()
		reverts.Close()
		meta.Close()
		utxo.Close()
		return nil, err
	}
	return &PersistenceService{blocks: blocks, reverts: reverts, meta: meta, utxo: utxo, addrs: addrs, hasher: hasher}, nil
}

func (p *PersistenceService) Close() error {
	var first error
	for _, c := range []func() error{p.blocks.Close, p.reverts.Close, p.meta.Close, p.utxo.Close, p.addrs.Close} {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *PersistenceService) Addresses() *AddressPool { return p.addrs }
func (p *PersistenceService) UTXOSet() *UTXOSet        { return p.utxo }

// PersistBlock appends block to the block segment store and writes its
// BlockMetadata and per-transaction TransactionMetadata, recording height
// and cumulative work (§4.1 step 4). It does not touch the UTXO set or the
// revert store: those are the province of ApplyBlock/RevertBlock, which run
// only once the engine has decided this block extends the current state.
func (p *PersistenceService) PersistBlock(b consensus.Block, height uint64, cumulativeWork [32]byte, status consensus.BlockStatus) (consensus.Hash, error) {
	blockBytes := consensus.EncodeBlock(b)
	blockPtr, err := p.blocks.Store(blockBytes)
	if err != nil {
		return consensus.Hash{}, err
	}

	hash := consensus.HeaderHash(p.hasher, b.Header)
	md := consensus.BlockMetadata{
		Header:         b.Header,
		Height:         height,
		CumulativeWork: cumulativeWork,
		TxCount:        uint32(len(b.Transactions)),
		Status:         status,
		BlockPointer:   blockPtr,
	}
	if err := p.meta.PutBlockMetadata(hash, md); err != nil {
		return consensus.Hash{}, err
	}
	for i, tx := range b.Transactions {
		txHash := consensus.TransactionHash(p.hasher, tx)
		txMeta := consensus.TransactionMetadata{
			BlockPointer:     blockPtr,
			TransactionIndex: uint32(i),
			BlockHeight:      height,
			BlockHash:        hash,
			Timestamp:        b.Header.Timestamp,
		}
		if err := p.meta.PutTransactionMetadata(txHash, txMeta); err != nil {
			return consensus.Hash{}, err
		}
	}
	return hash, nil
}

// SetBlockStatus updates a previously-persisted block's status (e.g. to
// mark a failed reorg candidate Invalid).
func (p *PersistenceService) SetBlockStatus(hash consensus.Hash, status consensus.BlockStatus) error {
	md, ok, err := p.meta.GetBlockMetadata(hash)
	if err != nil {
		return err
	}
	if !ok {
		return corecore.New(corecore.KindStorage, "block metadata not found")
	}
	md.Status = status
	return p.meta.PutBlockMetadata(hash, md)
}

// ApplyBlock applies a block's UTXO effects, assuming the UTXO set currently
// reflects the block's parent state (§4.2 "Apply"): for each transaction in
// order, remove each referenced UTXO and insert a new UTXO for each output.
// It materialises and persists the revert record needed to undo this later,
// and returns the added UTXOs and removed OutPoints for listener
// notification.
func (p *PersistenceService) ApplyBlock(b consensus.Block, hash consensus.Hash, height uint64) (added []consensus.UTXO, removed []consensus.OutPoint, err error) {
	var revertData RevertData
	for _, tx := range b.Transactions {
		txHash := consensus.TransactionHash(p.hasher, tx)
		isCoinbase := tx.IsCoinbase()
		if !isCoinbase {
			for _, in := range tx.Inputs {
				ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
				spent, ok := p.utxo.GetUnspentOutput(ref)
				if !ok {
					return nil, nil, corecore.New(corecore.KindCorruption, "apply: referenced output missing from utxo set")
				}
				if err := p.utxo.RemoveUnspentOutput(ref); err != nil {
					return nil, nil, err
				}
				revertData.Spent = append(revertData.Spent, spent)
				removed = append(removed, ref)
			}
		}
		for idx, out := range tx.Outputs {
			u := consensus.UTXO{
				RefTxHash:   txHash,
				RefIndex:    uint32(idx),
				Version:     tx.Version,
				BlockHeight: height,
				IsCoinbase:  isCoinbase,
				Output:      out,
			}
			if err := p.utxo.AddUnspentOutput(u); err != nil {
				return nil, nil, err
			}
			added = append(added, u)
			revertData.Created = append(revertData.Created, u.OutPoint())
		}
	}

	revertBytes := EncodeRevertData(revertData)
	revertPtr, err := p.reverts.Store(revertBytes)
	if err != nil {
		return nil, nil, err
	}
	md, ok, err := p.meta.GetBlockMetadata(hash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, corecore.New(corecore.KindStorage, "block metadata not found")
	}
	md.RevertPointer = revertPtr
	md.Status = consensus.BlockStatusValid
	if err := p.meta.PutBlockMetadata(hash, md); err != nil {
		return nil, nil, err
	}
	return added, removed, nil
}

// RevertBlock undoes a previously-applied block: for each transaction in
// reverse order, delete the outputs it created and reinsert the outputs it
// spent (§4.2 "Revert"), using the revert record ApplyBlock wrote.
func (p *PersistenceService) RevertBlock(hash consensus.Hash) (restored []consensus.UTXO, deleted []consensus.OutPoint, err error) {
	revertData, err := p.GetRevertDataFor(hash)
	if err != nil {
		return nil, nil, err
	}
	for i := len(revertData.Created) - 1; i >= 0; i-- {
		ref := revertData.Created[i]
		if err := p.utxo.RemoveUnspentOutput(ref); err != nil {
			return nil, nil, err
		}
		deleted = append(deleted, ref)
	}
	for i := len(revertData.Spent) - 1; i >= 0; i-- {
		u := revertData.Spent[i]
		if err := p.utxo.AddUnspentOutput(u); err != nil {
			return nil, nil, err
		}
		restored = append(restored, u)
	}
	return restored, deleted, nil
}

func (p *PersistenceService) GetBlock(hash consensus.Hash) (consensus.Block, error) {
	md, ok, err := p.meta.GetBlockMetadata(hash)
	if err != nil {
		return consensus.Block{}, err
	}
	if !ok {
		return consensus.Block{}, corecore.New(corecore.KindStorage, "block not found")
	}
	raw, err := p.blocks.Retrieve(md.BlockPointer)
	if err != nil {
		return consensus.Block{}, err
	}
	return consensus.DecodeBlock(raw)
}

func (p *PersistenceService) GetBlockMetadata(hash consensus.Hash) (consensus.BlockMetadata, bool, error) {
	return p.meta.GetBlockMetadata(hash)
}

func (p *PersistenceService) GetTransactionMetadata(hash consensus.Hash) (consensus.TransactionMetadata, bool, error) {
	return p.meta.GetTransactionMetadata(hash)
}

func (p *PersistenceService) GetChainHead() (ChainHead, bool, error) {
	return p.meta.GetChainHead()
}

func (p *PersistenceService) SetChainHead(h ChainHead) error {
	return p.meta.SetChainHead(h)
}

func (p *PersistenceService) GetUnspentOutput(ref consensus.OutPoint) (consensus.UTXO, bool) {
	return p.utxo.GetUnspentOutput(ref)
}

func (p *PersistenceService) GetUnspentOutputsForAddress(pubkeyHash []byte) []consensus.UTXO {
	return p.utxo.UnspentOutputsForAddress(pubkeyHash)
}

// GetRevertDataFor loads a previously-applied block's revert record.
func (p *PersistenceService) GetRevertDataFor(hash consensus.Hash) (RevertData, error) {
	md, ok, err := p.meta.GetBlockMetadata(hash)
	if err != nil {
		return RevertData{}, err
	}
	if !ok {
		return RevertData{}, corecore.New(corecore.KindStorage, "block metadata not found")
	}
	raw, err := p.reverts.Retrieve(md.RevertPointer)
	if err != nil {
		return RevertData{}, err
	}
	return DecodeRevertData(raw)
}
